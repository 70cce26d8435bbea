package quiz

import (
	"cmp"
	"math"
	"slices"
)

// UnknownTopic labels answers whose question row is missing.
const UnknownTopic = "Unknown"

// TopicScore is the average score of completed answers on one topic.
type TopicScore struct {
	Topic    string `json:"topic"`
	AvgScore int    `json:"avgScore"`
	Count    int    `json:"count"`
}

// Summary is the outcome of a finished session.
type Summary struct {
	SessionID             string       `json:"sessionId"`
	FinalScore            int          `json:"finalScore"`
	NumCompleted          int          `json:"numCompleted"`
	NumSkipped            int          `json:"numSkipped"`
	NumFailed             int          `json:"numFailed"`
	TopicBreakdown        []TopicScore `json:"topicBreakdown"`
	Difficulty            Difficulty   `json:"difficulty"`
	RecommendedDifficulty Difficulty   `json:"recommendedDifficulty"`
}

// ComputeSummary scores a session. topics maps question index to topic.
// Every answer counts toward the final score, and answers without a score
// count as 0. Topic averages use completed answers only.
func ComputeSummary(s Session, answers []Answer, topics map[int]string) Summary {
	sum := Summary{
		SessionID:      s.ID,
		Difficulty:     s.Difficulty,
		TopicBreakdown: []TopicScore{},
	}

	type acc struct{ sum, count int }
	byTopic := map[string]*acc{}
	var order []string
	total := 0

	for _, a := range answers {
		score := 0
		if a.Score != nil {
			score = *a.Score
		}
		total += score

		switch a.Status {
		case AnswerSkipped:
			sum.NumSkipped++
		case AnswerEvaluationFailed:
			sum.NumFailed++
		case AnswerCompleted:
			sum.NumCompleted++
			topic, ok := topics[a.QuestionIndex]
			if !ok || topic == "" {
				topic = UnknownTopic
			}
			t, ok := byTopic[topic]
			if !ok {
				t = &acc{}
				byTopic[topic] = t
				order = append(order, topic)
			}
			t.sum += score
			t.count++
		}
	}

	if len(answers) > 0 {
		sum.FinalScore = roundDiv(total, len(answers))
	}

	for _, topic := range order {
		t := byTopic[topic]
		sum.TopicBreakdown = append(sum.TopicBreakdown, TopicScore{
			Topic:    topic,
			AvgScore: roundDiv(t.sum, t.count),
			Count:    t.count,
		})
	}
	slices.SortStableFunc(sum.TopicBreakdown, func(a, b TopicScore) int {
		return cmp.Compare(b.AvgScore, a.AvgScore)
	})

	sum.RecommendedDifficulty = Recommend(s.Difficulty, sum.FinalScore)
	return sum
}

// Recommend adjusts difficulty by final score: 85 and above raises one
// level, below 50 lowers one level.
func Recommend(current Difficulty, finalScore int) Difficulty {
	switch {
	case finalScore >= 85:
		return current.Raise()
	case finalScore < 50:
		return current.Lower()
	}
	return current
}

// roundDiv rounds half up, matching the scores users see elsewhere.
func roundDiv(sum, n int) int {
	return int(math.Floor(float64(sum)/float64(n) + 0.5))
}

// ScoreTier buckets a score for display: "excellent" (85+), "good" (70+),
// "fair" (50+) or "poor".
func ScoreTier(score int) string {
	switch {
	case score >= 85:
		return "excellent"
	case score >= 70:
		return "good"
	case score >= 50:
		return "fair"
	}
	return "poor"
}
