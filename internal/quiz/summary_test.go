package quiz

import "testing"

func intPtr(v int) *int { return &v }

func testSession(d Difficulty) Session {
	return Session{
		ID:            "s1",
		Topics:        []string{"Go", "SQL"},
		Difficulty:    d,
		QuestionTypes: []QuestionType{Coding},
		QuestionCount: 5,
		Status:        SessionInProgress,
	}
}

func TestComputeSummary_SkippedCountAsZero(t *testing.T) {
	answers := []Answer{
		{QuestionIndex: 0, Status: AnswerCompleted, Score: intPtr(80)},
		{QuestionIndex: 1, Status: AnswerSkipped, Score: intPtr(0)},
		{QuestionIndex: 2, Status: AnswerSkipped, Score: intPtr(0)},
		{QuestionIndex: 3, Status: AnswerSkipped, Score: intPtr(0)},
		{QuestionIndex: 4, Status: AnswerSkipped, Score: intPtr(0)},
	}
	sum := ComputeSummary(testSession(Normal), answers, map[int]string{0: "Go"})

	if sum.FinalScore != 16 {
		t.Fatalf("final score = %d, want 16", sum.FinalScore)
	}
	if sum.NumCompleted != 1 || sum.NumSkipped != 4 {
		t.Fatalf("counts = %d completed / %d skipped, want 1/4", sum.NumCompleted, sum.NumSkipped)
	}
	if sum.RecommendedDifficulty != Beginner {
		t.Fatalf("recommended = %s, want beginner", sum.RecommendedDifficulty)
	}
}

func TestComputeSummary_NoAnswers(t *testing.T) {
	sum := ComputeSummary(testSession(Normal), nil, nil)
	if sum.FinalScore != 0 {
		t.Fatalf("final score = %d, want 0", sum.FinalScore)
	}
	if len(sum.TopicBreakdown) != 0 {
		t.Fatalf("expected empty topic breakdown, got %v", sum.TopicBreakdown)
	}
}

func TestComputeSummary_UnscoredAnswersCountAsZero(t *testing.T) {
	answers := []Answer{
		{QuestionIndex: 0, Status: AnswerCompleted, Score: intPtr(90)},
		{QuestionIndex: 1, Status: AnswerEvaluationFailed},
	}
	sum := ComputeSummary(testSession(Normal), answers, nil)
	if sum.FinalScore != 45 {
		t.Fatalf("final score = %d, want 45", sum.FinalScore)
	}
	if sum.NumFailed != 1 {
		t.Fatalf("failed = %d, want 1", sum.NumFailed)
	}
}

func TestComputeSummary_TopicBreakdown(t *testing.T) {
	answers := []Answer{
		{QuestionIndex: 0, Status: AnswerCompleted, Score: intPtr(60)},
		{QuestionIndex: 1, Status: AnswerCompleted, Score: intPtr(71)},
		{QuestionIndex: 2, Status: AnswerCompleted, Score: intPtr(90)},
		{QuestionIndex: 3, Status: AnswerSkipped, Score: intPtr(0)},
		{QuestionIndex: 4, Status: AnswerCompleted, Score: intPtr(40)},
	}
	topics := map[int]string{0: "Go", 1: "Go", 2: "SQL", 3: "SQL"}
	sum := ComputeSummary(testSession(Normal), answers, topics)

	want := []TopicScore{
		{Topic: "SQL", AvgScore: 90, Count: 1},
		{Topic: "Go", AvgScore: 66, Count: 2},
		{Topic: UnknownTopic, AvgScore: 40, Count: 1},
	}
	if len(sum.TopicBreakdown) != len(want) {
		t.Fatalf("breakdown = %v, want %v", sum.TopicBreakdown, want)
	}
	for i := range want {
		if sum.TopicBreakdown[i] != want[i] {
			t.Errorf("breakdown[%d] = %+v, want %+v", i, sum.TopicBreakdown[i], want[i])
		}
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		current Difficulty
		score   int
		want    Difficulty
	}{
		{Normal, 85, Advanced},
		{Beginner, 40, Beginner},
		{Advanced, 100, Advanced},
		{Advanced, 49, Normal},
		{Normal, 50, Normal},
		{Normal, 84, Normal},
		{Beginner, 85, Normal},
	}
	for _, tt := range tests {
		if got := Recommend(tt.current, tt.score); got != tt.want {
			t.Errorf("Recommend(%s, %d) = %s, want %s", tt.current, tt.score, got, tt.want)
		}
	}
}

func TestScoreTier(t *testing.T) {
	tests := map[int]string{100: "excellent", 85: "excellent", 84: "good", 70: "good", 69: "fair", 50: "fair", 49: "poor", 0: "poor"}
	for score, want := range tests {
		if got := ScoreTier(score); got != want {
			t.Errorf("ScoreTier(%d) = %q, want %q", score, got, want)
		}
	}
}
