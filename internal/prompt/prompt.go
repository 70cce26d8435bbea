// Package prompt renders the versioned question and evaluation prompts.
// Rendering is pure: identical inputs always produce identical bytes.
package prompt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/prepwise/internal/quiz"
)

// Prompt versions. Bump when the rendered text changes so stored questions
// and answers can be traced to the prompt that produced them.
const (
	QuestionVersion   = "v1.0"
	EvaluationVersion = "v1.0"
)

// NoAnswer stands in for an empty submission.
const NoAnswer = "[No answer provided]"

// Prompt is a rendered system/user pair.
type Prompt struct {
	System  string
	User    string
	Version string
}

const questionSystem = `You are a technical interviewer generating a single interview question.
Return ONLY a valid JSON object. No markdown fences, no explanation, no preamble.`

const evaluationSystem = `You are an expert technical interviewer evaluating a candidate's answer. Be rigorous but fair.
Return ONLY a valid JSON object. No markdown fences, no explanation outside the JSON.`

var difficultyGuides = map[quiz.Difficulty]string{
	quiz.Beginner: "suitable for developers with 0-1 years of experience. Focus on fundamentals, basic syntax, and simple concepts.",
	quiz.Normal:   "suitable for developers with 1-3 years of experience. Include real-world scenarios and moderate complexity.",
	quiz.Advanced: "suitable for developers with 3+ years of experience. Cover edge cases, performance considerations, and architectural decisions.",
}

// DifficultyGuide returns the audience description for d.
func DifficultyGuide(d quiz.Difficulty) string {
	return difficultyGuides[d]
}

// Question renders the generation prompt for one question.
func Question(topics []string, difficulty quiz.Difficulty, types []quiz.QuestionType) Prompt {
	topicList := strings.Join(topics, ", ")
	coding := slices.Contains(types, quiz.Coding)
	theoretical := slices.Contains(types, quiz.Theoretical)

	var kind, typeField string
	switch {
	case coding && theoretical:
		kind = "either a coding problem or a theoretical question (choose based on what best tests the topic)"
		typeField = "coding or theoretical"
	case coding:
		kind = "a coding problem requiring a code solution"
		typeField = string(quiz.Coding)
	default:
		kind = "a theoretical question requiring a written explanation"
		typeField = string(quiz.Theoretical)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate %s about one of these topics: %s\n", kind, topicList)
	fmt.Fprintf(&b, "Difficulty level: %s: %s\n", difficulty, DifficultyGuide(difficulty))
	b.WriteString("\nRequired JSON structure:\n{\n")
	b.WriteString(`  "title": "Brief question title (10-200 chars)",` + "\n")
	b.WriteString(`  "body": "Full question text with context (50-1500 chars). For coding questions include the problem statement, constraints, and example inputs/outputs. For theoretical questions include the scenario or concept to explain.",` + "\n")
	fmt.Fprintf(&b, "  \"type\": %q,\n", typeField)
	fmt.Fprintf(&b, "  \"difficulty\": %q,\n", string(difficulty))
	fmt.Fprintf(&b, "  \"topic\": \"The specific topic from [%s] this question covers\",\n", topicList)
	b.WriteString(`  "expectedFormat": "e.g. 'Python function', 'Paragraph explanation', 'SQL query'"` + "\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "Prompt version: %s", QuestionVersion)

	return Prompt{System: questionSystem, User: b.String(), Version: QuestionVersion}
}

// Evaluation renders the scoring prompt for one answer. Only p is used, so
// nothing from earlier questions or attempts can reach the model.
func Evaluation(p quiz.EvaluationParams) Prompt {
	answer := p.UserAnswer
	if strings.TrimSpace(answer) == "" {
		answer = NoAnswer
	}

	presentation := "Is it well-structured with clear reasoning?"
	if p.QuestionType == quiz.Coding {
		presentation = "Is the code clean, readable, and efficient?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION (%s, %s):\n%s", p.Topic, p.Difficulty, p.Question)
	if p.ExpectedFormat != "" {
		fmt.Fprintf(&b, "\nExpected format: %s", p.ExpectedFormat)
	}
	fmt.Fprintf(&b, "\n\nCANDIDATE'S ANSWER:\n%s\n\n", answer)
	fmt.Fprintf(&b, "SCORING RUBRIC:\n%s\n\n", Rubric(p.Difficulty, p.QuestionType))
	b.WriteString("EVALUATION PROCESS. Follow these steps in order:\n")
	b.WriteString("1. Correctness: Is the answer technically accurate? Identify any errors.\n")
	b.WriteString("2. Completeness: Does it address all parts of the question?\n")
	fmt.Fprintf(&b, "3. Quality: Is the explanation clear and at the appropriate depth for %s level?\n", p.Difficulty)
	fmt.Fprintf(&b, "4. Presentation: %s\n\n", presentation)
	b.WriteString("Required JSON structure:\n{\n")
	b.WriteString(`  "reasoning": "Your step-by-step analysis following the 4 evaluation steps above",` + "\n")
	b.WriteString(`  "score": <integer 0-100 matching the rubric>,` + "\n")
	b.WriteString(`  "feedback": "Markdown-formatted feedback: what was good, what to improve, and specific suggestions",` + "\n")
	b.WriteString(`  "modelAnswer": "Markdown-formatted model answer the candidate can learn from"` + "\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "Evaluation prompt version: %s", EvaluationVersion)

	return Prompt{System: evaluationSystem, User: b.String(), Version: EvaluationVersion}
}
