// Package quiz holds the domain types shared by the generation and
// evaluation pipelines, the session service and the store.
package quiz

import (
	"fmt"
	"slices"
	"time"
)

// Difficulty is the requested complexity of a session's questions.
type Difficulty string

const (
	Beginner Difficulty = "beginner"
	Normal   Difficulty = "normal"
	Advanced Difficulty = "advanced"
)

// Difficulties lists every level from easiest to hardest.
var Difficulties = []Difficulty{Beginner, Normal, Advanced}

// ParseDifficulty converts s to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

func (d Difficulty) Valid() bool {
	return slices.Contains(Difficulties, d)
}

// Raise returns the next harder level, staying at Advanced.
func (d Difficulty) Raise() Difficulty {
	i := slices.Index(Difficulties, d)
	if i < 0 || i == len(Difficulties)-1 {
		return d
	}
	return Difficulties[i+1]
}

// Lower returns the next easier level, staying at Beginner.
func (d Difficulty) Lower() Difficulty {
	i := slices.Index(Difficulties, d)
	if i <= 0 {
		return d
	}
	return Difficulties[i-1]
}

// QuestionType distinguishes code-writing questions from written explanations.
type QuestionType string

const (
	Coding      QuestionType = "coding"
	Theoretical QuestionType = "theoretical"
)

// QuestionTypes lists every question type.
var QuestionTypes = []QuestionType{Coding, Theoretical}

// ParseQuestionType converts s to a QuestionType.
func ParseQuestionType(s string) (QuestionType, error) {
	t := QuestionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown question type %q", s)
	}
	return t, nil
}

func (t QuestionType) Valid() bool {
	return slices.Contains(QuestionTypes, t)
}

// QuestionCounts are the session lengths a user may pick.
var QuestionCounts = []int{5, 10, 20}

// GeneratedQuestion is a validated question as produced by the model.
type GeneratedQuestion struct {
	Title          string       `json:"title"`
	Body           string       `json:"body"`
	Type           QuestionType `json:"type"`
	Difficulty     Difficulty   `json:"difficulty"`
	Topic          string       `json:"topic"`
	ExpectedFormat *string      `json:"expectedFormat,omitempty"`
}

// Format returns the expected-format hint or "".
func (q GeneratedQuestion) Format() string {
	if q.ExpectedFormat == nil {
		return ""
	}
	return *q.ExpectedFormat
}

// Question is a GeneratedQuestion persisted into a session slot.
type Question struct {
	ID        string
	SessionID string
	Index     int
	GeneratedQuestion
	PromptVersion string
	ModelID       string
	CreatedAt     time.Time
}

// EvaluationResult is the model's verdict on one answer.
type EvaluationResult struct {
	Reasoning   string `json:"reasoning"`
	Score       int    `json:"score"`
	Feedback    string `json:"feedback"`
	ModelAnswer string `json:"modelAnswer"`
}

// Answer is one submission or skip for a session slot.
type Answer struct {
	ID            string
	SessionID     string
	QuestionID    *string
	QuestionIndex int
	UserAnswer    string
	Status        AnswerStatus

	// Score is nil until the answer is evaluated or skipped.
	Score       *int
	Reasoning   string
	Feedback    string
	ModelAnswer string

	EvalPromptVersion string
	ModelID           string
	CreatedAt         time.Time
	EvaluatedAt       *time.Time
}

// GenerationParams is everything a backend needs to write one question.
// SessionID and QuestionIndex identify the slot.
type GenerationParams struct {
	Topics        []string
	Difficulty    Difficulty
	Types         []QuestionType
	SessionID     string
	QuestionIndex int
}

// Validate checks that the parameters describe a generatable question.
func (p GenerationParams) Validate() error {
	if len(p.Topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}
	if !p.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", p.Difficulty)
	}
	if len(p.Types) == 0 {
		return fmt.Errorf("at least one question type is required")
	}
	for _, t := range p.Types {
		if !t.Valid() {
			return fmt.Errorf("unknown question type %q", t)
		}
	}
	return nil
}

// EvaluationParams is the single question/answer pair sent for scoring.
type EvaluationParams struct {
	Question       string
	QuestionType   QuestionType
	Difficulty     Difficulty
	Topic          string
	UserAnswer     string
	ExpectedFormat string
}

// EvaluationParamsFor builds evaluation input from a stored question.
func EvaluationParamsFor(q GeneratedQuestion, userAnswer string) EvaluationParams {
	return EvaluationParams{
		Question:       q.Title + "\n\n" + q.Body,
		QuestionType:   q.Type,
		Difficulty:     q.Difficulty,
		Topic:          q.Topic,
		UserAnswer:     userAnswer,
		ExpectedFormat: q.Format(),
	}
}
