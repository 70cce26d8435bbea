package prompt

import (
	"strings"
	"testing"

	"github.com/abhisek/prepwise/internal/quiz"
)

func TestQuestion_Deterministic(t *testing.T) {
	topics := []string{"Go", "PostgreSQL"}
	types := []quiz.QuestionType{quiz.Coding, quiz.Theoretical}
	for _, d := range quiz.Difficulties {
		a := Question(topics, d, types)
		b := Question(topics, d, types)
		if a != b {
			t.Fatalf("prompt for %s differs between calls", d)
		}
	}
}

func TestQuestion_TypeSelection(t *testing.T) {
	tests := []struct {
		name  string
		types []quiz.QuestionType
		want  string
		field string
	}{
		{"both", []quiz.QuestionType{quiz.Coding, quiz.Theoretical}, "either a coding problem or a theoretical question", `"type": "coding or theoretical"`},
		{"coding", []quiz.QuestionType{quiz.Coding}, "a coding problem requiring a code solution", `"type": "coding"`},
		{"theoretical", []quiz.QuestionType{quiz.Theoretical}, "a theoretical question requiring a written explanation", `"type": "theoretical"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Question([]string{"Go"}, quiz.Normal, tt.types)
			if !strings.Contains(p.User, tt.want) {
				t.Errorf("missing type phrase %q", tt.want)
			}
			if !strings.Contains(p.User, tt.field) {
				t.Errorf("missing type field %q", tt.field)
			}
		})
	}
}

func TestQuestion_Content(t *testing.T) {
	p := Question([]string{"Go", "SQL"}, quiz.Beginner, []quiz.QuestionType{quiz.Coding})

	for _, want := range []string{
		"one of these topics: Go, SQL",
		"Difficulty level: beginner: suitable for developers with 0-1 years",
		`"difficulty": "beginner"`,
		"from [Go, SQL]",
		"Prompt version: v1.0",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if p.Version != QuestionVersion {
		t.Errorf("version = %q, want %q", p.Version, QuestionVersion)
	}
	if !strings.Contains(p.System, "ONLY a valid JSON object") {
		t.Error("system prompt should demand JSON only")
	}
}

func TestEvaluation_Content(t *testing.T) {
	p := Evaluation(quiz.EvaluationParams{
		Question:       "Reverse a slice\n\nWrite a function that reverses a slice in place.",
		QuestionType:   quiz.Coding,
		Difficulty:     quiz.Advanced,
		Topic:          "Go",
		UserAnswer:     "func rev(s []int) { slices.Reverse(s) }",
		ExpectedFormat: "Go function",
	})

	for _, want := range []string{
		"QUESTION (Go, advanced):",
		"Expected format: Go function",
		"CANDIDATE'S ANSWER:\nfunc rev",
		"0-30: Fails to solve or contains critical bugs.",
		"85-100: Handles edge cases, optimal complexity, production-ready.",
		"4. Presentation: Is the code clean, readable, and efficient?",
		"appropriate depth for advanced level",
		"Evaluation prompt version: v1.0",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestEvaluation_EmptyAnswer(t *testing.T) {
	p := Evaluation(quiz.EvaluationParams{
		Question:     "Explain goroutines",
		QuestionType: quiz.Theoretical,
		Difficulty:   quiz.Beginner,
		Topic:        "Go",
		UserAnswer:   "   ",
	})
	if !strings.Contains(p.User, NoAnswer) {
		t.Error("expected placeholder for empty answer")
	}
	if strings.Contains(p.User, "Expected format:") {
		t.Error("format hint should be omitted when empty")
	}
	if !strings.Contains(p.User, "Is it well-structured with clear reasoning?") {
		t.Error("expected theoretical presentation step")
	}
}

func TestEvaluation_Deterministic(t *testing.T) {
	params := quiz.EvaluationParams{Question: "q", QuestionType: quiz.Coding, Difficulty: quiz.Normal, Topic: "Go", UserAnswer: "a"}
	if Evaluation(params) != Evaluation(params) {
		t.Fatal("evaluation prompt differs between calls")
	}
}

func TestBands(t *testing.T) {
	for _, d := range quiz.Difficulties {
		for _, qt := range quiz.QuestionTypes {
			bands := Bands(d, qt)
			if len(bands) != 4 {
				t.Fatalf("%s/%s: expected 4 bands, got %d", d, qt, len(bands))
			}
			if bands[0].Min != 0 || bands[3].Max != 100 {
				t.Errorf("%s/%s: bands do not cover 0-100", d, qt)
			}
			for i := 1; i < len(bands); i++ {
				if bands[i].Min != bands[i-1].Max+1 {
					t.Errorf("%s/%s: gap between band %d and %d", d, qt, i-1, i)
				}
			}
		}
	}
}
