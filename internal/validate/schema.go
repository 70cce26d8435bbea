package validate

// Schema is a named JSON Schema definition.
type Schema struct {
	// Name identifies the schema in the compile cache, e.g. "question".
	Name string

	Description string

	// Definition is the JSON Schema document as a map.
	Definition map[string]any
}

// Length bounds for generated questions.
const (
	TitleMinLen = 10
	TitleMaxLen = 300
	BodyMinLen  = 50
	BodyMaxLen  = 4000
)

// Minimum lengths for evaluation text fields.
const (
	ReasoningMinLen   = 10
	FeedbackMinLen    = 10
	ModelAnswerMinLen = 10
)

// QuestionSchema describes a generated interview question.
var QuestionSchema = &Schema{
	Name:        "question",
	Description: "A single technical interview question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":      "string",
				"minLength": TitleMinLen,
				"maxLength": TitleMaxLen,
			},
			"body": map[string]any{
				"type":        "string",
				"minLength":   BodyMinLen,
				"maxLength":   BodyMaxLen,
				"description": "Markdown question text with context",
			},
			"type": map[string]any{
				"type": "string",
				"enum": []any{"coding", "theoretical"},
			},
			"difficulty": map[string]any{
				"type": "string",
				"enum": []any{"beginner", "normal", "advanced"},
			},
			"topic": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"expectedFormat": map[string]any{
				"type":        "string",
				"description": "Hint at the answer shape, e.g. 'Python function'",
			},
		},
		"required": []any{"title", "body", "type", "difficulty", "topic"},
	},
}

// EvaluationSchema describes the model's verdict on an answer.
var EvaluationSchema = &Schema{
	Name:        "evaluation",
	Description: "Score and feedback for one candidate answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reasoning": map[string]any{
				"type":      "string",
				"minLength": ReasoningMinLen,
			},
			"score": map[string]any{
				"type":    "integer",
				"minimum": 0,
				"maximum": 100,
			},
			"feedback": map[string]any{
				"type":      "string",
				"minLength": FeedbackMinLen,
			},
			"modelAnswer": map[string]any{
				"type":      "string",
				"minLength": ModelAnswerMinLen,
			},
		},
		"required": []any{"reasoning", "score", "feedback", "modelAnswer"},
	},
}
