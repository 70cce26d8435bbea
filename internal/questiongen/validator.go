package questiongen

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abhisek/prepwise/internal/quiz"
)

// Validator checks a schema-valid question against the request it was
// generated for. Implementations should be stateless and safe for
// concurrent use.
type Validator interface {
	// Name returns a short identifier used in errors and logs.
	Name() string

	// Validate returns nil if the question passes.
	Validate(q quiz.GeneratedQuestion, params quiz.GenerationParams) *ValidationError
}

// ValidationError describes why a question was rejected.
type ValidationError struct {
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// TopicValidator rejects questions about a topic that was not requested.
type TopicValidator struct{}

func (v *TopicValidator) Name() string { return "topic" }

func (v *TopicValidator) Validate(q quiz.GeneratedQuestion, params quiz.GenerationParams) *ValidationError {
	for _, t := range params.Topics {
		if strings.EqualFold(strings.TrimSpace(q.Topic), strings.TrimSpace(t)) {
			return nil
		}
	}
	return &ValidationError{
		Validator: v.Name(),
		Message:   fmt.Sprintf("topic %q is not one of %q", q.Topic, params.Topics),
	}
}

// DifficultyValidator applies the body-length heuristic to the requested
// difficulty.
type DifficultyValidator struct {
	Heuristic *Heuristic
}

func (v *DifficultyValidator) Name() string { return "difficulty" }

func (v *DifficultyValidator) Validate(q quiz.GeneratedQuestion, params quiz.GenerationParams) *ValidationError {
	if v.Heuristic.Matches(q.Body, params.Difficulty) {
		return nil
	}
	return &ValidationError{
		Validator: v.Name(),
		Message: fmt.Sprintf("requested %q but question body length %d chars does not match heuristic",
			params.Difficulty, utf8.RuneCountInString(q.Body)),
	}
}
