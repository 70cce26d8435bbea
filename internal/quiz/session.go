package quiz

import (
	"fmt"
	"slices"
	"time"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionInProgress: {SessionCompleted, SessionAbandoned},
	SessionCompleted:  {SessionCompleted},
}

// CanTransition reports whether a session in status s may move to next.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	return slices.Contains(sessionTransitions[s], next)
}

// SessionSources returns the statuses from which next is reachable.
func SessionSources(next SessionStatus) []SessionStatus {
	var out []SessionStatus
	for _, from := range []SessionStatus{SessionInProgress, SessionCompleted, SessionAbandoned} {
		if from.CanTransition(next) {
			out = append(out, from)
		}
	}
	return out
}

// Session is one practice run.
type Session struct {
	ID            string
	OwnerID       string
	Topics        []string
	Difficulty    Difficulty
	QuestionTypes []QuestionType
	QuestionCount int
	Status        SessionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the session's configuration.
func (s Session) Validate() error {
	if len(s.Topics) == 0 {
		return fmt.Errorf("session needs at least one topic")
	}
	for _, t := range s.Topics {
		if t == "" {
			return fmt.Errorf("session topics must not be empty")
		}
	}
	if !s.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", s.Difficulty)
	}
	if len(s.QuestionTypes) == 0 {
		return fmt.Errorf("session needs at least one question type")
	}
	for _, t := range s.QuestionTypes {
		if !t.Valid() {
			return fmt.Errorf("unknown question type %q", t)
		}
	}
	if !slices.Contains(QuestionCounts, s.QuestionCount) {
		return fmt.Errorf("question count must be one of %v, got %d", QuestionCounts, s.QuestionCount)
	}
	return nil
}

// HasIndex reports whether i addresses a question slot of the session.
func (s Session) HasIndex(i int) bool {
	return i >= 0 && i < s.QuestionCount
}

// GenerationParams builds the generation input for slot index.
func (s Session) GenerationParams(index int) GenerationParams {
	return GenerationParams{
		Topics:        slices.Clone(s.Topics),
		Difficulty:    s.Difficulty,
		Types:         slices.Clone(s.QuestionTypes),
		SessionID:     s.ID,
		QuestionIndex: index,
	}
}
