package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/prepwise/internal/quiz"
)

// SessionRepo persists sessions.
type SessionRepo interface {
	// Create inserts a new session. ID and timestamps are set when empty.
	Create(ctx context.Context, s *quiz.Session) error

	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*quiz.Session, error)

	// List returns the owner's sessions, newest first.
	List(ctx context.Context, ownerID string, limit int) ([]quiz.Session, error)

	// Transition moves the session to status to when its current status
	// allows it.
	Transition(ctx context.Context, id string, to quiz.SessionStatus) error
}

// QuestionRepo persists generated questions.
type QuestionRepo interface {
	// Insert stores a question. It is a plain insert; a filled slot
	// returns ErrDuplicate.
	Insert(ctx context.Context, q *quiz.Question) error

	// Get returns the question with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*quiz.Question, error)

	// GetByIndex returns the question of a session slot or ErrNotFound.
	GetByIndex(ctx context.Context, sessionID string, index int) (*quiz.Question, error)

	// ListBySession returns the session's questions ordered by index.
	ListBySession(ctx context.Context, sessionID string) ([]quiz.Question, error)
}

// AnswerRepo persists answers and their evaluation outcome.
type AnswerRepo interface {
	// Insert stores a new answer. A second answer for the same
	// (session, index) returns ErrDuplicate.
	Insert(ctx context.Context, a *quiz.Answer) error

	// Get returns the answer or ErrNotFound.
	Get(ctx context.Context, id string) (*quiz.Answer, error)

	// GetByIndex returns the answer of a session slot or ErrNotFound.
	GetByIndex(ctx context.Context, sessionID string, index int) (*quiz.Answer, error)

	// ListBySession returns the session's answers ordered by index.
	ListBySession(ctx context.Context, sessionID string) ([]quiz.Answer, error)

	// Complete records an evaluation and flips the answer to completed.
	Complete(ctx context.Context, id string, res quiz.EvaluationResult, meta EvaluationMeta) error

	// MarkFailed flips the answer to evaluation_failed.
	MarkFailed(ctx context.Context, id string) error

	// VersionStats aggregates answers by evaluation prompt version.
	VersionStats(ctx context.Context) ([]VersionStat, error)
}

// SummaryRepo persists the denormalized session summary.
type SummaryRepo interface {
	// Save inserts or replaces the summary of a session.
	Save(ctx context.Context, sum quiz.Summary) error

	// Get returns the stored summary or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*quiz.Summary, error)
}

// EvaluationMeta identifies what produced an evaluation.
type EvaluationMeta struct {
	PromptVersion string
	ModelID       string
}

// VersionStat is the outcome of answers scored under one prompt version.
type VersionStat struct {
	Version   string
	Answers   int
	Completed int
	Failed    int
	AvgScore  float64
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int
	Timestamp time.Time
	LLMRequestEventData
}

// UsageStat aggregates token usage for one purpose or model.
type UsageStat struct {
	Purpose      string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// QueryOpts configures event queries.
type QueryOpts struct {
	Limit   int    // max results (0 = unlimited)
	Purpose string // exact match, empty for all
}

// EventRepo records and reads LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event or nil when it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	// LLMUsageByPurpose aggregates usage per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]UsageStat, error)

	// LLMUsageByModel aggregates usage per model.
	LLMUsageByModel(ctx context.Context) ([]UsageStat, error)
}

func (s *Store) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) exists(ctx context.Context, table, column string, value any) (bool, error) {
	query, args := s.builder().Select(column).From(s.builder().Table(table)).
		Where(entsql.EQ(column, value)).Limit(1).Query()
	var v any
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func now() time.Time {
	return time.Now().UTC()
}
