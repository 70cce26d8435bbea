package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/prepwise/internal/quiz"
)

var questionColumns = []string{
	"id", "session_id", "question_index", "title", "body", "type", "difficulty",
	"topic", "expected_format", "prompt_version", "model_id", "created_at",
}

type questionRepo struct {
	s *Store
}

func (r *questionRepo) Insert(ctx context.Context, q *quiz.Question) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now()
	}

	var format sql.NullString
	if q.ExpectedFormat != nil {
		format = sql.NullString{String: *q.ExpectedFormat, Valid: true}
	}

	query, args := r.s.builder().Insert("questions").
		Columns(questionColumns...).
		Values(q.ID, q.SessionID, q.Index, q.Title, q.Body, string(q.Type), string(q.Difficulty),
			q.Topic, format, q.PromptVersion, q.ModelID, q.CreatedAt).
		Query()
	if _, err := r.s.exec(ctx, query, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("question %s/%d: %w", q.SessionID, q.Index, ErrDuplicate)
		}
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (r *questionRepo) Get(ctx context.Context, id string) (*quiz.Question, error) {
	return r.one(ctx, entsql.EQ("id", id))
}

func (r *questionRepo) GetByIndex(ctx context.Context, sessionID string, index int) (*quiz.Question, error) {
	return r.one(ctx, entsql.And(entsql.EQ("session_id", sessionID), entsql.EQ("question_index", index)))
}

func (r *questionRepo) one(ctx context.Context, where *entsql.Predicate) (*quiz.Question, error) {
	b := r.s.builder()
	query, args := b.Select(questionColumns...).From(b.Table("questions")).Where(where).Query()

	q, err := scanQuestion(r.s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (r *questionRepo) ListBySession(ctx context.Context, sessionID string) ([]quiz.Question, error) {
	b := r.s.builder()
	query, args := b.Select(questionColumns...).From(b.Table("questions")).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("question_index").
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []quiz.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func scanQuestion(row rowScanner) (*quiz.Question, error) {
	var (
		q          quiz.Question
		qtype      string
		difficulty string
		format     sql.NullString
	)
	if err := row.Scan(&q.ID, &q.SessionID, &q.Index, &q.Title, &q.Body, &qtype, &difficulty,
		&q.Topic, &format, &q.PromptVersion, &q.ModelID, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.Type = quiz.QuestionType(qtype)
	q.Difficulty = quiz.Difficulty(difficulty)
	if format.Valid {
		q.ExpectedFormat = &format.String
	}
	return &q, nil
}
