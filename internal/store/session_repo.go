package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/prepwise/internal/quiz"
)

var sessionColumns = []string{
	"id", "owner_id", "topics", "difficulty", "question_types",
	"question_count", "status", "created_at", "updated_at",
}

type sessionRepo struct {
	s *Store
}

func (r *sessionRepo) Create(ctx context.Context, sess *quiz.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = quiz.SessionInProgress
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now()
	}
	sess.UpdatedAt = sess.CreatedAt

	topics, err := marshalJSON(sess.Topics)
	if err != nil {
		return err
	}
	types, err := marshalJSON(sess.QuestionTypes)
	if err != nil {
		return err
	}

	query, args := r.s.builder().Insert("sessions").
		Columns(sessionColumns...).
		Values(sess.ID, sess.OwnerID, topics, string(sess.Difficulty), types,
			sess.QuestionCount, string(sess.Status), sess.CreatedAt, sess.UpdatedAt).
		Query()
	if _, err := r.s.exec(ctx, query, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert session %s: %w", sess.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*quiz.Session, error) {
	b := r.s.builder()
	query, args := b.Select(sessionColumns...).From(b.Table("sessions")).
		Where(entsql.EQ("id", id)).Query()

	sess, err := scanSession(r.s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (r *sessionRepo) List(ctx context.Context, ownerID string, limit int) ([]quiz.Session, error) {
	b := r.s.builder()
	sel := b.Select(sessionColumns...).From(b.Table("sessions")).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy(entsql.Desc("created_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []quiz.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Transition(ctx context.Context, id string, to quiz.SessionStatus) error {
	sources := quiz.SessionSources(to)
	from := make([]any, len(sources))
	for i, st := range sources {
		from[i] = string(st)
	}

	query, args := r.s.builder().Update("sessions").
		Set("status", string(to)).
		Set("updated_at", now()).
		Where(entsql.And(entsql.EQ("id", id), entsql.In("status", from...))).
		Query()
	n, err := r.s.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if n > 0 {
		return nil
	}

	ok, err := r.s.exists(ctx, "sessions", "id", id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("session %s to %s: %w", id, to, ErrInvalidTransition)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*quiz.Session, error) {
	var (
		sess               quiz.Session
		topics, types      string
		difficulty, status string
	)
	if err := row.Scan(&sess.ID, &sess.OwnerID, &topics, &difficulty, &types,
		&sess.QuestionCount, &status, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(topics), &sess.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	if err := json.Unmarshal([]byte(types), &sess.QuestionTypes); err != nil {
		return nil, fmt.Errorf("decode question types: %w", err)
	}
	sess.Difficulty = quiz.Difficulty(difficulty)
	sess.Status = quiz.SessionStatus(status)
	return &sess, nil
}
