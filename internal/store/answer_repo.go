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

var answerColumns = []string{
	"id", "session_id", "question_id", "question_index", "user_answer", "status",
	"score", "reasoning", "feedback", "model_answer", "eval_prompt_version",
	"model_id", "created_at", "evaluated_at",
}

type answerRepo struct {
	s *Store
}

func (r *answerRepo) Insert(ctx context.Context, a *quiz.Answer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = quiz.AnswerPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}

	var score sql.NullInt64
	if a.Score != nil {
		score = sql.NullInt64{Int64: int64(*a.Score), Valid: true}
	}
	var questionID sql.NullString
	if a.QuestionID != nil {
		questionID = sql.NullString{String: *a.QuestionID, Valid: true}
	}
	var evaluatedAt sql.NullTime
	if a.EvaluatedAt != nil {
		evaluatedAt = sql.NullTime{Time: *a.EvaluatedAt, Valid: true}
	}

	query, args := r.s.builder().Insert("answers").
		Columns(answerColumns...).
		Values(a.ID, a.SessionID, questionID, a.QuestionIndex, a.UserAnswer, string(a.Status),
			score, nullString(a.Reasoning), nullString(a.Feedback), nullString(a.ModelAnswer),
			nullString(a.EvalPromptVersion), nullString(a.ModelID), a.CreatedAt, evaluatedAt).
		Query()
	if _, err := r.s.exec(ctx, query, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("answer %s/%d: %w", a.SessionID, a.QuestionIndex, ErrDuplicate)
		}
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (r *answerRepo) Get(ctx context.Context, id string) (*quiz.Answer, error) {
	return r.one(ctx, entsql.EQ("id", id))
}

func (r *answerRepo) GetByIndex(ctx context.Context, sessionID string, index int) (*quiz.Answer, error) {
	return r.one(ctx, entsql.And(entsql.EQ("session_id", sessionID), entsql.EQ("question_index", index)))
}

func (r *answerRepo) one(ctx context.Context, where *entsql.Predicate) (*quiz.Answer, error) {
	b := r.s.builder()
	query, args := b.Select(answerColumns...).From(b.Table("answers")).Where(where).Query()

	a, err := scanAnswer(r.s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("answer: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	return a, nil
}

func (r *answerRepo) ListBySession(ctx context.Context, sessionID string) ([]quiz.Answer, error) {
	b := r.s.builder()
	query, args := b.Select(answerColumns...).From(b.Table("answers")).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("question_index").
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []quiz.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *answerRepo) Complete(ctx context.Context, id string, res quiz.EvaluationResult, meta EvaluationMeta) error {
	upd := r.s.builder().Update("answers").
		Set("status", string(quiz.AnswerCompleted)).
		Set("score", res.Score).
		Set("reasoning", res.Reasoning).
		Set("feedback", res.Feedback).
		Set("model_answer", res.ModelAnswer).
		Set("eval_prompt_version", meta.PromptVersion).
		Set("model_id", meta.ModelID).
		Set("evaluated_at", now())
	return r.transition(ctx, id, quiz.AnswerCompleted, upd)
}

func (r *answerRepo) MarkFailed(ctx context.Context, id string) error {
	upd := r.s.builder().Update("answers").
		Set("status", string(quiz.AnswerEvaluationFailed))
	return r.transition(ctx, id, quiz.AnswerEvaluationFailed, upd)
}

// transition runs upd guarded by the statuses allowed to reach to.
func (r *answerRepo) transition(ctx context.Context, id string, to quiz.AnswerStatus, upd *entsql.UpdateBuilder) error {
	sources := quiz.AnswerSources(to)
	from := make([]any, len(sources))
	for i, st := range sources {
		from[i] = string(st)
	}

	query, args := upd.Where(entsql.And(entsql.EQ("id", id), entsql.In("status", from...))).Query()
	n, err := r.s.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	if n > 0 {
		return nil
	}

	ok, err := r.s.exists(ctx, "answers", "id", id)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	if !ok {
		return fmt.Errorf("answer %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("answer %s to %s: %w", id, to, ErrInvalidTransition)
}

func (r *answerRepo) VersionStats(ctx context.Context) ([]VersionStat, error) {
	b := r.s.builder()
	completed := fmt.Sprintf("SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END)", quiz.AnswerCompleted)
	failed := fmt.Sprintf("SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END)", quiz.AnswerEvaluationFailed)

	query, args := b.Select(
		"eval_prompt_version",
		entsql.As(entsql.Count("*"), "answers"),
		entsql.As(completed, "completed"),
		entsql.As(failed, "failed"),
		entsql.As("COALESCE(AVG(score), 0)", "avg_score"),
	).
		From(b.Table("answers")).
		Where(entsql.And(entsql.NotNull("eval_prompt_version"), entsql.NEQ("status", string(quiz.AnswerSkipped)))).
		GroupBy("eval_prompt_version").
		Query()

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("prompt version stats: %w", err)
	}
	defer rows.Close()

	var out []VersionStat
	for rows.Next() {
		var st VersionStat
		if err := rows.Scan(&st.Version, &st.Answers, &st.Completed, &st.Failed, &st.AvgScore); err != nil {
			return nil, fmt.Errorf("scan version stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanAnswer(row rowScanner) (*quiz.Answer, error) {
	var (
		a                                quiz.Answer
		status                           string
		questionID                       sql.NullString
		score                            sql.NullInt64
		reasoning, feedback, modelAnswer sql.NullString
		promptVersion, modelID           sql.NullString
		evaluatedAt                      sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.SessionID, &questionID, &a.QuestionIndex, &a.UserAnswer, &status,
		&score, &reasoning, &feedback, &modelAnswer, &promptVersion,
		&modelID, &a.CreatedAt, &evaluatedAt); err != nil {
		return nil, err
	}
	a.Status = quiz.AnswerStatus(status)
	if questionID.Valid {
		a.QuestionID = &questionID.String
	}
	if score.Valid {
		v := int(score.Int64)
		a.Score = &v
	}
	if evaluatedAt.Valid {
		a.EvaluatedAt = &evaluatedAt.Time
	}
	a.Reasoning = reasoning.String
	a.Feedback = feedback.String
	a.ModelAnswer = modelAnswer.String
	a.EvalPromptVersion = promptVersion.String
	a.ModelID = modelID.String
	return &a, nil
}
