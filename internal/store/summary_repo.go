package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/prepwise/internal/quiz"
)

var summaryColumns = []string{
	"session_id", "final_score", "num_completed", "num_skipped", "num_failed",
	"topic_breakdown", "difficulty", "recommended_difficulty", "created_at",
}

type summaryRepo struct {
	s *Store
}

func (r *summaryRepo) Save(ctx context.Context, sum quiz.Summary) error {
	breakdown, err := marshalJSON(sum.TopicBreakdown)
	if err != nil {
		return err
	}

	query, args := r.s.builder().Insert("session_summaries").
		Columns(summaryColumns...).
		Values(sum.SessionID, sum.FinalScore, sum.NumCompleted, sum.NumSkipped, sum.NumFailed,
			breakdown, string(sum.Difficulty), string(sum.RecommendedDifficulty), now()).
		OnConflict(
			entsql.ConflictColumns("session_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("save session summary: %w", err)
	}
	return nil
}

func (r *summaryRepo) Get(ctx context.Context, sessionID string) (*quiz.Summary, error) {
	b := r.s.builder()
	query, args := b.Select(summaryColumns...).From(b.Table("session_summaries")).
		Where(entsql.EQ("session_id", sessionID)).Query()

	var (
		sum                   quiz.Summary
		breakdown             string
		difficulty, recommend string
		createdAt             sql.NullTime
	)
	err := r.s.db.QueryRowContext(ctx, query, args...).Scan(&sum.SessionID, &sum.FinalScore,
		&sum.NumCompleted, &sum.NumSkipped, &sum.NumFailed, &breakdown, &difficulty, &recommend, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session summary: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdown), &sum.TopicBreakdown); err != nil {
		return nil, fmt.Errorf("decode topic breakdown: %w", err)
	}
	sum.Difficulty = quiz.Difficulty(difficulty)
	sum.RecommendedDifficulty = quiz.Difficulty(recommend)
	return &sum, nil
}
