// Package session manages practice sessions: creation, skipped answers,
// completion and the scored summary.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/abhisek/prepwise/internal/metrics"
	"github.com/abhisek/prepwise/internal/prompt"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/store"
)

// Placeholder evaluation stored for skipped answers.
const (
	SkippedReasoning   = "Question skipped by user."
	SkippedFeedback    = "This question was skipped, so no feedback is available."
	SkippedModelAnswer = "No model answer is shown for skipped questions."
)

var (
	// ErrInvalidSession wraps a session configuration that fails validation.
	ErrInvalidSession = errors.New("invalid session")

	// ErrIndexOutOfRange is returned for a slot outside [0, question count).
	ErrIndexOutOfRange = errors.New("question index out of range")

	// ErrNotInProgress is returned when a slot of a closed session is
	// generated or answered.
	ErrNotInProgress = errors.New("session is not in progress")
)

// Repos groups the repositories a Service needs.
type Repos struct {
	Sessions  store.SessionRepo
	Questions store.QuestionRepo
	Answers   store.AnswerRepo
	Summaries store.SummaryRepo
}

// ReposFrom returns the repositories of s.
func ReposFrom(s *store.Store) Repos {
	return Repos{
		Sessions:  s.Sessions(),
		Questions: s.Questions(),
		Answers:   s.Answers(),
		Summaries: s.Summaries(),
	}
}

// Service implements session bookkeeping.
type Service struct {
	repos   Repos
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service. m may be nil.
func NewService(repos Repos, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repos:   repos,
		log:     log.With().Str("component", "session").Logger(),
		metrics: m,
	}
}

// Detail is a session with everything stored for it.
type Detail struct {
	Session   quiz.Session
	Questions []quiz.Question
	Answers   []quiz.Answer
}

// Create validates and stores a new in-progress session.
func (s *Service) Create(ctx context.Context, sess quiz.Session) (*quiz.Session, error) {
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	sess.ID = ""
	sess.Status = quiz.SessionInProgress
	if err := s.repos.Sessions.Create(ctx, &sess); err != nil {
		return nil, err
	}
	s.log.Info().Str("session_id", sess.ID).Strs("topics", sess.Topics).
		Str("difficulty", string(sess.Difficulty)).Int("questions", sess.QuestionCount).
		Msg("session created")
	return &sess, nil
}

// Get returns the session with its questions and answers.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	sess, err := s.repos.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.repos.Questions.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, err := s.repos.Answers.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Session: *sess, Questions: questions, Answers: answers}, nil
}

// OpenSlot returns the session when it is in progress and index addresses
// one of its slots.
func (s *Service) OpenSlot(ctx context.Context, sessionID string, index int) (*quiz.Session, error) {
	sess, err := s.repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != quiz.SessionInProgress {
		return nil, fmt.Errorf("%w: %s", ErrNotInProgress, sess.Status)
	}
	if !sess.HasIndex(index) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, sess.QuestionCount)
	}
	return sess, nil
}

// GenerationParams returns the generation input for a slot of an
// in-progress session.
func (s *Service) GenerationParams(ctx context.Context, sessionID string, index int) (quiz.GenerationParams, error) {
	sess, err := s.OpenSlot(ctx, sessionID, index)
	if err != nil {
		return quiz.GenerationParams{}, err
	}
	return sess.GenerationParams(index), nil
}

// SkipParams identifies the skipped slot.
type SkipParams struct {
	SessionID     string
	QuestionIndex int
}

// InsertSkippedAnswer records a skip with score 0 and placeholder texts.
// A slot that already holds an answer is left alone and nil is returned.
func (s *Service) InsertSkippedAnswer(ctx context.Context, params SkipParams) error {
	sess, err := s.repos.Sessions.Get(ctx, params.SessionID)
	if err != nil {
		return err
	}
	if !sess.HasIndex(params.QuestionIndex) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, params.QuestionIndex, sess.QuestionCount)
	}

	score := 0
	a := &quiz.Answer{
		SessionID:     params.SessionID,
		QuestionIndex: params.QuestionIndex,
		Status:        quiz.AnswerSkipped,
		Score:         &score,
		Reasoning:     SkippedReasoning,
		Feedback:      SkippedFeedback,
		ModelAnswer:   SkippedModelAnswer,
	}
	if q, err := s.repos.Questions.GetByIndex(ctx, params.SessionID, params.QuestionIndex); err == nil {
		a.QuestionID = &q.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	err = s.repos.Answers.Insert(ctx, a)
	if errors.Is(err, store.ErrDuplicate) {
		s.log.Debug().Str("session_id", params.SessionID).Int("question_index", params.QuestionIndex).
			Msg("skip ignored, slot already answered")
		return nil
	}
	return err
}

// CompleteQuizSession marks the session completed and returns its summary.
// Completing twice is allowed. Storing the summary is best-effort.
func (s *Service) CompleteQuizSession(ctx context.Context, sessionID string) (*quiz.Summary, error) {
	if err := s.repos.Sessions.Transition(ctx, sessionID, quiz.SessionCompleted); err != nil {
		return nil, fmt.Errorf("failed to complete quiz session: %w", err)
	}

	sum, err := s.compute(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Summaries.Save(context.WithoutCancel(ctx), *sum); err != nil {
		s.metrics.SecondaryWriteFailed("session_summary")
		s.log.Warn().Err(quiz.Wrap(quiz.KindSecondaryWrite, err)).Str("session_id", sessionID).
			Msg("failed to store session summary")
	}

	s.log.Info().Str("session_id", sessionID).Int("final_score", sum.FinalScore).
		Str("tier", quiz.ScoreTier(sum.FinalScore)).
		Str("recommended", string(sum.RecommendedDifficulty)).
		Msg("session completed")
	return sum, nil
}

// Summary returns the stored summary, computing it when none was stored.
func (s *Service) Summary(ctx context.Context, sessionID string) (*quiz.Summary, error) {
	sum, err := s.repos.Summaries.Get(ctx, sessionID)
	if err == nil {
		return sum, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.compute(ctx, sessionID)
}

func (s *Service) compute(ctx context.Context, sessionID string) (*quiz.Summary, error) {
	d, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	topics := make(map[int]string, len(d.Questions))
	for _, q := range d.Questions {
		topics[q.Index] = q.Topic
	}
	sum := quiz.ComputeSummary(d.Session, d.Answers, topics)
	return &sum, nil
}

// PromptVersions reports answer outcomes per evaluation prompt version,
// newest version first.
func (s *Service) PromptVersions(ctx context.Context) ([]store.VersionStat, error) {
	stats, err := s.repos.Answers.VersionStats(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(stats))
	byVersion := make(map[string]store.VersionStat, len(stats))
	var unversioned []store.VersionStat
	for _, st := range stats {
		if prompt.ValidateVersion(st.Version) != nil {
			unversioned = append(unversioned, st)
			continue
		}
		versions = append(versions, st.Version)
		byVersion[st.Version] = st
	}
	prompt.SortVersions(versions)

	out := make([]store.VersionStat, 0, len(stats))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, byVersion[versions[i]])
	}
	return append(out, unversioned...), nil
}

// List returns the owner's sessions, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit int) ([]quiz.Session, error) {
	return s.repos.Sessions.List(ctx, ownerID, limit)
}

// Abandon closes an in-progress session without scoring it.
func (s *Service) Abandon(ctx context.Context, sessionID string) error {
	if err := s.repos.Sessions.Transition(ctx, sessionID, quiz.SessionAbandoned); err != nil {
		return fmt.Errorf("failed to abandon session: %w", err)
	}
	s.log.Info().Str("session_id", sessionID).Msg("session abandoned")
	return nil
}
