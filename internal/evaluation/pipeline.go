package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/abhisek/prepwise/internal/metrics"
	"github.com/abhisek/prepwise/internal/prompt"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/store"
)

// ErrNotReevaluable is returned when re-evaluation is asked for an answer
// that is completed or skipped.
var ErrNotReevaluable = errors.New("answer cannot be re-evaluated")

// SubmitParams identifies the answered slot.
type SubmitParams struct {
	SessionID     string
	QuestionIndex int
	UserAnswer    string
}

// Pipeline stores an answer before scoring it and records the outcome.
type Pipeline struct {
	evaluator *Evaluator
	questions store.QuestionRepo
	answers   store.AnswerRepo
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// NewPipeline creates a Pipeline. log and m may be zero values.
func NewPipeline(ev *Evaluator, questions store.QuestionRepo, answers store.AnswerRepo, log zerolog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		evaluator: ev,
		questions: questions,
		answers:   answers,
		log:       log.With().Str("component", "evaluation").Logger(),
		metrics:   m,
	}
}

// Submit inserts a pending answer, evaluates it and stores the verdict.
// When evaluation fails the answer is flipped to evaluation_failed and is
// returned together with the error so it can be re-evaluated later.
func (p *Pipeline) Submit(ctx context.Context, params SubmitParams) (*quiz.Answer, error) {
	q, err := p.questions.GetByIndex(ctx, params.SessionID, params.QuestionIndex)
	if err != nil {
		return nil, fmt.Errorf("question %d: %w", params.QuestionIndex, err)
	}

	a := &quiz.Answer{
		SessionID:     params.SessionID,
		QuestionID:    &q.ID,
		QuestionIndex: params.QuestionIndex,
		UserAnswer:    strings.TrimSpace(params.UserAnswer),
		Status:        quiz.AnswerPending,
	}
	if err := p.answers.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}

	return p.evaluate(ctx, a, q)
}

// Reevaluate scores a stored answer again from its question and text.
// Only pending and failed answers qualify.
func (p *Pipeline) Reevaluate(ctx context.Context, answerID string) (*quiz.Answer, error) {
	a, err := p.answers.Get(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if !a.Status.Reevaluable() {
		return a, fmt.Errorf("answer %s is %s: %w", a.ID, a.Status, ErrNotReevaluable)
	}

	q, err := p.questions.GetByIndex(ctx, a.SessionID, a.QuestionIndex)
	if err != nil {
		return nil, fmt.Errorf("question %d: %w", a.QuestionIndex, err)
	}
	return p.evaluate(ctx, a, q)
}

func (p *Pipeline) evaluate(ctx context.Context, a *quiz.Answer, q *quiz.Question) (*quiz.Answer, error) {
	log := p.log.With().Str("answer_id", a.ID).Str("session_id", a.SessionID).Logger()

	res, err := p.evaluator.EvaluateWithRetry(ctx, quiz.EvaluationParamsFor(q.GeneratedQuestion, a.UserAnswer))
	if err != nil {
		p.markFailed(ctx, a, log)
		return a, err
	}

	meta := store.EvaluationMeta{PromptVersion: prompt.EvaluationVersion, ModelID: p.evaluator.ModelID()}
	if err := p.answers.Complete(ctx, a.ID, *res, meta); err != nil {
		return a, quiz.Wrap(quiz.KindStore, fmt.Errorf("failed to save evaluation: %w", err))
	}

	updated, err := p.answers.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("score", *updated.Score).Msg("answer evaluated")
	return updated, nil
}

// markFailed is best-effort: a failing flip is logged and dropped so the
// evaluation error stays the one reported.
func (p *Pipeline) markFailed(ctx context.Context, a *quiz.Answer, log zerolog.Logger) {
	if err := p.answers.MarkFailed(context.WithoutCancel(ctx), a.ID); err != nil {
		p.metrics.SecondaryWriteFailed("answer_status")
		log.Warn().Err(quiz.Wrap(quiz.KindSecondaryWrite, err)).Msg("failed to mark answer evaluation failed")
		return
	}
	a.Status = quiz.AnswerEvaluationFailed
}
