// Package questiongen generates, validates and stores interview questions.
package questiongen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhisek/prepwise/internal/llm"
	"github.com/abhisek/prepwise/internal/metrics"
	"github.com/abhisek/prepwise/internal/prompt"
	"github.com/abhisek/prepwise/internal/provider"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/retry"
	"github.com/abhisek/prepwise/internal/store"
	"github.com/abhisek/prepwise/internal/validate"
)

const op = "question generation"

// Pipeline turns generation parameters into a persisted question.
// It holds no per-call state and is safe for concurrent use.
type Pipeline struct {
	provider   provider.Provider
	questions  store.QuestionRepo
	cfg        Config
	validators []Validator
	log        zerolog.Logger
	metrics    *metrics.Metrics
	sleep      func(context.Context, time.Duration) error
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log.With().Str("component", "questiongen").Logger() }
}

// WithMetrics records attempts and results in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithValidators appends validators after the topic and difficulty checks.
func WithValidators(v ...Validator) Option {
	return func(p *Pipeline) { p.validators = append(p.validators, v...) }
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = fn }
}

// New creates a Pipeline.
func New(prov provider.Provider, questions store.QuestionRepo, cfg Config, opts ...Option) (*Pipeline, error) {
	h, err := NewHeuristic(cfg.Heuristic)
	if err != nil {
		return nil, fmt.Errorf("difficulty heuristic: %w", err)
	}
	p := &Pipeline{
		provider:  prov,
		questions: questions,
		cfg:       cfg,
		validators: []Validator{
			&TopicValidator{},
			&DifficultyValidator{Heuristic: h},
		},
		log: zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Generate produces one question for the slot in params. Any failing step
// consumes an attempt. maxAttempts <= 0 uses the configured default.
// When every attempt fails the error is a *quiz.ExhaustedError carrying the
// last cause. A slot that is already filled returns store.ErrDuplicate
// without retrying.
func (p *Pipeline) Generate(ctx context.Context, params quiz.GenerationParams, maxAttempts int) (*quiz.Question, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation params: %w", err)
	}
	if maxAttempts <= 0 {
		maxAttempts = p.cfg.MaxAttempts
	}

	start := time.Now()
	log := p.log.With().
		Str("session_id", params.SessionID).
		Int("question_index", params.QuestionIndex).
		Logger()

	var q *quiz.Question
	attempts, err := p.policy(maxAttempts, log).Do(ctx, func(ctx context.Context, attempt int) error {
		raw, err := p.provider.GenerateQuestion(ctx, params)
		if err != nil {
			err = quiz.Wrap(quiz.KindProvider, err)
		} else {
			q, err = p.Accept(ctx, params, raw)
		}
		p.metrics.Attempt(metrics.PipelineGeneration, err)
		return err
	})

	switch {
	case err == nil:
	case ctx.Err() != nil, errors.Is(err, store.ErrDuplicate):
		// Not a retry outcome.
	default:
		err = &quiz.ExhaustedError{Op: op, Attempts: attempts, Last: err}
		log.Error().Err(err).Msg("question generation exhausted")
	}
	p.metrics.Result(metrics.PipelineGeneration, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("question_id", q.ID).Int("attempts", attempts).Msg("question generated")
	return q, nil
}

// Stream runs one streamed attempt: chunks are passed to onChunk as they
// arrive, then the accumulated text is validated and stored like any
// attempt of Generate. An error from onChunk stops the stream.
func (p *Pipeline) Stream(ctx context.Context, params quiz.GenerationParams, onChunk func(string) error) (*quiz.Question, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation params: %w", err)
	}

	start := time.Now()
	q, err := p.stream(ctx, params, onChunk)
	p.metrics.Attempt(metrics.PipelineGeneration, err)
	p.metrics.Result(metrics.PipelineGeneration, time.Since(start), err)
	return q, err
}

func (p *Pipeline) stream(ctx context.Context, params quiz.GenerationParams, onChunk func(string) error) (*quiz.Question, error) {
	var b strings.Builder
	for chunk, err := range p.provider.GenerateQuestionStream(ctx, params) {
		if err != nil {
			return nil, quiz.Wrap(quiz.KindProvider, err)
		}
		b.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return nil, err
		}
	}
	return p.Accept(ctx, params, b.String())
}

// Accept validates raw model output for params and stores it in the slot.
func (p *Pipeline) Accept(ctx context.Context, params quiz.GenerationParams, raw string) (*quiz.Question, error) {
	gq, err := validate.Question(raw)
	if err != nil {
		return nil, err
	}
	for _, v := range p.validators {
		if verr := v.Validate(gq, params); verr != nil {
			return nil, quiz.Wrap(quiz.KindHeuristic, verr)
		}
	}

	q := &quiz.Question{
		SessionID:         params.SessionID,
		Index:             params.QuestionIndex,
		GeneratedQuestion: gq,
		PromptVersion:     prompt.QuestionVersion,
		ModelID:           p.provider.ModelID(),
	}
	if err := p.questions.Insert(ctx, q); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		return nil, quiz.Wrap(quiz.KindStore, fmt.Errorf("failed to persist question: %w", err))
	}
	return q, nil
}

func (p *Pipeline) policy(maxAttempts int, log zerolog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   p.cfg.BaseDelay,
		Multiplier:  2,
		MaxDelay:    p.cfg.MaxDelay,
		// A rate-limited backend's Retry-After outranks the backoff.
		Hint:        llm.RetryAfter,
		Retriable: func(err error) bool {
			return !errors.Is(err, store.ErrDuplicate) && quiz.KindOf(err).Retriable()
		},
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn().Err(err).
				Int("attempt", attempt).
				Str("kind", quiz.KindOf(err).String()).
				Dur("backoff", wait).
				Msg("question generation attempt failed")
		},
		Sleep: p.sleep,
	}
}
