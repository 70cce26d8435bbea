// Package evaluation scores answers and records the outcome.
package evaluation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhisek/prepwise/internal/metrics"
	"github.com/abhisek/prepwise/internal/provider"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/retry"
	"github.com/abhisek/prepwise/internal/validate"
)

const op = "evaluation"

// Evaluator asks the provider for a verdict with a deadline per attempt and
// validates it. It is safe for concurrent use.
type Evaluator struct {
	provider provider.Provider
	cfg      Config
	log      zerolog.Logger
	metrics  *metrics.Metrics
	sleep    func(context.Context, time.Duration) error
	rand     func() float64
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the evaluator logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Evaluator) { e.log = log.With().Str("component", "evaluation").Logger() }
}

// WithMetrics records attempts and results in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Evaluator) { e.sleep = fn }
}

// WithRand replaces the jitter source. fn returns a value in [0, 1).
func WithRand(fn func() float64) Option {
	return func(e *Evaluator) { e.rand = fn }
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(prov provider.Provider, cfg Config, opts ...Option) *Evaluator {
	e := &Evaluator{provider: prov, cfg: cfg, log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ModelID identifies the model that produces verdicts.
func (e *Evaluator) ModelID() string {
	return e.provider.ModelID()
}

// EvaluateWithRetry scores one answer. Each attempt races the provider
// against the configured timeout; a timed-out, failed or malformed attempt
// is retried after a jittered backoff. When every attempt fails the error
// is a *quiz.ExhaustedError carrying the last cause.
func (e *Evaluator) EvaluateWithRetry(ctx context.Context, params quiz.EvaluationParams) (*quiz.EvaluationResult, error) {
	start := time.Now()

	var res quiz.EvaluationResult
	policy := retry.Policy{
		MaxAttempts: e.cfg.MaxAttempts,
		BaseDelay:   e.cfg.BaseDelay,
		Multiplier:  2,
		Jitter:      e.cfg.Jitter,
		Retriable:   func(err error) bool { return quiz.KindOf(err).Retriable() },
		OnRetry: func(attempt int, err error, wait time.Duration) {
			e.log.Warn().Err(err).
				Int("attempt", attempt).
				Str("kind", quiz.KindOf(err).String()).
				Dur("backoff", wait).
				Msg("evaluation attempt failed")
		},
		Sleep: e.sleep,
		Rand:  e.rand,
	}
	attempts, err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		var err error
		res, err = e.attempt(ctx, params)
		e.metrics.Attempt(metrics.PipelineEvaluation, err)
		return err
	})
	if err != nil && ctx.Err() == nil {
		err = &quiz.ExhaustedError{Op: op, Attempts: attempts, Last: err}
		e.log.Error().Err(err).Msg("evaluation exhausted")
	}
	e.metrics.Result(metrics.PipelineEvaluation, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type verdict struct {
	raw json.RawMessage
	err error
}

// attempt runs one provider call against the deadline. The call is
// cancelled when the deadline wins.
func (e *Evaluator) attempt(ctx context.Context, params quiz.EvaluationParams) (quiz.EvaluationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	done := make(chan verdict, 1)
	go func() {
		raw, err := e.provider.EvaluateAnswer(callCtx, params)
		done <- verdict{raw: raw, err: err}
	}()

	select {
	case v := <-done:
		if v.err != nil {
			if callCtx.Err() != nil && ctx.Err() == nil {
				return quiz.EvaluationResult{}, e.timedOut()
			}
			return quiz.EvaluationResult{}, quiz.Wrap(quiz.KindProvider, v.err)
		}
		return validate.Evaluation(v.raw)
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return quiz.EvaluationResult{}, ctx.Err()
		}
		return quiz.EvaluationResult{}, e.timedOut()
	}
}

func (e *Evaluator) timedOut() error {
	return quiz.Errorf(quiz.KindTimeout, "evaluation timed out after %s", e.cfg.Timeout)
}
