// Package retry runs an operation with a bounded number of attempts and
// exponential backoff between them.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy configures a retry loop. The zero value makes one attempt.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration

	// Jitter adds up to this fraction of the delay, never subtracts.
	Jitter float64

	// Retriable decides whether a failed attempt may be retried.
	// Nil retries everything except context errors.
	Retriable func(error) bool

	// Hint returns a minimum wait requested by the failure, e.g. a rate
	// limit's Retry-After. Nil means no hint.
	Hint func(error) time.Duration

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)

	// Sleep and Rand replace the wall clock and random source in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// Func is one attempt. attempt counts from 1.
type Func func(ctx context.Context, attempt int) error

// Do runs fn until it succeeds, returns a non-retriable error, the context
// is done, or MaxAttempts is reached. It returns the number of attempts made
// and the last error.
func (p Policy) Do(ctx context.Context, fn Func) (int, error) {
	maxAttempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.retriable(err) {
			return attempt, err
		}

		// Last attempt, nothing to wait for.
		if attempt == maxAttempts {
			break
		}

		wait := p.wait(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return attempt, err
		}
	}

	return maxAttempts, lastErr
}

// Delay returns the backoff after the given failed attempt, before jitter
// and hints: BaseDelay * Multiplier^(attempt-1).
func (p Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	wait := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && wait > float64(p.MaxDelay) {
		wait = float64(p.MaxDelay)
	}
	return time.Duration(wait)
}

func (p Policy) wait(attempt int, err error) time.Duration {
	wait := p.Delay(attempt)
	if p.Jitter > 0 {
		wait += time.Duration(float64(wait) * p.Jitter * p.rand())
	}
	if p.Hint != nil {
		if hint := p.Hint(err); hint > wait {
			wait = hint
		}
	}
	if p.MaxDelay > 0 && wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	return wait
}

func (p Policy) retriable(err error) bool {
	if p.Retriable != nil {
		return p.Retriable(err)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (p Policy) rand() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
