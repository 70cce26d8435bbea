package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recorder captures waits instead of sleeping.
type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(r *recorder) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		Sleep:       r.sleep,
	}
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	rec := &recorder{}
	attempts, err := testPolicy(rec).Do(context.Background(), func(context.Context, int) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if len(rec.waits) != 0 {
		t.Fatalf("expected no waits, got %v", rec.waits)
	}
}

func TestDo_TransientThenSuccess(t *testing.T) {
	rec := &recorder{}
	attempts, err := testPolicy(rec).Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.waits) != len(want) || rec.waits[0] != want[0] || rec.waits[1] != want[1] {
		t.Fatalf("waits = %v, want %v", rec.waits, want)
	}
}

func TestDo_AllAttemptsFail(t *testing.T) {
	rec := &recorder{}
	calls := 0
	attempts, err := testPolicy(rec).Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		return errors.New("attempt failed")
	})
	if err == nil || err.Error() != "attempt failed" {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("expected 3 attempts, got %d (calls %d)", attempts, calls)
	}
	if len(rec.waits) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(rec.waits))
	}
}

func TestDo_NonRetriableStops(t *testing.T) {
	rec := &recorder{}
	permanent := errors.New("permanent")
	p := testPolicy(rec)
	p.Retriable = func(err error) bool { return !errors.Is(err, permanent) }

	attempts, err := p.Do(context.Background(), func(context.Context, int) error {
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}

	attempts, err := p.Do(ctx, func(context.Context, int) error {
		cancel()
		return errors.New("down")
	})
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDo_CancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}

	_, err := p.Do(ctx, func(context.Context, int) error { return errors.New("down") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestJitterBounds(t *testing.T) {
	for _, r := range []float64{0, 0.5, 0.999} {
		rec := &recorder{}
		p := testPolicy(rec)
		p.Jitter = 0.1
		p.Rand = func() float64 { return r }

		p.Do(context.Background(), func(context.Context, int) error { return errors.New("down") })

		bounds := [][2]time.Duration{{time.Second, 1100 * time.Millisecond}, {2 * time.Second, 2200 * time.Millisecond}}
		for i, w := range rec.waits {
			if w < bounds[i][0] || w > bounds[i][1] {
				t.Errorf("rand=%v wait[%d] = %v, want within %v", r, i, w, bounds[i])
			}
		}
	}
}

func TestHintAndMaxDelay(t *testing.T) {
	rec := &recorder{}
	p := testPolicy(rec)
	p.MaxDelay = 5 * time.Second
	p.Hint = func(error) time.Duration { return 30 * time.Second }

	p.Do(context.Background(), func(context.Context, int) error { return errors.New("rate limited") })

	for i, w := range rec.waits {
		if w != 5*time.Second {
			t.Errorf("wait[%d] = %v, want 5s", i, w)
		}
	}
}

func TestDelay(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Multiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}
