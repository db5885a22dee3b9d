package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"callwave/internal/analysis"
	"callwave/internal/logging"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	attempts, err := fastPolicy(5).Execute(context.Background(), logging.NewNop(), func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	calls := 0
	attempts, err := fastPolicy(5).Execute(context.Background(), logging.NewNop(), func(context.Context) error {
		calls++
		if calls < 4 {
			return analysis.RetryableError("transient %d", calls)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempts != 4 || calls != 4 {
		t.Fatalf("expected success on attempt 4, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestExecuteExhaustsAtMaxAttempts(t *testing.T) {
	calls := 0
	attempts, err := fastPolicy(5).Execute(context.Background(), logging.NewNop(), func(context.Context) error {
		calls++
		return analysis.RetryableError("always down")
	})
	if calls != 5 {
		t.Fatalf("max attempts is a hard cap, expected 5 calls, got %d", calls)
	}
	if attempts != 5 {
		t.Fatalf("expected 5 attempts reported, got %d", attempts)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !analysis.Retryable(err) {
		t.Fatalf("exhaustion should wrap the last error, got %v", err)
	}
}

func TestExecuteFatalShortCircuits(t *testing.T) {
	calls := 0
	attempts, err := fastPolicy(5).Execute(context.Background(), logging.NewNop(), func(context.Context) error {
		calls++
		return analysis.FatalError("bad request")
	})
	if calls != 1 || attempts != 1 {
		t.Fatalf("fatal errors must not retry, got calls=%d attempts=%d", calls, attempts)
	}
	if !analysis.Fatal(err) {
		t.Fatalf("expected fatal error surfaced, got %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Fatalf("fatal stop is not exhaustion: %v", err)
	}
}

func TestExecuteDelaysNeverUndercutExponentialFloor(t *testing.T) {
	policy := Policy{
		MaxAttempts: 5,
		BaseDelay:   20 * time.Millisecond,
		MaxDelay:    time.Second,
	}
	// Three failures wait 1+2+4 base units before the fourth attempt runs.
	// Jitter is additive, so the measured total can only exceed the floor.
	floor := 7 * policy.BaseDelay

	calls := 0
	start := time.Now()
	attempts, err := policy.Execute(context.Background(), logging.NewNop(), func(context.Context) error {
		calls++
		if calls < 4 {
			return analysis.RetryableError("transient %d", calls)
		}
		return nil
	})
	elapsed := time.Since(start)

	if err != nil || attempts != 4 {
		t.Fatalf("expected success on attempt 4, got attempts=%d err=%v", attempts, err)
	}
	if elapsed < floor {
		t.Fatalf("elapsed %v undercuts the pre-jitter floor %v", elapsed, floor)
	}
}

func TestExecuteStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := fastPolicy(100).Execute(ctx, logging.NewNop(), func(context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return analysis.RetryableError("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls > 3 {
		t.Fatalf("cancellation should stop the loop promptly, got %d calls", calls)
	}
}

func TestFromConfigAndDefaults(t *testing.T) {
	policy := Default()
	if policy.MaxAttempts != 5 || policy.BaseDelay != time.Second || policy.MaxDelay != 60*time.Second {
		t.Fatalf("unexpected defaults: %+v", policy)
	}

	zero := Policy{}
	attempts, err := zero.Execute(context.Background(), nil, func(context.Context) error { return nil })
	if err != nil || attempts != 1 {
		t.Fatalf("zero policy should run once: attempts=%d err=%v", attempts, err)
	}
}
