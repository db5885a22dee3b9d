// Package retry wraps bounded exponential backoff around analysis attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"callwave/internal/analysis"
	"callwave/internal/config"
	"callwave/internal/logging"
)

// ErrExhausted indicates every permitted attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds the retry loop. MaxAttempts is a hard cap: the operation
// runs at most MaxAttempts times regardless of elapsed time.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default returns the standard analysis retry policy.
func Default() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// FromConfig builds a policy from configuration.
func FromConfig(cfg config.Retry) Policy {
	policy := Default()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if d := cfg.BaseDelayDuration(); d > 0 {
		policy.BaseDelay = d
	}
	if d := cfg.MaxDelayDuration(); d > 0 {
		policy.MaxDelay = d
	}
	return policy
}

// jitteredBackOff adds up to a tenth of the nominal delay on top of it.
// Jitter only ever lengthens a wait: the exponential floor is never undercut.
type jitteredBackOff struct {
	backoff.BackOff
}

func (j jitteredBackOff) NextBackOff() time.Duration {
	d := j.BackOff.NextBackOff()
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}

// Execute runs op under the policy. Delays double per attempt with a small
// additive jitter. Errors marked analysis.ErrFatal stop the loop
// immediately; context cancellation does too. Sleeping happens between
// attempts inside the backoff loop, never while holding any call state.
// Returns how many attempts ran and, on exhaustion, ErrExhausted wrapping
// the last error.
func (p Policy) Execute(ctx context.Context, logger *slog.Logger, op func(context.Context) error) (int, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.RandomizationFactor = 0 // jitter is additive, see jitteredBackOff
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0 // the attempt cap is the only budget
	wrapped := backoff.WithContext(backoff.WithMaxRetries(jitteredBackOff{bo}, uint64(maxAttempts-1)), ctx)

	attempts := 0
	err := backoff.RetryNotify(
		func() error {
			attempts++
			opErr := op(ctx)
			if opErr == nil {
				return nil
			}
			if analysis.Fatal(opErr) {
				return backoff.Permanent(opErr)
			}
			return opErr
		},
		wrapped,
		func(opErr error, delay time.Duration) {
			logger.Warn("attempt failed, backing off",
				logging.Int(logging.FieldAttempt, attempts),
				logging.Duration("delay", delay),
				logging.Error(opErr))
		},
	)
	if err == nil {
		return attempts, nil
	}
	if analysis.Fatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return attempts, err
	}
	return attempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
}
