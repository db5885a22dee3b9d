package analysis

import (
	"errors"
	"fmt"
)

// ErrRetryable marks a failure worth another attempt.
var ErrRetryable = errors.New("retryable analysis failure")

// ErrFatal marks a failure no retry can fix.
var ErrFatal = errors.New("fatal analysis failure")

// RetryableError wraps err so Retryable reports true.
func RetryableError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRetryable, fmt.Sprintf(format, args...))
}

// FatalError wraps err so Fatal reports true.
func FatalError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}

// Retryable reports whether err consumes a retry attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

// Fatal reports whether err short-circuits retries.
func Fatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
