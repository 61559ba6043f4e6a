package invoke

import (
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted is returned (wrapping the last failure) once the attempt
// budget is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RateLimited marks err as a rate-limit signal with a suggested wait.
//
// Example:
//
//	return invoke.RateLimited(err, 3*time.Second)
func RateLimited(err error, wait time.Duration) error {
	if err == nil {
		return nil
	}
	if wait < 0 {
		wait = 0
	}
	return rateLimitedError{err: err, wait: wait}
}

// Transient marks err as a retryable network or timeout failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// RetryAfter reports the wait hint carried by a RateLimited error.
func RetryAfter(err error) (time.Duration, bool) {
	var e rateLimitedError
	if errors.As(err, &e) {
		return e.wait, true
	}
	return 0, false
}

func IsRateLimited(err error) bool {
	var e rateLimitedError
	return errors.As(err, &e)
}

func IsTransient(err error) bool {
	var e transientError
	return errors.As(err, &e)
}

// IsRetryable reports whether the invoker would retry err.
func IsRetryable(err error) bool { return IsRateLimited(err) || IsTransient(err) }

type rateLimitedError struct {
	err  error
	wait time.Duration
}

func (e rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.wait, e.err)
}

func (e rateLimitedError) Unwrap() error { return e.err }

type transientError struct{ err error }

func (e transientError) Error() string { return fmt.Sprintf("transient: %v", e.err) }

func (e transientError) Unwrap() error { return e.err }
