package resilience

import (
	"errors"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrMaxRetriesExceeded is matched by *ExhaustedError.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrPanic is returned when an operation run on its own goroutine panics.
	ErrPanic = errors.New("resilience: operation panicked")
)

// retryableError marks an error as transient.
type retryableError struct {
	err   error
	after time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient so Retry will try again. It returns nil
// for a nil err.
func Retryable(err error) error {
	return RetryableAfter(err, 0)
}

// RetryableAfter marks err as transient and asks Retry to wait d before the
// next attempt instead of its own schedule. A d of zero or less leaves the
// schedule alone.
func RetryableAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err, after: d}
}

// IsRetryable reports whether err, or anything it wraps, was marked with
// Retryable.
func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

func retryAfter(err error) (time.Duration, bool) {
	var r *retryableError
	if errors.As(err, &r) && r.after > 0 {
		return r.after, true
	}
	return 0, false
}
