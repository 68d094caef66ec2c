package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures how a failed module computation is attempted again.
type RetryConfig struct {
	// MaxAttempts counts the first attempt. Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps any single wait, including hints from RetryableAfter.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier grows the wait after each attempt. 1 keeps it constant.
	// Default: 2
	Multiplier float64

	// Jitter adds up to a quarter of the wait at random.
	Jitter bool

	// RetryIf reports whether err is worth another attempt. Default: IsRetryable
	RetryIf func(err error) bool

	// OnRetry observes each failed attempt before the wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// ExhaustedError is returned when every attempt failed with a retryable
// error. It matches ErrMaxRetriesExceeded and unwraps to the last failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v (%d attempts): %v", ErrMaxRetriesExceeded, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrMaxRetriesExceeded, e.Last} }

// Retry runs an operation until it succeeds, fails permanently or runs out
// of attempts.
type Retry struct {
	config RetryConfig
}

// NewRetry fills unset fields of config with defaults.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier < 1 {
		config.Multiplier = 2
	}
	if config.RetryIf == nil {
		config.RetryIf = IsRetryable
	}
	return &Retry{config: config}
}

// Execute runs op. Errors rejected by RetryIf are returned as they are;
// running out of attempts returns an *ExhaustedError.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	wait := r.config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		switch {
		case err == nil:
			return nil
		case !r.config.RetryIf(err):
			return err
		case attempt >= r.config.MaxAttempts:
			return &ExhaustedError{Attempts: attempt, Last: err}
		}

		delay := r.backoff(wait, err)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		wait = time.Duration(float64(wait) * r.config.Multiplier)
	}
}

// backoff picks the wait before the next attempt: the error's own hint when
// it has one, otherwise the scheduled wait with optional jitter.
func (r *Retry) backoff(wait time.Duration, err error) time.Duration {
	if hint, ok := retryAfter(err); ok {
		return min(hint, r.config.MaxDelay)
	}
	delay := min(wait, r.config.MaxDelay)
	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
