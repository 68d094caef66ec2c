package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for one attempt.
	// Default: 30 minutes
	Timeout time.Duration
}

// DefaultTimeout bounds an attempt when TimeoutConfig.Timeout is unset.
const DefaultTimeout = 30 * time.Minute

// Timeout wraps operations with a timeout.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Timeout{config: config}
}

// Execute runs the operation with a timeout. The operation's context is
// cancelled at the deadline; Execute returns then even if op has not.
func (t *Timeout) Execute(parent context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, t.config.Timeout)
	defer cancel()

	// Only our own deadline is a timeout; the caller's ending is reported as is.
	expired := func() bool {
		return ctx.Err() == context.DeadlineExceeded && parent.Err() == nil
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && expired() {
			return fmt.Errorf("%w after %s", ErrTimeout, t.config.Timeout)
		}
		return err
	case <-ctx.Done():
		if expired() {
			return fmt.Errorf("%w after %s", ErrTimeout, t.config.Timeout)
		}
		return ctx.Err()
	}
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout is a convenience function to run an operation with timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: timeout}).Execute(ctx, op)
}
