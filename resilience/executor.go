package resilience

import (
	"context"
	"errors"
	"time"
)

// Executor composes the resilience patterns around a computation.
// The zero Executor and a nil *Executor run operations unguarded.
type Executor struct {
	bulkhead *Bulkhead
	retry    *Retry
	timeout  *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithTimeout adds a per-attempt timeout to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// WithTimeoutConfig adds timeout with custom config to the executor.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// Config is the declarative form of an Executor, as read from
// configuration files. Zero fields leave the pattern out.
type Config struct {
	// Timeout bounds each attempt.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	// MaxAttempts enables retry of errors marked Retryable when above 1.
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0"`
	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration `yaml:"retry_delay" validate:"gte=0"`
	// MaxConcurrent enables the bulkhead.
	MaxConcurrent int `yaml:"max_concurrent" validate:"gte=0"`
	// MaxWait is how long a computation waits for a bulkhead slot.
	MaxWait time.Duration `yaml:"max_wait"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, errors.New("resilience: timeout must not be negative"))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, errors.New("resilience: max_attempts must not be negative"))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("resilience: retry_delay must not be negative"))
	}
	if c.MaxConcurrent < 0 {
		errs = append(errs, errors.New("resilience: max_concurrent must not be negative"))
	}
	return errors.Join(errs...)
}

// NewExecutorFromConfig builds an Executor from cfg.
func NewExecutorFromConfig(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var opts []ExecutorOption
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, WithBulkhead(NewBulkhead(BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.MaxWait,
		})))
	}
	if cfg.MaxAttempts > 1 {
		opts = append(opts, WithRetry(NewRetry(RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.RetryDelay,
			Jitter:       true,
		})))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return NewExecutor(opts...), nil
}

// Bulkhead returns the configured bulkhead, or nil.
func (e *Executor) Bulkhead() *Bulkhead {
	if e == nil {
		return nil
	}
	return e.bulkhead
}

// Execute runs the operation through all configured resilience patterns.
//
// The execution order is:
// 1. Bulkhead (if configured) - holds one slot across all attempts
// 2. Retry (if configured) - retries errors marked Retryable
// 3. Timeout (if configured) - limits each attempt
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return op(ctx)
	}

	execute := op

	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	if e.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}
