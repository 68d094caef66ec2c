package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryable(t *testing.T) {
	base := errors.New("scratch disk full")
	err := Retryable(base)
	if !IsRetryable(err) || !errors.Is(err, base) {
		t.Errorf("Retryable(err) = %v", err)
	}
	if IsRetryable(base) {
		t.Error("unmarked error reported retryable")
	}
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) != nil")
	}
}

func TestRetry(t *testing.T) {
	transient := Retryable(errors.New("transient"))
	final := errors.New("diverged")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"success first try", []error{nil}, 1, nil},
		{"transient then success", []error{transient, nil}, 2, nil},
		{"unmarked error not retried", []error{final, nil}, 1, final},
		{"exhausted", []error{transient, transient, transient}, 3, ErrMaxRetriesExceeded},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1})
			calls := 0
			err := r.Execute(context.Background(), func(context.Context) error {
				err := tc.errs[calls]
				calls++
				return err
			})
			if calls != tc.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tc.wantCalls)
			}
			if tc.wantErr == nil && err != nil {
				t.Errorf("error = %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()
	if cfg.MaxAttempts != 3 || cfg.InitialDelay != 100*time.Millisecond || cfg.Multiplier != 2 || cfg.RetryIf == nil {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestRetry_Delays(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
		err        error
		want       []time.Duration
	}{
		{"exponential", 2, Retryable(errors.New("busy")), []time.Duration{10, 20, 40, 50}},
		{"constant", 1, Retryable(errors.New("busy")), []time.Duration{10, 10, 10, 10}},
		{"hint", 2, RetryableAfter(errors.New("busy"), 30), []time.Duration{30, 30, 30, 30}},
		{"hint capped", 2, RetryableAfter(errors.New("busy"), time.Hour), []time.Duration{50, 50, 50, 50}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []time.Duration
			r := NewRetry(RetryConfig{
				MaxAttempts:  len(tc.want) + 1,
				InitialDelay: 10,
				MaxDelay:     50,
				Multiplier:   tc.multiplier,
				OnRetry: func(_ int, _ error, d time.Duration) {
					got = append(got, d)
				},
			})
			_ = r.Execute(context.Background(), func(context.Context) error { return tc.err })
			if len(got) != len(tc.want) {
				t.Fatalf("delays = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("attempt %d delay = %v, want %v", i+1, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestRetry_Exhausted(t *testing.T) {
	last := errors.New("scf did not converge")
	r := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})
	err := r.Execute(context.Background(), func(context.Context) error { return Retryable(last) })

	var ex *ExhaustedError
	if !errors.As(err, &ex) || ex.Attempts != 2 {
		t.Fatalf("error = %v, want *ExhaustedError after 2 attempts", err)
	}
	if !errors.Is(err, ErrMaxRetriesExceeded) || !errors.Is(err, last) {
		t.Errorf("error = %v, want both ErrMaxRetriesExceeded and the last failure", err)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	var retries int
	r.config.OnRetry = func(int, error, time.Duration) {
		retries++
		cancel()
	}
	err := r.Execute(ctx, func(context.Context) error { return Retryable(errors.New("x")) })
	if !errors.Is(err, context.Canceled) || retries != 1 {
		t.Errorf("error = %v, retries = %d", err, retries)
	}
}

func TestTimeout(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: 20 * time.Millisecond})

	err := to.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}

	if err := to.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("fast op error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = to.Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		t.Errorf("caller cancel error = %v, want context.Canceled", err)
	}

	if got := NewTimeout(TimeoutConfig{}).Config().Timeout; got != DefaultTimeout {
		t.Errorf("default timeout = %v", got)
	}
}

func TestTimeout_Panic(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: time.Second})
	err := to.Execute(context.Background(), func(context.Context) error {
		panic("integrals overflowed")
	})
	if !errors.Is(err, ErrPanic) {
		t.Errorf("error = %v, want ErrPanic", err)
	}
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("second Acquire error = %v, want ErrBulkheadFull", err)
	}
	m := b.Metrics()
	if m.Active != 1 || m.Available != 0 || m.Rejected != 1 {
		t.Errorf("metrics = %+v", m)
	}
	b.Release()
	if err := b.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire after Release error = %v", err)
	}
	b.Release()
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Second})
	_ = b.Acquire(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Release()
	}()
	if err := b.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire error = %v", err)
	}
	b.Release()

	short := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 5 * time.Millisecond})
	_ = short.Acquire(context.Background())
	if err := short.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("timed out wait error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := short.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled wait error = %v", err)
	}
}

func TestBulkhead_LimitsConcurrency(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 3, MaxWait: -1})
	var cur, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(context.Context) error {
				n := cur.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				cur.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if m := b.Metrics(); m.MaxActive > 3 || m.Active != 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestExecutor(t *testing.T) {
	var nilExec *Executor
	if err := nilExec.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("nil executor error = %v", err)
	}

	e, err := NewExecutorFromConfig(Config{Timeout: time.Second, MaxAttempts: 2, RetryDelay: time.Millisecond, MaxConcurrent: 2})
	if err != nil {
		t.Fatal(err)
	}
	if e.Bulkhead() == nil || e.Bulkhead().Metrics().MaxConcurrent != 2 {
		t.Error("bulkhead not configured")
	}

	calls := 0
	err = e.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("Execute() = %v after %d calls", err, calls)
	}

	if _, err := NewExecutorFromConfig(Config{MaxConcurrent: -1}); err == nil {
		t.Error("negative max_concurrent accepted")
	}
	bare, _ := NewExecutorFromConfig(Config{})
	if bare.Bulkhead() != nil {
		t.Error("zero config enabled bulkhead")
	}
}
