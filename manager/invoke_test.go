package manager

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
	"github.com/jonwraymond/modmemo/health"
	"github.com/jonwraymond/modmemo/module"
	"github.com/jonwraymond/modmemo/observe"
	"github.com/jonwraymond/modmemo/resilience"
)

func TestRun_Memoizes(t *testing.T) {
	var calls atomic.Int64
	m := newManager(t)
	_ = m.Register("square", squareDef(&calls))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := m.Run(ctx, "square", anyvalue.Map{"x": anyvalue.Wrap(5)})
		if err != nil {
			t.Fatalf("Run error = %v", err)
		}
		if y, _ := anyvalue.Field[int](out, "y"); y != 25 {
			t.Errorf("y = %d, want 25", y)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("computations = %d, want 1", calls.Load())
	}

	// Transparent inputs do not change the key.
	if _, err := m.Run(ctx, "square", anyvalue.Map{"x": anyvalue.Wrap(5), "verbosity": anyvalue.Wrap(2)}); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("transparent input recomputed: %d computations", calls.Load())
	}

	if _, err := m.Run(ctx, "square", anyvalue.Map{"x": anyvalue.Wrap(6)}); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("computations = %d, want 2", calls.Load())
	}
}

func TestRun_InvalidUTF8InputsKeyedApart(t *testing.T) {
	var calls atomic.Int64
	m := newManager(t)
	_ = m.Register("basis", basisDef(&calls))
	ctx := context.Background()

	for _, name := range []string{"\xff", "\xfe"} {
		out, err := m.Run(ctx, "basis", anyvalue.Map{"name": anyvalue.Wrap(name)})
		if err != nil {
			t.Fatalf("Run(%q) error = %v", name, err)
		}
		if got, _ := anyvalue.Field[string](out, "basis"); got != name {
			t.Errorf("basis = %q, want %q", got, name)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("computations = %d, want 2", calls.Load())
	}
}

func TestRun_ResultsAreCopies(t *testing.T) {
	m := newManager(t)
	_ = m.Register("square", squareDef(nil))
	ctx := context.Background()
	in := anyvalue.Map{"x": anyvalue.Wrap(3)}

	first, _ := m.Run(ctx, "square", in)
	first["y"] = anyvalue.Wrap(-1)
	delete(first, "y")

	second, err := m.Run(ctx, "square", in)
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if y, _ := anyvalue.Field[int](second, "y"); y != 9 {
		t.Errorf("cached results mutated through a returned map: y = %d", y)
	}
}

func TestRun_InvalidInputsNeverReachCache(t *testing.T) {
	var calls atomic.Int64
	m := newManager(t)
	_ = m.Register("square", squareDef(&calls))
	ctx := context.Background()

	tests := []struct {
		name   string
		inputs anyvalue.Map
		want   error
	}{
		{"out of bounds", anyvalue.Map{"x": anyvalue.Wrap(-1)}, module.ErrOutOfBounds},
		{"wrong type", anyvalue.Map{"x": anyvalue.Wrap(1.5)}, module.ErrTypeMismatch},
		{"unknown input", anyvalue.Map{"z": anyvalue.Wrap(1)}, module.ErrUnknownInput},
		{"missing input", nil, module.ErrNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Run(ctx, "square", tt.inputs); !errors.Is(err, tt.want) {
				t.Errorf("Run error = %v, want %v", err, tt.want)
			}
		})
	}
	if calls.Load() != 0 || m.Cache().Len() != 0 {
		t.Errorf("invalid runs reached computation: calls=%d entries=%d", calls.Load(), m.Cache().Len())
	}
	if _, err := m.ComputeKey("square", anyvalue.Map{"x": anyvalue.Wrap(-1)}); !errors.Is(err, module.ErrOutOfBounds) {
		t.Errorf("ComputeKey error = %v", err)
	}
}

func TestRun_SubmodulesMemoized(t *testing.T) {
	var energyCalls, basisCalls atomic.Int64
	m := newManager(t)
	_ = m.Register("energy", energyDef(&energyCalls))
	_ = m.Register("sto-3g", basisDef(&basisCalls))
	_ = SetInput(m, "sto-3g", "name", "sto-3g")
	_ = m.SetDefault("Basis", "sto-3g")
	_ = m.CopyModule("energy", "cation", module.CopyShared)
	_ = SetInput(m, "cation", "charge", 1)
	ctx := context.Background()

	if _, err := m.Run(ctx, "energy", nil); err != nil {
		t.Fatalf("Run(energy) error = %v", err)
	}
	if _, err := m.Run(ctx, "cation", nil); err != nil {
		t.Fatalf("Run(cation) error = %v", err)
	}
	if _, err := m.Run(ctx, "sto-3g", nil); err != nil {
		t.Fatalf("Run(sto-3g) error = %v", err)
	}
	if energyCalls.Load() != 2 {
		t.Errorf("energy computations = %d, want 2", energyCalls.Load())
	}
	if basisCalls.Load() != 1 {
		t.Errorf("basis computations = %d, want 1", basisCalls.Load())
	}
	if got := m.Cache().Len(); got != 3 {
		t.Errorf("cache entries = %d, want 3", got)
	}
}

func TestRun_Concurrent(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	def := squareDef(nil)
	inner := def.Run
	def.Run = func(ctx context.Context, c *module.Call) (anyvalue.Map, error) {
		calls.Add(1)
		<-release
		return inner(ctx, c)
	}

	m := newManager(t)
	_ = m.Register("square", def)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := m.Run(ctx, "square", anyvalue.Map{"x": anyvalue.Wrap(7)})
			if err == nil {
				if y, _ := anyvalue.Field[int](out, "y"); y != 49 {
					err = errors.New("wrong result")
				}
			}
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Run error = %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("computations = %d, want 1", calls.Load())
	}
}

func TestRun_MemoizationDisabled(t *testing.T) {
	var calls atomic.Int64
	m := newManager(t)
	_ = m.Register("square", squareDef(&calls))
	mod, _ := m.At("square")
	mod.DisableMemoization()
	ctx := context.Background()
	in := anyvalue.Map{"x": anyvalue.Wrap(2)}

	_, _ = m.Run(ctx, "square", in)
	_, _ = m.Run(ctx, "square", in)
	if calls.Load() != 2 || m.Cache().Len() != 0 {
		t.Errorf("disabled memoization: calls=%d entries=%d", calls.Load(), m.Cache().Len())
	}
	if m.IsCached("square", in) {
		t.Error("IsCached = true with memoization disabled")
	}

	mod.EnableMemoization()
	_, _ = m.Run(ctx, "square", in)
	if !m.IsCached("square", in) {
		t.Error("IsCached = false after memoized run")
	}
}

func TestRun_ErrorsNotCached(t *testing.T) {
	var calls atomic.Int64
	boom := errors.New("scf did not converge")
	def := squareDef(nil)
	def.Run = func(context.Context, *module.Call) (anyvalue.Map, error) {
		calls.Add(1)
		return nil, boom
	}
	m := newManager(t)
	_ = m.Register("square", def)
	ctx := context.Background()
	in := anyvalue.Map{"x": anyvalue.Wrap(2)}

	for i := 0; i < 2; i++ {
		if _, err := m.Run(ctx, "square", in); !errors.Is(err, boom) {
			t.Fatalf("Run error = %v, want %v", err, boom)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("computations = %d, want 2", calls.Load())
	}
}

func TestRun_RetriesRetryable(t *testing.T) {
	var calls atomic.Int64
	def := squareDef(nil)
	inner := def.Run
	def.Run = func(ctx context.Context, c *module.Call) (anyvalue.Map, error) {
		if calls.Add(1) == 1 {
			return nil, resilience.Retryable(errors.New("node lost"))
		}
		return inner(ctx, c)
	}
	exec, err := resilience.NewExecutorFromConfig(resilience.Config{MaxAttempts: 3, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("NewExecutorFromConfig error = %v", err)
	}
	m := newManager(t, WithExecutor(exec))
	_ = m.Register("square", def)

	out, err := m.Run(context.Background(), "square", anyvalue.Map{"x": anyvalue.Wrap(4)})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if y, _ := anyvalue.Field[int](out, "y"); y != 16 || calls.Load() != 2 {
		t.Errorf("y = %d after %d attempts", y, calls.Load())
	}
}

func TestRun_Timeout(t *testing.T) {
	def := squareDef(nil)
	def.Run = func(ctx context.Context, _ *module.Call) (anyvalue.Map, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m := newManager(t, WithExecutor(resilience.NewExecutor(resilience.WithTimeout(10*time.Millisecond))))
	_ = m.Register("square", def)

	_, err := m.Run(context.Background(), "square", anyvalue.Map{"x": anyvalue.Wrap(4)})
	if !errors.Is(err, resilience.ErrTimeout) {
		t.Errorf("Run error = %v, want ErrTimeout", err)
	}
}

func TestRun_PanicBecomesError(t *testing.T) {
	def := squareDef(nil)
	def.Run = func(context.Context, *module.Call) (anyvalue.Map, error) {
		panic("basis set not found")
	}
	for name, opts := range map[string][]Option{
		"direct":  nil,
		"timeout": {WithExecutor(resilience.NewExecutor(resilience.WithTimeout(time.Second)))},
	} {
		t.Run(name, func(t *testing.T) {
			m := newManager(t, opts...)
			_ = m.Register("square", def)
			_, err := m.Run(context.Background(), "square", anyvalue.Map{"x": anyvalue.Wrap(4)})
			if !errors.Is(err, cache.ErrComputePanic) && !errors.Is(err, resilience.ErrPanic) {
				t.Errorf("Run error = %v, want a recovered panic", err)
			}
			if m.IsCached("square", anyvalue.Map{"x": anyvalue.Wrap(4)}) {
				t.Error("panic cached a result")
			}
		})
	}
}

func TestRun_TagAndReset(t *testing.T) {
	m := newManager(t, WithTag(cache.TagSession))
	_ = m.Register("square", squareDef(nil))
	ctx := context.Background()
	in := anyvalue.Map{"x": anyvalue.Wrap(3)}
	_, _ = m.Run(ctx, "square", in)

	key, err := m.ComputeKey("square", in)
	if err != nil {
		t.Fatalf("ComputeKey error = %v", err)
	}
	e, ok := m.Cache().Get(key)
	if !ok || e.Tag != cache.TagSession {
		t.Fatalf("entry = %+v, %v; want session entry", e, ok)
	}

	if _, err := m.ResetCache(ctx, cache.TagDurable); !errors.Is(err, cache.ErrDurableConflict) {
		t.Errorf("ResetCache(durable) without Force error = %v", err)
	}
	n, err := m.ResetCache(ctx, cache.TagSession)
	if err != nil || n != 1 {
		t.Errorf("ResetCache(session) = (%d, %v), want (1, nil)", n, err)
	}
	if m.IsCached("square", in) {
		t.Error("entry survived reset")
	}
}

func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	m := newManager(t, WithLogger(observe.NewLoggerWithWriter("debug", &buf)))
	_ = m.Register("square", squareDef(nil))
	ctx := context.Background()
	in := anyvalue.Map{"x": anyvalue.Wrap(3)}
	_, _ = m.Run(ctx, "square", in)
	_, _ = m.Run(ctx, "square", in)

	out := buf.String()
	for _, want := range []string{
		"module computation completed",
		"module result served from cache",
		`"module.name":"square"`,
		`"cache.key":"fp:`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestManager_Health(t *testing.T) {
	m := newManager(t, WithHealthChecker(health.NewPingChecker("store", func(context.Context) error {
		return errors.New("disk full")
	})))
	rep := m.Health(context.Background())
	if rep.Status != health.StatusUnhealthy {
		t.Errorf("status = %v, want unhealthy", rep.Status)
	}
	if rep.Checks["cache"].Status != health.StatusHealthy {
		t.Errorf("cache status = %v", rep.Checks["cache"].Status)
	}
}
