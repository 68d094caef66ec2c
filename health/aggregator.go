package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout is the maximum time to wait for all checks.
	// Default: 10 seconds
	Timeout time.Duration

	// Sequential runs checks one after another instead of concurrently.
	Sequential bool
}

// Aggregator combines multiple health checkers into a single composite check.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker under its Name, replacing any checker with the
// same name.
func (a *Aggregator) Register(checker Checker) {
	name := checker.Name()
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes a health checker from the aggregator.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// CheckerNames returns the names of all registered checkers in
// registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Check runs a single named health check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return runCheck(ctx, checker), nil
}

// CheckAll runs all registered health checks and returns the results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checkers := make(map[string]Checker, len(a.checkers))
	for name, checker := range a.checkers {
		checkers[name] = checker
	}
	a.mu.RUnlock()

	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	if a.config.Sequential {
		for name, checker := range checkers {
			results[name] = runCheck(ctx, checker)
		}
		return results
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for name, checker := range checkers {
		g.Go(func() error {
			r := runCheck(ctx, checker)
			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// OverallStatus returns the most severe status in results. No results is
// healthy.
func OverallStatus(results map[string]Result) Status {
	status := StatusHealthy
	for _, r := range results {
		status = status.Worse(r.Status)
	}
	return status
}

func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}

// Report is the serializable outcome of every registered check.
type Report struct {
	Status    Status                 `json:"status" yaml:"status"`
	Timestamp time.Time              `json:"timestamp" yaml:"timestamp"`
	Checks    map[string]CheckReport `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// CheckReport is the serializable outcome of one check.
type CheckReport struct {
	Status   Status         `json:"status" yaml:"status"`
	Message  string         `json:"message,omitempty" yaml:"message,omitempty"`
	Duration string         `json:"duration,omitempty" yaml:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report runs every check and folds the results.
func (a *Aggregator) Report(ctx context.Context) Report {
	results := a.CheckAll(ctx)
	rep := Report{
		Status:    OverallStatus(results),
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckReport, len(results)),
	}
	for name, r := range results {
		cr := CheckReport{
			Status:   r.Status,
			Message:  r.Message,
			Duration: r.Duration.String(),
			Details:  r.Details,
		}
		if r.Error != nil {
			cr.Error = r.Error.Error()
		}
		rep.Checks[name] = cr
	}
	return rep
}

// Checker returns the aggregator as a single Checker named "aggregate".
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc("aggregate", func(ctx context.Context) Result {
		rep := a.Report(ctx)
		details := make(map[string]any, len(rep.Checks))
		for name, c := range rep.Checks {
			details[name] = c.Status.String()
		}

		var message string
		switch rep.Status {
		case StatusHealthy:
			message = "all checks passed"
		case StatusDegraded:
			message = "some checks degraded"
		default:
			message = "some checks failed"
		}
		return Result{Status: rep.Status, Message: message, Details: details, Timestamp: rep.Timestamp}
	})
}
