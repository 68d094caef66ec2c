package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records module computation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRun records one computation with its duration and error status.
	RecordRun(ctx context.Context, meta ModuleMeta, duration time.Duration, err error)
}

// Outcome values of the module.run.total "outcome" attribute.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// durationBuckets spans millisecond lookups to multi-hour computations.
var durationBuckets = []float64{
	1, 10, 100, 1e3, 1e4, 6e4, 3e5, 9e5, 3.6e6, 1.44e7,
}

type runMetrics struct {
	runs     metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the module.run.* instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	var (
		m   runMetrics
		err error
	)
	if m.runs, err = meter.Int64Counter("module.run.total",
		metric.WithDescription("Module computations by outcome"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}
	if m.failures, err = meter.Int64Counter("module.run.errors",
		metric.WithDescription("Module computations that returned an error"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("module.run.duration_ms",
		metric.WithDescription("Wall time of module computations"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// Outcome classifies err for the outcome attribute.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

func (m *runMetrics) RecordRun(ctx context.Context, meta ModuleMeta, duration time.Duration, err error) {
	// Labels identify the module only; cache keys are per invocation.
	module := []attribute.KeyValue{
		attribute.String("module.id", meta.Identity()),
		attribute.String("module.name", meta.Name),
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(append(module, attribute.String("outcome", Outcome(err)))...))
	if err != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(module...))
	}
	m.duration.Record(ctx, float64(duration)/float64(time.Millisecond), metric.WithAttributes(module...))
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(context.Context, ModuleMeta, time.Duration, error) {}
