package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// RunFunc is the signature of a module computation that Middleware wraps.
type RunFunc func(ctx context.Context, meta ModuleMeta) (anyvalue.Map, error)

// Middleware wraps module computations with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe RunFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: Results are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	if logger == nil {
		logger = &noopLogger{}
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a RunFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn RunFunc) RunFunc {
	return func(ctx context.Context, meta ModuleMeta) (anyvalue.Map, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		results, err := fn(ctx, meta)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordRun(ctx, meta, duration, err)

		log := m.logger.WithModule(meta)
		outcome := Outcome(err)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration) / float64(time.Millisecond)},
			{Key: "outcome", Value: outcome},
		}
		switch outcome {
		case OutcomeOK:
			fields = append(fields, Field{Key: "results", Value: results.Keys()})
			log.Info(ctx, "module computation completed", fields...)
		case OutcomeCancelled:
			log.Warn(ctx, "module computation cancelled", append(fields, Field{Key: "error", Value: err.Error()})...)
		default:
			log.Error(ctx, "module computation failed", append(fields, Field{Key: "error", Value: err.Error()})...)
		}

		return results, err
	}
}

// Logger returns the logger the middleware writes to.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
