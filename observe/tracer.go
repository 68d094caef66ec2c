package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ModuleMeta describes one module computation for telemetry purposes.
type ModuleMeta struct {
	Name    string // Module name (required)
	Version string // Module version (optional)
	Key     string // Cache key of the invocation (optional)
}

// Validate reports whether the metadata is usable.
func (m ModuleMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingModuleName
	}
	return nil
}

// SpanName returns the deterministic span name: module.run.<name>.
func (m ModuleMeta) SpanName() string {
	return "module.run." + m.Name
}

// Identity returns name@version, or the name alone when unversioned.
func (m ModuleMeta) Identity() string {
	if m.Version == "" {
		return m.Name
	}
	return m.Name + "@" + m.Version
}

// Tracer wraps OpenTelemetry tracing with module-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a module computation.
	StartSpan(ctx context.Context, meta ModuleMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with module metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta ModuleMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("module.id", meta.Identity()),
		attribute.String("module.name", meta.Name),
		attribute.Bool("module.error", false),
	}
	if meta.Version != "" {
		attrs = append(attrs, attribute.String("module.version", meta.Version))
	}
	if meta.Key != "" {
		attrs = append(attrs, attribute.String("cache.key", meta.Key))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("module.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta ModuleMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
