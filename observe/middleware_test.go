package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/modmemo/anyvalue"
)

type recordingSetup struct {
	mw     *Middleware
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
}

func newRecordingMiddleware(t *testing.T) recordingSetup {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("info", &logs))
	return recordingSetup{mw: mw, spans: spans, reader: reader, logs: &logs}
}

func TestMiddleware_SuccessPath(t *testing.T) {
	s := newRecordingMiddleware(t)
	want := anyvalue.Map{"energy": anyvalue.Wrap(-1.117)}

	run := s.mw.Wrap(func(ctx context.Context, meta ModuleMeta) (anyvalue.Map, error) {
		return want, nil
	})
	got, err := run(context.Background(), ModuleMeta{Name: "scf"})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !anyvalue.Equal(anyvalue.Wrap(got), anyvalue.Wrap(want)) {
		t.Errorf("results = %v, want %v", got, want)
	}

	if spans := s.spans.Ended(); len(spans) != 1 || spans[0].Name() != "module.run.scf" {
		t.Errorf("spans = %v", spans)
	}
	if n := sumOf(t, collect(t, s.reader), "module.run.total"); n != 1 {
		t.Errorf("module.run.total = %d", n)
	}
	entry := decodeLines(t, s.logs)[0]
	if entry["msg"] != "module computation completed" || entry["module.name"] != "scf" {
		t.Errorf("log entry = %v", entry)
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	s := newRecordingMiddleware(t)
	boom := errors.New("boom")

	run := s.mw.Wrap(func(ctx context.Context, meta ModuleMeta) (anyvalue.Map, error) {
		return nil, boom
	})
	if _, err := run(context.Background(), ModuleMeta{Name: "scf"}); err != boom {
		t.Fatalf("run() error = %v, want the original error", err)
	}

	if n := sumOf(t, collect(t, s.reader), "module.run.errors"); n != 1 {
		t.Errorf("module.run.errors = %d", n)
	}
	entry := decodeLines(t, s.logs)[0]
	if entry["level"] != "ERROR" || entry["error"] != "boom" {
		t.Errorf("log entry = %v", entry)
	}
}

func TestMiddleware_PropagatesSpanContext(t *testing.T) {
	s := newRecordingMiddleware(t)
	var inner trace.SpanContext
	run := s.mw.Wrap(func(ctx context.Context, meta ModuleMeta) (anyvalue.Map, error) {
		inner = trace.SpanContextFromContext(ctx)
		return anyvalue.Map{}, nil
	})
	_, _ = run(context.Background(), ModuleMeta{Name: "scf"})

	if !inner.IsValid() {
		t.Fatal("wrapped function did not see a span")
	}
	if inner.SpanID() != s.spans.Ended()[0].SpanContext().SpanID() {
		t.Error("wrapped function saw a different span")
	}
}

func TestMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	run := mw.Wrap(func(ctx context.Context, meta ModuleMeta) (anyvalue.Map, error) {
		return anyvalue.Map{"y": anyvalue.Wrap(1)}, nil
	})
	if _, err := run(context.Background(), ModuleMeta{Name: "m"}); err != nil {
		t.Errorf("run() error = %v", err)
	}
	if mw.Logger() == nil {
		t.Error("Logger() = nil")
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("error = %v, want ErrNilObserver", err)
	}
	mw, err := MiddlewareFromObserver(Noop())
	if err != nil || mw == nil {
		t.Fatalf("MiddlewareFromObserver(Noop()) = %v, %v", mw, err)
	}
}
