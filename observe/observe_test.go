package observe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{
			name: "valid",
			cfg: Config{
				ServiceName: "modmemo",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 0.5},
				Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
				Logging:     LoggingConfig{Enabled: true, Level: "debug"},
			},
		},
		{
			name: "disabled subsystems are not checked",
			cfg: Config{
				ServiceName: "modmemo",
				Tracing:     TracingConfig{Exporter: "jaeger", SamplePct: 7},
				Metrics:     MetricsConfig{Exporter: "statsd"},
			},
		},
		{name: "missing service name", cfg: Config{}, want: ErrMissingServiceName},
		{
			name: "unknown tracing exporter",
			cfg:  Config{ServiceName: "s", Tracing: TracingConfig{Enabled: true, Exporter: "zipkin"}},
			want: ErrInvalidTracingExporter,
		},
		{
			name: "sample pct above one",
			cfg:  Config{ServiceName: "s", Tracing: TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.5}},
			want: ErrInvalidSamplePct,
		},
		{
			name: "sample pct negative",
			cfg:  Config{ServiceName: "s", Tracing: TracingConfig{Enabled: true, Exporter: "none", SamplePct: -0.1}},
			want: ErrInvalidSamplePct,
		},
		{
			name: "unknown metrics exporter",
			cfg:  Config{ServiceName: "s", Metrics: MetricsConfig{Enabled: true, Exporter: "statsd"}},
			want: ErrInvalidMetricsExporter,
		},
		{
			name: "unknown log level",
			cfg:  Config{ServiceName: "s", Logging: LoggingConfig{Enabled: true, Level: "verbose"}},
			want: ErrInvalidLogLevel,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.want == nil && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewObserver_DisabledNoop(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "modmemo"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("expected non-nil tracer, meter and logger")
	}
	if _, ok := obs.Logger().(*noopLogger); !ok {
		t.Errorf("logger = %T, want *noopLogger", obs.Logger())
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_Enabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "modmemo",
		Version:     "0.1.0",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if _, ok := obs.Logger().(*slogLogger); !ok {
		t.Errorf("logger = %T, want *slogLogger", obs.Logger())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	if _, err := NewObserver(context.Background(), Config{}); !errors.Is(err, ErrMissingServiceName) {
		t.Errorf("NewObserver() error = %v, want ErrMissingServiceName", err)
	}
}

func TestNoop(t *testing.T) {
	obs := Noop()
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("expected non-nil components")
	}
	if obs.Logger().WithModule(ModuleMeta{Name: "m"}) == nil {
		t.Error("WithModule returned nil")
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestContracts_NoPanic(t *testing.T) {
	ctx := context.Background()
	(&noopMetrics{}).RecordRun(ctx, ModuleMeta{Name: "noop"}, time.Millisecond, errors.New("x"))
	tr := newNoopTracer()
	_, span := tr.StartSpan(ctx, ModuleMeta{Name: "noop"})
	tr.EndSpan(span, nil)
	if NewTracer(nil) == nil {
		t.Error("NewTracer(nil) returned nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("modmemo")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.Tracing.Enabled || cfg.Metrics.Enabled || !cfg.Logging.Enabled || cfg.SetGlobal {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}
