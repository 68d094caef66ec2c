package health

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

func TestMemoryChecker(t *testing.T) {
	tests := []struct {
		name  string
		alloc uint64
		want  Status
	}{
		{"normal", 100, StatusHealthy},
		{"warning", 850, StatusDegraded},
		{"critical", 990, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemoryChecker(MemoryCheckerConfig{MaxAlloc: 1000})
			m.read = func(s *runtime.MemStats) { s.HeapAlloc = tt.alloc }

			r := m.Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("status = %v, want %v (%s)", r.Status, tt.want, r.Message)
			}
			if r.Details["max_alloc"] != uint64(1000) {
				t.Errorf("details = %v", r.Details)
			}
			if tt.want == StatusUnhealthy && !errors.Is(r.Error, ErrCheckFailed) {
				t.Errorf("critical error = %v", r.Error)
			}
		})
	}
}

func TestMemoryChecker_Defaults(t *testing.T) {
	m := NewMemoryChecker(MemoryCheckerConfig{MaxAlloc: 1, WarningThreshold: 0.9, CriticalThreshold: 0.5})
	if m.config.CriticalThreshold != 0.9 {
		t.Errorf("critical threshold = %v, want clamped to warning", m.config.CriticalThreshold)
	}
	if r := NewMemoryChecker(MemoryCheckerConfig{}).Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("unbudgeted status = %v, want degraded", r.Status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if r := m.Check(ctx); r.Status != StatusUnhealthy {
		t.Errorf("cancelled status = %v", r.Status)
	}
}
