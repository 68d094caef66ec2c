package health

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the memory health checker.
type MemoryCheckerConfig struct {
	// MaxAlloc is the heap budget in bytes. Cached results live on the
	// heap, so this is effectively the cache's memory budget. Required.
	MaxAlloc uint64

	// WarningThreshold is the fraction of MaxAlloc that degrades health.
	// Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fraction of MaxAlloc that is unhealthy.
	// Default: 0.95
	CriticalThreshold float64
}

// MemoryChecker checks heap usage against a budget.
type MemoryChecker struct {
	config MemoryCheckerConfig
	read   func(*runtime.MemStats)
}

// NewMemoryChecker creates a new memory health checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold > 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold
	}
	return &MemoryChecker{config: config, read: runtime.ReadMemStats}
}

// Name returns the name of this checker.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check performs the memory health check.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}
	if m.config.MaxAlloc == 0 {
		return Degraded("no memory budget configured")
	}

	var stats runtime.MemStats
	m.read(&stats)
	ratio := float64(stats.HeapAlloc) / float64(m.config.MaxAlloc)

	details := map[string]any{
		"heap_alloc":    stats.HeapAlloc,
		"heap_objects":  stats.HeapObjects,
		"max_alloc":     m.config.MaxAlloc,
		"usage_percent": ratio * 100,
		"num_gc":        stats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	switch {
	case ratio >= m.config.CriticalThreshold:
		return Unhealthy(
			fmt.Sprintf("memory usage critical: %.1f%%", ratio*100),
			errors.Join(ErrCheckFailed, fmt.Errorf("heap %d of %d bytes", stats.HeapAlloc, m.config.MaxAlloc)),
		).WithDetails(details)
	case ratio >= m.config.WarningThreshold:
		return Degraded(fmt.Sprintf("memory usage high: %.1f%%", ratio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("memory usage normal: %.1f%%", ratio*100)).WithDetails(details)
	}
}
