package cache

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// metrics holds the otel instruments for a cache. A nil meter yields no-op
// instruments.
type metrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	computes  metric.Int64Counter
	shared    metric.Int64Counter
	evictions metric.Int64Counter
	failures  metric.Int64Counter
	inflight  metric.Int64UpDownCounter
}

func newMetrics(meter metric.Meter) *metrics {
	m := &metrics{}
	if meter == nil {
		return m
	}
	// Instrument creation only fails on invalid names; those below are static.
	m.hits, _ = meter.Int64Counter("modmemo.cache.hits",
		metric.WithDescription("Cache lookups that found a value"),
		metric.WithUnit("{lookup}"))
	m.misses, _ = meter.Int64Counter("modmemo.cache.misses",
		metric.WithDescription("Cache lookups that found nothing"),
		metric.WithUnit("{lookup}"))
	m.computes, _ = meter.Int64Counter("modmemo.cache.computes",
		metric.WithDescription("Computations run on a miss"),
		metric.WithUnit("{call}"))
	m.shared, _ = meter.Int64Counter("modmemo.cache.shared",
		metric.WithDescription("Callers served by another caller's computation"),
		metric.WithUnit("{call}"))
	m.evictions, _ = meter.Int64Counter("modmemo.cache.evictions",
		metric.WithDescription("Entries removed by eviction"),
		metric.WithUnit("{entry}"))
	m.failures, _ = meter.Int64Counter("modmemo.cache.failures",
		metric.WithDescription("Computations that returned an error"),
		metric.WithUnit("{error}"))
	m.inflight, _ = meter.Int64UpDownCounter("modmemo.cache.inflight",
		metric.WithDescription("Computations currently running"),
		metric.WithUnit("{call}"))
	return m
}

func (m *metrics) hit(ctx context.Context) {
	if m.hits != nil {
		m.hits.Add(ctx, 1)
	}
}

func (m *metrics) miss(ctx context.Context) {
	if m.misses != nil {
		m.misses.Add(ctx, 1)
	}
}

func (m *metrics) computed(ctx context.Context) {
	if m.computes != nil {
		m.computes.Add(ctx, 1)
	}
}

func (m *metrics) sharedResult(ctx context.Context) {
	if m.shared != nil {
		m.shared.Add(ctx, 1)
	}
}

func (m *metrics) evicted(ctx context.Context, n int64) {
	if m.evictions != nil && n > 0 {
		m.evictions.Add(ctx, n)
	}
}

func (m *metrics) failure(ctx context.Context) {
	if m.failures != nil {
		m.failures.Add(ctx, 1)
	}
}

func (m *metrics) inflightDelta(ctx context.Context, n int64) {
	if m.inflight != nil {
		m.inflight.Add(ctx, n)
	}
}
