package manager

import (
	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
	"github.com/jonwraymond/modmemo/health"
	"github.com/jonwraymond/modmemo/observe"
	"github.com/jonwraymond/modmemo/resilience"
)

// Option configures a Manager.
type Option func(*Manager)

// WithCache uses c for memoized results instead of a fresh cache.
func WithCache(c *cache.Cache) Option {
	return func(m *Manager) {
		m.cache = c
	}
}

// WithObserver traces, meters and logs computations through obs. A cache
// created by the Manager also reports its metrics to obs.
func WithObserver(obs observe.Observer) Option {
	return func(m *Manager) {
		m.observer = obs
	}
}

// WithLogger sets the logger used when no observer is configured.
func WithLogger(l observe.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithExecutor guards computations with e.
func WithExecutor(e *resilience.Executor) Option {
	return func(m *Manager) {
		m.exec = e
	}
}

// WithTag stores computed results under tag instead of the cache policy's
// default.
func WithTag(tag cache.Tag) Option {
	return func(m *Manager) {
		m.tagOpts = []cache.InsertOption{cache.WithTag(tag)}
	}
}

// WithRegistry decodes configuration inputs with r.
func WithRegistry(r *anyvalue.Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithHealthChecker adds c to the checks reported by Health.
func WithHealthChecker(c health.Checker) Option {
	return func(m *Manager) {
		m.checkers = append(m.checkers, c)
	}
}

// WithMemoryLimit reports the heap against limit bytes in Health.
func WithMemoryLimit(limit uint64) Option {
	return func(m *Manager) {
		m.checkers = append(m.checkers, health.NewMemoryChecker(health.MemoryCheckerConfig{MaxAlloc: limit}))
	}
}
