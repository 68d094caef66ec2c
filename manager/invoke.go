package manager

import (
	"context"
	"sync/atomic"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
	"github.com/jonwraymond/modmemo/module"
	"github.com/jonwraymond/modmemo/observe"
)

// Run runs the module under key with inputs layered over its bound inputs.
func (m *Manager) Run(ctx context.Context, key string, inputs anyvalue.Map) (anyvalue.Map, error) {
	mod, err := m.At(key)
	if err != nil {
		return nil, err
	}
	return mod.Run(ctx, inputs)
}

// Invoke computes a prepared module, or returns its memoized results.
// Modules with memoization disabled always compute.
func (m *Manager) Invoke(ctx context.Context, mod *module.Module, inputs anyvalue.Map) (anyvalue.Map, error) {
	meta := observe.ModuleMeta{Name: mod.Name(), Version: mod.Version()}
	if !mod.Memoizable() {
		return m.compute(ctx, mod, inputs, meta)
	}

	key, err := cache.ComputeKey(module.Invocation{Module: mod, Inputs: inputs})
	if err != nil {
		return nil, err
	}
	meta.Key = key.String()

	var computed atomic.Bool
	v, err := m.cache.ComputeOrFetch(ctx, key, func(ctx context.Context) (anyvalue.Value, error) {
		computed.Store(true)
		results, err := m.compute(ctx, mod, inputs, meta)
		if err != nil {
			return anyvalue.Value{}, err
		}
		return anyvalue.Wrap(results), nil
	}, m.tagOpts...)
	if err != nil {
		return nil, err
	}
	if !computed.Load() {
		m.logger.WithModule(meta).Debug(ctx, "module result served from cache")
	}

	results, err := anyvalue.Cast[anyvalue.Map](v)
	if err != nil {
		return nil, err
	}
	out := make(anyvalue.Map, len(results))
	for k, r := range results {
		out[k] = r
	}
	return out, nil
}

func (m *Manager) compute(ctx context.Context, mod *module.Module, inputs anyvalue.Map, meta observe.ModuleMeta) (anyvalue.Map, error) {
	exec := m.executor()
	run := m.mw.Wrap(func(ctx context.Context, _ observe.ModuleMeta) (anyvalue.Map, error) {
		// A timed-out attempt may still finish in the background.
		var results atomic.Pointer[anyvalue.Map]
		err := exec.Execute(ctx, func(ctx context.Context) error {
			r, err := mod.Execute(ctx, inputs, m)
			if err == nil {
				results.Store(&r)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		return *results.Load(), nil
	})
	return run(ctx, meta)
}

// ComputeKey returns the cache key a Run of key with inputs would use.
func (m *Manager) ComputeKey(key string, inputs anyvalue.Map) (cache.Key, error) {
	mod, err := m.At(key)
	if err != nil {
		return "", err
	}
	return cache.ComputeKey(module.Invocation{Module: mod, Inputs: inputs})
}

// IsCached reports whether a Run of key with inputs would be a cache hit.
func (m *Manager) IsCached(key string, inputs anyvalue.Map) bool {
	k, err := m.ComputeKey(key, inputs)
	if err != nil {
		return false
	}
	return m.cache.Contains(k)
}

// ResetCache evicts every entry carrying tag. Durable entries need
// cache.Force.
func (m *Manager) ResetCache(ctx context.Context, tag cache.Tag, opts ...cache.InsertOption) (int, error) {
	n, err := m.cache.Evict(ctx, tag, opts...)
	if err != nil {
		return 0, err
	}
	m.logger.Info(ctx, "cache reset",
		observe.Field{Key: "tag", Value: tag.String()},
		observe.Field{Key: "evicted", Value: n},
	)
	return n, nil
}
