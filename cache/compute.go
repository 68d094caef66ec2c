package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// ComputeFunc produces the value for a missing key.
type ComputeFunc func(ctx context.Context) (anyvalue.Value, error)

// ComputeOrFetch returns the value cached under key, computing it with fn on
// a miss.
//
// At most one fn runs per key at a time. Callers that arrive while it runs
// wait for it and receive the same value; each waiter stops waiting when its
// own ctx is done. When the running computation fails because its caller's
// context ended, a waiter whose context is still live retries instead of
// inheriting that cancellation. Failures are returned to every waiter and,
// unless the policy poisons failures, leave the key free for the next call.
func (c *Cache) ComputeOrFetch(ctx context.Context, key Key, fn ComputeFunc, opts ...InsertOption) (anyvalue.Value, error) {
	if c == nil {
		return anyvalue.Value{}, ErrNilCache
	}
	if err := ValidateKey(key); err != nil {
		return anyvalue.Value{}, err
	}
	if fn == nil {
		return anyvalue.Value{}, errors.New("cache: compute function is nil")
	}
	o := c.insertOptions(opts)
	if !o.tag.Valid() {
		return anyvalue.Value{}, fmt.Errorf("cache: unknown tag %d", o.tag)
	}

	if v, ok := c.Lookup(ctx, key); ok {
		return v, nil
	}
	if err := c.poisoned(key); err != nil {
		return anyvalue.Value{}, err
	}

	for {
		var led bool
		ch := c.group.DoChan(string(key), func() (any, error) {
			led = true
			return c.compute(ctx, key, fn, o)
		})

		select {
		case <-ctx.Done():
			return anyvalue.Value{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if !led && isContextError(res.Err) && ctx.Err() == nil {
					continue
				}
				return anyvalue.Value{}, res.Err
			}
			if !led {
				c.shared.Add(1)
				c.metrics.sharedResult(ctx)
			}
			return res.Val.(anyvalue.Value), nil
		}
	}
}

// compute runs inside the flight for key.
func (c *Cache) compute(ctx context.Context, key Key, fn ComputeFunc, o insertOptions) (anyvalue.Value, error) {
	// A previous flight may have finished between our miss and this flight.
	if e, ok := c.get(key); ok {
		return e.Value, nil
	}
	if err := c.poisoned(key); err != nil {
		return anyvalue.Value{}, err
	}

	c.inflight.Add(1)
	c.metrics.inflightDelta(ctx, 1)
	c.computes.Add(1)
	c.metrics.computed(ctx)
	v, err := callCompute(ctx, fn)
	c.inflight.Add(-1)
	c.metrics.inflightDelta(ctx, -1)

	if err == nil && v.IsEmpty() {
		err = fmt.Errorf("%w: %s", ErrEmptyResult, key)
	}
	if err != nil {
		c.failed.Add(1)
		c.metrics.failure(ctx)
		c.poison(key, err)
		return anyvalue.Value{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ierr := c.insertLocked(ctx, Entry{Key: key, Value: v, Tag: o.tag, StoredAt: c.now()}, o.force)
	if errors.Is(ierr, ErrDurableConflict) {
		// Someone inserted a durable value while we computed; it is canonical.
		return c.durable[key].Value, nil
	}
	return v, ierr
}

// callCompute runs fn and turns a panic into an ErrComputePanic error.
// singleflight would otherwise re-panic it on a goroutine nobody can recover.
func callCompute(ctx context.Context, fn ComputeFunc) (v anyvalue.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = anyvalue.Value{}, fmt.Errorf("%w: %v", ErrComputePanic, r)
		}
	}()
	return fn(ctx)
}

// poison records err for key when the policy caches failures.
// Context errors describe the caller, not the computation, and are never cached.
func (c *Cache) poison(key Key, err error) {
	if !c.policy.PoisonsFailures() || isContextError(err) {
		return
	}
	c.mu.Lock()
	c.failures[key] = failure{err: err, expires: c.now().Add(c.policy.ErrorTTL)}
	c.mu.Unlock()
}

// poisoned returns the cached failure for key, if one is live.
func (c *Cache) poisoned(key Key) error {
	if !c.policy.PoisonsFailures() {
		return nil
	}
	c.mu.RLock()
	f, ok := c.failures[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if !c.now().Before(f.expires) {
		c.mu.Lock()
		if cur, ok := c.failures[key]; ok && cur.expires.Equal(f.expires) {
			delete(c.failures, key)
		}
		c.mu.Unlock()
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPoisoned, f.err)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
