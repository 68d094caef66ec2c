package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/modmemo/anyvalue"
)

// Sentinel errors for cache operations.
var (
	ErrNilCache        = errors.New("cache: cache is nil")
	ErrInvalidKey      = errors.New("cache: key is invalid")
	ErrKeyTooLong      = errors.New("cache: key exceeds max length")
	ErrDurableConflict = errors.New("cache: durable entry cannot be replaced")
	ErrPoisoned        = errors.New("cache: key holds a cached failure")
	ErrEmptyResult     = errors.New("cache: computation returned an empty value")
	ErrComputePanic    = errors.New("cache: computation panicked")
)

// Entry is one cached value.
type Entry struct {
	Key      Key
	Value    anyvalue.Value
	Tag      Tag
	StoredAt time.Time
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Durable   int
	Session   int
	Hits      int64
	Misses    int64
	Computes  int64
	Shared    int64
	Evictions int64
	Failures  int64
	Inflight  int64
}

// Cache is the memoization table.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Blocking: only ComputeOrFetch blocks, and only on a miss for the same key.
// - Atomicity: a computed value is in the table before any waiter returns.
// - Errors: Lookup never errors; it returns (empty, false) on miss.
type Cache struct {
	mu       sync.RWMutex
	durable  map[Key]Entry
	session  *lru.Cache[Key, Entry]
	failures map[Key]failure

	policy  Policy
	group   singleflight.Group
	now     func() time.Time
	metrics *metrics

	hits, misses, computes, shared, evictions, failed, inflight atomic.Int64
}

type failure struct {
	err     error
	expires time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithMeter records cache metrics on m.
func WithMeter(m metric.Meter) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = newMetrics(m)
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache governed by policy.
func New(policy Policy, opts ...Option) *Cache {
	policy = policy.normalized()
	session, _ := lru.New[Key, Entry](policy.sessionCapacity())
	c := &Cache{
		durable:  make(map[Key]Entry),
		session:  session,
		failures: make(map[Key]failure),
		policy:   policy,
		now:      time.Now,
		metrics:  newMetrics(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the policy the cache was created with.
func (c *Cache) Policy() Policy {
	return c.policy
}

// Lookup returns the value cached under key. A miss is not an error.
func (c *Cache) Lookup(ctx context.Context, key Key) (anyvalue.Value, bool) {
	if c == nil {
		return anyvalue.Value{}, false
	}
	e, ok := c.get(key)
	if !ok {
		c.misses.Add(1)
		c.metrics.miss(ctx)
		return anyvalue.Value{}, false
	}
	c.hits.Add(1)
	c.metrics.hit(ctx)
	return e.Value, true
}

// Get returns the full entry stored under key.
func (c *Cache) Get(key Key) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	return c.get(key)
}

// Contains reports whether key is cached, without touching recency or stats.
func (c *Cache) Contains(key Key) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.durable[key]; ok {
		return true
	}
	return c.session.Contains(key)
}

func (c *Cache) get(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.durable[key]; ok {
		return e, true
	}
	return c.session.Get(key)
}

// Insert stores value under key.
//
// An existing Session entry is replaced. An existing Durable entry is kept
// and ErrDurableConflict returned unless Force is given. The tag defaults to
// the policy's DefaultTag.
func (c *Cache) Insert(ctx context.Context, key Key, value anyvalue.Value, opts ...InsertOption) error {
	if c == nil {
		return ErrNilCache
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	if value.IsEmpty() {
		return fmt.Errorf("cache: insert %s: %w", key, anyvalue.ErrEmpty)
	}
	o := c.insertOptions(opts)
	if !o.tag.Valid() {
		return fmt.Errorf("cache: unknown tag %d", o.tag)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(ctx, Entry{Key: key, Value: value, Tag: o.tag, StoredAt: c.now()}, o.force)
}

func (c *Cache) insertLocked(ctx context.Context, e Entry, force bool) error {
	if _, ok := c.durable[e.Key]; ok {
		if !force {
			return fmt.Errorf("%w: %s", ErrDurableConflict, e.Key)
		}
		delete(c.durable, e.Key)
	}
	c.session.Remove(e.Key)
	delete(c.failures, e.Key)

	switch e.Tag {
	case TagDurable:
		c.durable[e.Key] = e
	default:
		if c.session.Add(e.Key, e) {
			c.evictions.Add(1)
			c.metrics.evicted(ctx, 1)
		}
	}
	return nil
}

// Delete removes key. Deleting a Durable entry requires Force.
// Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key Key, opts ...InsertOption) error {
	if c == nil {
		return ErrNilCache
	}
	o := c.insertOptions(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.durable[key]; ok {
		if !o.force {
			return fmt.Errorf("%w: %s", ErrDurableConflict, key)
		}
		delete(c.durable, key)
	}
	c.session.Remove(key)
	delete(c.failures, key)
	return nil
}

// Evict removes every entry carrying tag and returns how many were removed.
// Evicting TagDurable requires Force; otherwise ErrDurableConflict is
// returned and nothing is removed. Cached failures are cleared with
// TagSession.
func (c *Cache) Evict(ctx context.Context, tag Tag, opts ...InsertOption) (int, error) {
	if c == nil {
		return 0, ErrNilCache
	}
	o := c.insertOptions(opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	switch tag {
	case TagDurable:
		if !o.force {
			return 0, fmt.Errorf("%w: evicting durable entries requires Force", ErrDurableConflict)
		}
		n = len(c.durable)
		c.durable = make(map[Key]Entry)
	case TagSession:
		n = c.session.Len()
		c.session.Purge()
		c.failures = make(map[Key]failure)
	default:
		return 0, fmt.Errorf("cache: unknown tag %d", tag)
	}
	c.evictions.Add(int64(n))
	c.metrics.evicted(ctx, int64(n))
	return n, nil
}

// Entries returns a snapshot of all entries sorted by key.
func (c *Cache) Entries() []Entry {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	out := make([]Entry, 0, len(c.durable)+c.session.Len())
	for _, e := range c.durable {
		out = append(out, e)
	}
	for _, k := range c.session.Keys() {
		if e, ok := c.session.Peek(k); ok {
			out = append(out, e)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.durable) + c.session.Len()
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.RLock()
	durable, session := len(c.durable), c.session.Len()
	c.mu.RUnlock()
	return Stats{
		Durable:   durable,
		Session:   session,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Computes:  c.computes.Load(),
		Shared:    c.shared.Load(),
		Evictions: c.evictions.Load(),
		Failures:  c.failed.Load(),
		Inflight:  c.inflight.Load(),
	}
}

// InsertOption adjusts a single Insert, Delete, Evict or ComputeOrFetch.
type InsertOption func(*insertOptions)

type insertOptions struct {
	tag   Tag
	force bool
}

// Force allows replacing or removing Durable entries.
func Force() InsertOption {
	return func(o *insertOptions) {
		o.force = true
	}
}

// WithTag sets the retention tag of the stored entry.
func WithTag(tag Tag) InsertOption {
	return func(o *insertOptions) {
		o.tag = tag
	}
}

func (c *Cache) insertOptions(opts []InsertOption) insertOptions {
	o := insertOptions{tag: c.policy.DefaultTag}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
