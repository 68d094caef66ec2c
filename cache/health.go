package cache

import (
	"context"
	"fmt"

	"github.com/jonwraymond/modmemo/health"
)

// Checker reports cache health. The cache is degraded while failures are
// poisoned or the session tier is at capacity.
type Checker struct {
	cache *Cache
}

// NewChecker creates a health checker for c.
func NewChecker(c *Cache) *Checker {
	return &Checker{cache: c}
}

// Name returns the name of this checker.
func (h *Checker) Name() string {
	return "cache"
}

// Check reports entry counts and flags pressure.
func (h *Checker) Check(_ context.Context) health.Result {
	if h.cache == nil {
		return health.Unhealthy("cache is nil", ErrNilCache)
	}
	s := h.cache.Stats()
	details := map[string]any{
		"durable":   s.Durable,
		"session":   s.Session,
		"hits":      s.Hits,
		"misses":    s.Misses,
		"inflight":  s.Inflight,
		"evictions": s.Evictions,
	}

	h.cache.mu.RLock()
	poisoned := len(h.cache.failures)
	h.cache.mu.RUnlock()

	limit := h.cache.policy.MaxSessionEntries
	switch {
	case poisoned > 0:
		details["poisoned"] = poisoned
		return health.Degraded(fmt.Sprintf("%d keys hold cached failures", poisoned)).WithDetails(details)
	case limit > 0 && s.Session >= limit:
		return health.Degraded("session tier at capacity").WithDetails(details)
	}
	return health.Healthy(fmt.Sprintf("%d entries", s.Durable+s.Session)).WithDetails(details)
}

var _ health.Checker = (*Checker)(nil)
