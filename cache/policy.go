package cache

import (
	"errors"
	"math"
	"time"
)

// Policy configures retention.
type Policy struct {
	// DefaultTag is the tag used when an insert does not name one.
	DefaultTag Tag

	// MaxSessionEntries bounds the Session tier. The least recently used
	// Session entry is evicted when the bound is exceeded. Durable entries
	// are never evicted for capacity. Zero means unbounded.
	MaxSessionEntries int

	// ErrorTTL enables the poison policy: a failed computation is cached
	// for this long and later callers get ErrPoisoned without recomputing.
	// Zero disables it.
	ErrorTTL time.Duration
}

// DefaultPolicy returns the default policy.
// DefaultTag: Durable, MaxSessionEntries: unbounded, ErrorTTL: 0
func DefaultPolicy() Policy {
	return Policy{
		DefaultTag: TagDurable,
	}
}

// SessionPolicy returns a policy for scratch computations whose results
// should not be checkpointed by default.
func SessionPolicy(maxEntries int) Policy {
	return Policy{
		DefaultTag:        TagSession,
		MaxSessionEntries: maxEntries,
	}
}

// Validate checks the policy for nonsensical values.
func (p Policy) Validate() error {
	if !p.DefaultTag.Valid() {
		return errors.New("cache: policy default tag is invalid")
	}
	if p.MaxSessionEntries < 0 {
		return errors.New("cache: policy max session entries must be >= 0")
	}
	if p.ErrorTTL < 0 {
		return errors.New("cache: policy error TTL must be >= 0")
	}
	return nil
}

// PoisonsFailures reports whether failed computations are cached.
func (p Policy) PoisonsFailures() bool {
	return p.ErrorTTL > 0
}

func (p Policy) normalized() Policy {
	if !p.DefaultTag.Valid() {
		p.DefaultTag = TagDurable
	}
	if p.MaxSessionEntries < 0 {
		p.MaxSessionEntries = 0
	}
	if p.ErrorTTL < 0 {
		p.ErrorTTL = 0
	}
	return p
}

func (p Policy) sessionCapacity() int {
	if p.MaxSessionEntries == 0 {
		return math.MaxInt
	}
	return p.MaxSessionEntries
}
