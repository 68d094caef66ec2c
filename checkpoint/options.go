package checkpoint

import (
	"time"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/cache"
)

// Option configures Checkpoint and Restore.
type Option func(*options)

type options struct {
	registry        *anyvalue.Registry
	includeSession  bool
	skipUnencodable bool
	signingKey      []byte
	graph           any
	now             func() time.Time
	policy          cache.Policy
	cacheOpts       []cache.Option
	force           bool
}

func newOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		policy: cache.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = anyvalue.NewRegistry()
	}
	return o
}

// WithRegistry encodes and decodes values with r. Types beyond the
// built-in scalars, slices and maps must be registered in r.
func WithRegistry(r *anyvalue.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// IncludeSession also writes session entries.
func IncludeSession() Option {
	return func(o *options) {
		o.includeSession = true
	}
}

// SkipUnencodable leaves out entries the registry cannot encode and lists
// them in Manifest.Skipped instead of failing the checkpoint.
func SkipUnencodable() Option {
	return func(o *options) {
		o.skipUnencodable = true
	}
}

// WithSigningKey signs checkpoints with key and requires a valid signature
// on restore.
func WithSigningKey(key []byte) Option {
	return func(o *options) {
		o.signingKey = key
	}
}

// WithGraph stores the module graph configuration in the header. It is
// encoded as YAML.
func WithGraph(graph any) Option {
	return func(o *options) {
		o.graph = graph
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCachePolicy sets the policy of the cache Restore creates.
func WithCachePolicy(p cache.Policy, opts ...cache.Option) Option {
	return func(o *options) {
		o.policy = p
		o.cacheOpts = opts
	}
}

// Overwrite lets RestoreInto replace durable entries already in the cache.
func Overwrite() Option {
	return func(o *options) {
		o.force = true
	}
}
