package checkpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/modmemo/cache"
	"github.com/jonwraymond/modmemo/observe"
)

// AutosaverConfig configures an Autosaver.
type AutosaverConfig struct {
	// Interval between checkpoints. Required.
	Interval time.Duration

	// Keep is how many checkpoints to retain. Older ones are pruned after
	// each save. Zero keeps everything.
	Keep int

	// Logger receives save and prune events. Optional.
	Logger observe.Logger

	// Options are passed to every Save.
	Options []Option
}

// Autosaver periodically saves a cache to a Store.
//
// Contract:
//   - Concurrency: SaveNow may be called concurrently with the loop; saves
//     are serialized.
//   - Lifecycle: Start may be called once; Stop waits for an in-flight save
//     and is safe to call more than once.
type Autosaver struct {
	cache  *cache.Cache
	store  Store
	config AutosaverConfig
	logger observe.Logger

	saveMu sync.Mutex
	last   *Manifest

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewAutosaver creates an Autosaver. It does nothing until Start.
func NewAutosaver(c *cache.Cache, s Store, config AutosaverConfig) (*Autosaver, error) {
	if c == nil {
		return nil, cache.ErrNilCache
	}
	if s == nil {
		return nil, errors.New("checkpoint: store is required")
	}
	if config.Interval <= 0 {
		return nil, errors.New("checkpoint: autosave interval must be positive")
	}
	logger := config.Logger
	if logger == nil {
		logger = observe.FromSlog(nil)
	}
	return &Autosaver{
		cache:  c,
		store:  s,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins saving in the background. Later calls are no-ops.
func (a *Autosaver) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.run(ctx)
	})
}

// Stop halts the loop and waits for it to exit. A final checkpoint is not
// taken; call SaveNow for that.
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
	started := true
	a.startOnce.Do(func() {
		started = false
		close(a.doneCh)
	})
	if started {
		<-a.doneCh
	}
}

func (a *Autosaver) run(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.SaveNow(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error(ctx, "autosave failed", observe.Field{Key: "error", Value: err.Error()})
			}
		}
	}
}

// SaveNow takes a checkpoint immediately and prunes old ones.
func (a *Autosaver) SaveNow(ctx context.Context) (*Manifest, error) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	m, err := Save(ctx, a.store, a.cache, a.config.Options...)
	if err != nil {
		return nil, err
	}
	a.last = m
	fields := []observe.Field{
		{Key: "checkpoint.id", Value: m.ID},
		{Key: "checkpoint.entries", Value: m.Count},
	}
	if len(m.Skipped) > 0 {
		fields = append(fields, observe.Field{Key: "checkpoint.skipped", Value: len(m.Skipped)})
	}
	a.logger.Info(ctx, "checkpoint saved", fields...)

	if a.config.Keep > 0 {
		n, err := Prune(ctx, a.store, a.config.Keep)
		if err != nil {
			a.logger.Warn(ctx, "checkpoint prune failed", observe.Field{Key: "error", Value: err.Error()})
		} else if n > 0 {
			a.logger.Debug(ctx, "checkpoints pruned", observe.Field{Key: "count", Value: n})
		}
	}
	return m, nil
}

// Last returns the manifest of the most recent successful save, or nil.
func (a *Autosaver) Last() *Manifest {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	return a.last
}
