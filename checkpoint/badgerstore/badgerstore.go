// Package badgerstore keeps checkpoints in an embedded BadgerDB.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jonwraymond/modmemo/checkpoint"
)

// keyPrefix namespaces checkpoint keys so the database can be shared.
const keyPrefix = "checkpoint/"

// Config holds configuration for a Store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in memory. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction before GC rewrites
	// a value log file.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements checkpoint.Store on BadgerDB.
type Store struct {
	db        *badger.DB
	gc        *gcRunner
	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.gc = newGCRunner(db, cfg.GCInterval, ratio, cfg.Logger)
		s.gc.start()
	}
	return s, nil
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

// Put stores data under name in a single transaction.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := checkpoint.ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(name), data)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: put %s: %w", name, err)
	}
	return nil
}

// Get returns the checkpoint stored under name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	if err := checkpoint.ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("badgerstore: get %s: %w", name, err)
	}
	return data, nil
}

// List returns checkpoint names in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list: %w", err)
	}
	return names, nil
}

// Delete removes the checkpoint stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := checkpoint.ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); err != nil {
			return err
		}
		return txn.Delete(key(name))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", checkpoint.ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("badgerstore: delete %s: %w", name, err)
	}
	return nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badgerstore: database is closed")
	}
	return nil
}

// Close stops garbage collection and closes the database. Safe to call
// more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.gc != nil {
			s.gc.stop()
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

var _ checkpoint.Store = (*Store)(nil)
