package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jonwraymond/modmemo/cache"
	"github.com/jonwraymond/modmemo/health"
)

// Store keeps named checkpoints.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Atomicity: Put either stores the whole checkpoint or nothing.
//   - Errors: Get and Delete return ErrNotFound for missing names; names
//     failing ValidateName are rejected with ErrInvalidName.
//   - Ordering: List returns names in ascending order. Names produced by Save
//     are ULIDs, so ascending order is creation order.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Ping(ctx context.Context) error
	Close() error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName checks that name is usable as a checkpoint name in every
// Store.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Save checkpoints c into s under the checkpoint id.
func Save(ctx context.Context, s Store, c *cache.Cache, opts ...Option) (*Manifest, error) {
	var buf bytes.Buffer
	m, err := Checkpoint(ctx, c, &buf, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Put(ctx, m.ID, buf.Bytes()); err != nil {
		return nil, err
	}
	return m, nil
}

// Load restores the named checkpoint from s into a new cache.
func Load(ctx context.Context, s Store, name string, opts ...Option) (*cache.Cache, *Report, error) {
	data, err := s.Get(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return Restore(ctx, bytes.NewReader(data), opts...)
}

// LoadInto restores the named checkpoint from s into c.
func LoadInto(ctx context.Context, s Store, name string, c *cache.Cache, opts ...Option) (*Report, error) {
	data, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return RestoreInto(ctx, c, bytes.NewReader(data), opts...)
}

// Latest returns the name of the newest checkpoint in s.
func Latest(ctx context.Context, s Store) (string, error) {
	names, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	return names[len(names)-1], nil
}

// Prune deletes all but the newest keep checkpoints and returns how many
// were deleted.
func Prune(ctx context.Context, s Store, keep int) (int, error) {
	names, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	var deleted int
	for len(names) > keep {
		if err := s.Delete(ctx, names[0]); err != nil && !errors.Is(err, ErrNotFound) {
			return deleted, err
		}
		names = names[1:]
		deleted++
	}
	return deleted, nil
}

// HealthChecker reports whether s is reachable.
func HealthChecker(name string, s Store) health.Checker {
	return health.NewPingChecker(name, s.Ping)
}

// FileExt is the extension FileStore gives checkpoint files.
const FileExt = ".ckpt"

// FileStore keeps each checkpoint in its own file under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("checkpoint: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("checkpoint: create directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+FileExt)
}

// Put writes data to a temporary file and renames it into place.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("checkpoint: rename %s: %w", name, err)
	}
	return nil
}

// Get reads the named checkpoint.
func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", name, err)
	}
	return data, nil
}

// List returns the names of every checkpoint file in the directory.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), FileExt)
		if !ok || ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the named checkpoint.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", name, err)
	}
	return nil
}

// Ping checks that the directory still exists.
func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("checkpoint: stat %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("checkpoint: %s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

var _ Store = (*FileStore)(nil)
