// Package sqlitestore keeps checkpoints in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonwraymond/modmemo/checkpoint"
)

// Store implements checkpoint.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. The path ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if path == "" {
			return nil, errors.New("sqlitestore: path is required")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("sqlitestore: create db dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open db: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		name       TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		size       INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put stores data under name, replacing any previous checkpoint of that
// name.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := checkpoint.ValidateName(name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (name, data, size, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, size = excluded.size, created_at = excluded.created_at`,
		name, data, len(data), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlitestore: put %s: %w", name, err)
	}
	return nil
}

// Get returns the checkpoint stored under name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	if err := checkpoint.ValidateName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get %s: %w", name, err)
	}
	return data, nil
}

// List returns checkpoint names in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM checkpoints ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlitestore: list: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	return names, nil
}

// Delete removes the checkpoint stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := checkpoint.ValidateName(name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitestore: delete %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", checkpoint.ErrNotFound, name)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlitestore: ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ checkpoint.Store = (*Store)(nil)
