package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver

	"github.com/xraph/runner"
	"github.com/xraph/runner/store"
)

var _ store.FlagStore = (*Store)(nil)

// Store is a SQLite implementation of store.FlagStore.
type Store struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (or creates) the database file at path. The Store owns the
// connection and closes it on Close.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("runner/sqlite: open %s: %w", path, err)
	}
	s := New(db, opts...)
	s.owned = true
	return s, nil
}

// New wraps an existing database handle. The caller owns the db
// lifecycle; Close will not close it.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate applies pending migrations in order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runner_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`)
	if err != nil {
		return fmt.Errorf("runner/sqlite: create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM runner_migrations WHERE version = ?)`, m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("runner/sqlite: check migration %s: %w", m.Name, err)
		}
		if applied {
			continue
		}

		if _, err = s.db.ExecContext(ctx, m.Up); err != nil {
			return fmt.Errorf("runner/sqlite: execute migration %s: %w", m.Name, err)
		}
		if _, err = s.db.ExecContext(ctx,
			`INSERT INTO runner_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name,
		); err != nil {
			return fmt.Errorf("runner/sqlite: record migration %s: %w", m.Name, err)
		}

		s.logger.Info("applied migration", slog.String("name", m.Name))
	}

	return nil
}

// GetFlag implements store.FlagStore.
func (s *Store) GetFlag(ctx context.Context, key string) (bool, error) {
	var v bool
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM runner_flags WHERE key = ?`, key,
	).Scan(&v)
	if isNoRows(err) {
		return false, runner.ErrFlagNotFound
	}
	if err != nil {
		return false, fmt.Errorf("runner/sqlite: get flag %q: %w", key, err)
	}
	return v, nil
}

// SetFlag implements store.FlagStore.
func (s *Store) SetFlag(ctx context.Context, key string, value bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runner_flags (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("runner/sqlite: set flag %q: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database if the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
