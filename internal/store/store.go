package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version.
//
//	1 - runs and trial_records
const schemaVersion = 1

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store persists runs and their trial records. It implements the engine's
// record sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

type config struct {
	busyTimeout time.Duration
	logger      *slog.Logger
}

// Option configures Open.
type Option func(*config)

// WithBusyTimeout sets how long a writer waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *config) { c.busyTimeout = d }
}

// WithLogger sets the logger used for schema setup messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Open opens (creating if needed) the database at path and brings its schema
// up to date. Pass MemoryPath for a throwaway store.
//
// File databases run in WAL mode so `trialrun records` can read a run while
// it is still being written. Trial filtering needs the JSON1 functions, and
// Open fails early when the SQLite build lacks them.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 5 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// One connection: SQLite allows a single writer, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, logger: cfg.logger}
	if err := s.init(path, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(path string, cfg config) error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("connect to database %s: %w", path, err)
	}

	journal := "WAL"
	if path == MemoryPath {
		journal = "MEMORY"
	}
	settings := []string{
		"PRAGMA journal_mode = " + journal,
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, stmt := range settings {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}

	var probe string
	if err := s.db.QueryRow(`SELECT json_extract('{"a":"ok"}', '$.a')`).Scan(&probe); err != nil {
		return fmt.Errorf("sqlite JSON1 functions unavailable: %w", err)
	}

	return s.migrate()
}

// migrate applies schema.sql and stamps the schema version. A database
// written by a newer trialrun is refused rather than modified.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if version == schemaVersion {
		return nil
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	s.logger.Debug("database schema updated", "from", version, "to", schemaVersion)
	return nil
}

// Close releases the database. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// pragma returns the current value of a SQLite pragma as text.
func (s *Store) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
