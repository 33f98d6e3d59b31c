package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] moves a journal from user_version i to i+1. Append only.
var migrations = []func(*sql.DB) error{
	indexExpressionHash,
}

// currentSchemaVersion is the user_version of a fully migrated journal.
var currentSchemaVersion = len(migrations)

// journalPragmas are set on every connection. WAL lets history read while
// run appends.
var journalPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is the session journal.
type Store struct {
	db    *sql.DB
	clock *Clock
}

// Open opens the journal at path, creating and migrating it as needed.
// ":memory:" gives a private in-memory journal. Sequence numbers continue
// after the last journaled session.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and an in-memory
	// journal exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	last, err := prepare(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal %s: %w", path, err)
	}
	return &Store{db: db, clock: NewClockAt(last)}, nil
}

// prepare configures, creates and migrates the journal and returns the
// highest seq it holds.
func prepare(db *sql.DB) (int64, error) {
	if err := db.Ping(); err != nil {
		return 0, fmt.Errorf("failed to connect: %w", err)
	}
	for _, pragma := range journalPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return 0, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return 0, fmt.Errorf("failed to create sessions table: %w", err)
	}
	if err := migrate(db); err != nil {
		return 0, err
	}

	var last int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM sessions").Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to read last seq: %w", err)
	}
	return last, nil
}

// Close closes the journal.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Query runs a read-only query against the sessions table. Callers close
// the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// migrate runs the migrations the journal has not seen yet.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate journal to v%d: %w", v+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// indexExpressionHash backs SessionsByHash.
func indexExpressionHash(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_expression_hash ON sessions(expression_hash)`)
	return err
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
