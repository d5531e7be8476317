// Package dbopen opens the SQLite file behind the ingest audit log.
//
// Pragmas run as statements after open so every driver build ends up
// with the same settings:
//
//	journal_mode = WAL
//	busy_timeout = 10000 (WithBusyTimeout)
//	synchronous  = NORMAL (WithSynchronous)
//	foreign_keys = ON
//
// Tests use OpenMemory, which pins the pool to one connection.
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const memoryPath = ":memory:"

type options struct {
	busyTimeoutMS int
	synchronous   string
	mkdirAll      bool
	schemas       []string
}

// Option adjusts Open.
type Option func(*options)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds.
func WithBusyTimeout(ms int) Option { return func(o *options) { o.busyTimeoutMS = ms } }

// WithSynchronous sets PRAGMA synchronous (OFF, NORMAL, FULL, EXTRA).
func WithSynchronous(mode string) Option { return func(o *options) { o.synchronous = mode } }

// WithMkdirAll creates the parent directory of path if missing.
func WithMkdirAll() Option { return func(o *options) { o.mkdirAll = true } }

// WithSchema runs DDL after the pragmas. Statements must be idempotent.
func WithSchema(ddl string) Option { return func(o *options) { o.schemas = append(o.schemas, ddl) } }

// Open opens path with the modernc "sqlite" driver, which the caller
// blank-imports.
func Open(path string, opts ...Option) (*sql.DB, error) {
	o := options{busyTimeoutMS: 10_000, synchronous: "NORMAL"}
	for _, fn := range opts {
		fn(&o)
	}

	if o.mkdirAll && path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: create dir for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if err := prepare(db, o); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func prepare(db *sql.DB, o options) error {
	stmts := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeoutMS),
		"PRAGMA synchronous = " + o.synchronous,
		"PRAGMA foreign_keys = ON",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("dbopen: %s: %w", s, err)
		}
	}
	for _, ddl := range o.schemas {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("dbopen: schema: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("dbopen: ping: %w", err)
	}
	return nil
}

// OpenMemory opens a private in-memory database closed at test cleanup.
// Every connection to ":memory:" is a fresh database, hence one conn.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memoryPath, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
