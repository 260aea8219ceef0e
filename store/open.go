// Package store is the persistence layer: SQLite, one file, one writer.
// It keeps every crawl snapshot (pruned to a configured depth), the run
// ledger, and the media mentions seen so far.
//
// The caller must blank-import an SQLite driver:
//
//	import _ "modernc.org/sqlite"
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type openConfig struct {
	busyTimeout int
	synchronous string
	ping        bool
}

// Option customises Open behaviour.
type Option func(*openConfig)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *openConfig) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *openConfig) { c.synchronous = mode } }

// WithoutPing skips the connectivity check after opening.
func WithoutPing() Option { return func(c *openConfig) { c.ping = false } }

// Open opens the SQLite database at path with production-safe pragmas
// (foreign keys on, WAL, busy timeout) and creates parent directories as
// needed. It does not apply the schema; call ApplySchema after.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := openConfig{busyTimeout: 10_000, synchronous: "NORMAL", ping: true}
	for _, o := range opts {
		o(&cfg)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if cfg.ping {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: ping: %w", err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database for testing. MaxOpenConns is
// pinned to 1 because each connection to ":memory:" is a separate database.
// Closing is registered on t.Cleanup.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
