package store

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNoSnapshot marks an absent snapshot for callers that need to tell
// absence apart from failure. LoadLatest itself returns (nil, nil) for "no
// prior"; lookup surfaces wrap that into this sentinel.
var ErrNoSnapshot = errors.New("store: no snapshot")

// Store wraps the vigil database. One writer at a time; the monitor is the
// only component that saves, everything else reads.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Ping verifies the database is reachable. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
