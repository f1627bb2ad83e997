// Package store is the SQLite persistence layer: packages, upstreams,
// subscriptions with their fetch cursors, deduplicated update events,
// and packaging requests.
package store

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle. Safe for concurrent use; SQLite serializes
// writers and busy_timeout absorbs short contention.
type DB struct {
	*sqlx.DB
}

// pragmas must hold on every pooled connection, so they go into the DSN
// where the driver replays them per connection. A plain Exec would pin
// them to whichever connection happened to serve it.
const pragmas = "_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Open opens (or creates) the database at dsn and applies the schema.
// Use ":memory:" for tests.
func Open(dsn string) (*DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open("sqlite", dsn+sep+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Each in-memory connection is its own empty database; keep the
	// pool at one so every caller sees the same data.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &DB{db}, nil
}

// Close releases the underlying handle.
func (db *DB) Close() error {
	return db.DB.Close()
}
