// Package index provides the SQLite-backed authoritative capture index.
// It holds one row per capture/deletion event and is rebuildable from the
// audit log via MigrateFromAudit.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS captures (
	id         TEXT PRIMARY KEY,
	ts         TEXT NOT NULL,
	path       TEXT NOT NULL,
	width      INTEGER,
	height     INTEGER,
	resolution TEXT,
	mood       TEXT,
	notes      TEXT,
	action     TEXT NOT NULL,
	created_at REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_ts ON captures(ts);
`

// DB wraps a sql.DB with capture-index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Applying the schema is idempotent.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
