// Package devbackend is a reference tracker backend backed by SQLite. It
// speaks the same HTTP contract as the production service and is used for
// local development and by the sync layer's tests.
package devbackend

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS applications (
	application_id  TEXT PRIMARY KEY,
	company         TEXT NOT NULL,
	job_title       TEXT NOT NULL DEFAULT '',
	job_description TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'applied',
	applied_date    TEXT,
	resume_id       TEXT NOT NULL DEFAULT '',
	cv_id           TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	note_id        TEXT PRIMARY KEY,
	application_id TEXT NOT NULL REFERENCES applications(application_id) ON DELETE CASCADE,
	content        TEXT NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
CREATE INDEX IF NOT EXISTS idx_notes_application ON notes(application_id);
`

// DB wraps a sql.DB with tracker-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// An empty dsn or ":memory:" gives a private in-memory database.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dsn+sep+"_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("devbackend: open db: %w", err)
	}
	// Every pooled connection to :memory: would see its own database.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("devbackend: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("devbackend: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
