package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the SQLite-backed persistence layer shared by the catalog,
// calendar, task, source and entity stores.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewStore opens (and if needed creates) the database at path and applies
// the schema. WAL mode keeps concurrent admissions from parallel collectors
// from tripping over the writer lock.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS entities (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL UNIQUE,
    key                TEXT NOT NULL,
    aliases            TEXT NOT NULL DEFAULT '[]',
    country            TEXT NOT NULL DEFAULT '',
    ticker             TEXT NOT NULL DEFAULT '',
    reporting_language TEXT NOT NULL DEFAULT '',
    ir_website         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS catalog_entries (
    id            TEXT PRIMARY KEY,
    fingerprint   TEXT NOT NULL UNIQUE,
    entity_id     TEXT NOT NULL REFERENCES entities(id),
    document_type TEXT NOT NULL,
    title         TEXT NOT NULL,
    artifact_url  TEXT NOT NULL,
    page_url      TEXT NOT NULL DEFAULT '',
    language      TEXT NOT NULL DEFAULT '',
    period        TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    storage_path  TEXT,
    content_hash  TEXT,
    size_bytes    INTEGER,
    last_error    TEXT NOT NULL DEFAULT '',
    discovered_at TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_catalog_status ON catalog_entries(status);
CREATE INDEX IF NOT EXISTS idx_catalog_entity ON catalog_entries(entity_id);

CREATE TABLE IF NOT EXISTS calendar_events (
    id           TEXT PRIMARY KEY,
    entity_id    TEXT NOT NULL REFERENCES entities(id),
    event_type   TEXT NOT NULL,
    event_date   TEXT NOT NULL,
    event_time   TEXT NOT NULL DEFAULT '',
    title        TEXT NOT NULL,
    amount       REAL NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    record_date  TEXT,
    payment_date TEXT,
    webcast_url  TEXT NOT NULL DEFAULT '',
    source_url   TEXT NOT NULL DEFAULT '',
    confirmed    INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL,
    UNIQUE(entity_id, event_type, event_date)
);

CREATE TABLE IF NOT EXISTS manual_tasks (
    id                TEXT PRIMARY KEY,
    catalog_entry_id  TEXT NOT NULL,
    entity_id         TEXT NOT NULL DEFAULT '',
    document_type     TEXT NOT NULL DEFAULT '',
    failure_reason    TEXT NOT NULL,
    attempted_methods TEXT NOT NULL DEFAULT '[]',
    priority          TEXT NOT NULL,
    status            TEXT NOT NULL,
    deadline          TEXT,
    completed_by      TEXT NOT NULL DEFAULT '',
    completion_notes  TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL,
    completed_at      TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_entry ON manual_tasks(catalog_entry_id);

CREATE TABLE IF NOT EXISTS collection_sources (
    id              TEXT PRIMARY KEY,
    entity_id       TEXT NOT NULL REFERENCES entities(id),
    kind            TEXT NOT NULL,
    priority        INTEGER NOT NULL DEFAULT 3,
    config          TEXT NOT NULL DEFAULT '{}',
    status          TEXT NOT NULL DEFAULT 'active',
    last_success    TEXT,
    failure_count   INTEGER NOT NULL DEFAULT 0,
    rate_per_second REAL NOT NULL DEFAULT 0.5,
    notes           TEXT NOT NULL DEFAULT '',
    updated_at      TEXT NOT NULL
);
`

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	return parseTime(s.String)
}
