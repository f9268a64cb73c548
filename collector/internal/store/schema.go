package store

import "database/sql"

// Schema is the complete feedback database schema.
const Schema = `
-- Observed posts and replies. Append-only: rows are never updated or deleted.
CREATE TABLE IF NOT EXISTS feedback_items (
    id              TEXT PRIMARY KEY,
    author_name     TEXT NOT NULL DEFAULT '',
    author_handle   TEXT NOT NULL DEFAULT '',
    text            TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL DEFAULT '',
    source_type     TEXT NOT NULL DEFAULT '',
    source_detail   TEXT NOT NULL DEFAULT '',
    parent_text     TEXT NOT NULL DEFAULT '',
    parent_url      TEXT NOT NULL DEFAULT '',
    likes           INTEGER NOT NULL DEFAULT 0,
    retweets        INTEGER NOT NULL DEFAULT 0,
    replies         INTEGER NOT NULL DEFAULT 0,
    category        TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT '',
    collected_at    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_items_created ON feedback_items(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_items_source_type ON feedback_items(source_type);

-- Collection run history
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    started_at      INTEGER NOT NULL,
    finished_at     INTEGER,
    since           TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'running',
    new_items       INTEGER NOT NULL DEFAULT 0,
    scanned         INTEGER NOT NULL DEFAULT 0,
    skipped         INTEGER NOT NULL DEFAULT 0,
    error_message   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// Earlier databases predate the thread-context and category columns.
const (
	migrationParentText = `ALTER TABLE feedback_items ADD COLUMN parent_text TEXT NOT NULL DEFAULT ''`
	migrationParentURL  = `ALTER TABLE feedback_items ADD COLUMN parent_url TEXT NOT NULL DEFAULT ''`
	migrationCategory   = `ALTER TABLE feedback_items ADD COLUMN category TEXT NOT NULL DEFAULT ''`
)

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return err
	}
	applyColumnMigration(db, "feedback_items", "parent_text", migrationParentText)
	applyColumnMigration(db, "feedback_items", "parent_url", migrationParentURL)
	applyColumnMigration(db, "feedback_items", "category", migrationCategory)
	return nil
}

// applyColumnMigration adds a column if it doesn't exist (idempotent).
func applyColumnMigration(db *sql.DB, table, column, ddl string) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil || count > 0 {
		return
	}
	db.Exec(ddl)
}
