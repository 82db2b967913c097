// ABOUTME: Database schema definitions and migrations
// ABOUTME: Handles SQLite table creation for the offline store, sync state, and write log
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS offline_store (
	id INTEGER PRIMARY KEY CHECK(id = 1),
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time DATETIME,
	detail TEXT,
	status TEXT CHECK(status IN ('idle', 'ok', 'error')),
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS write_log (
	id TEXT PRIMARY KEY,
	lead_id TEXT,
	op TEXT NOT NULL CHECK(op IN ('add', 'update', 'config')),
	target TEXT NOT NULL CHECK(target IN ('remote', 'local')),
	row_index INTEGER,
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_write_log_lead ON write_log(lead_id);
CREATE INDEX IF NOT EXISTS idx_write_log_created_at ON write_log(created_at DESC);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
