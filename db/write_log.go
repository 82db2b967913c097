// ABOUTME: Append-only log of every write the engine performs
// ABOUTME: One row per add, update, or config save, remote or local
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Write log ops and targets.
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpConfig = "config"

	TargetRemote = "remote"
	TargetLocal  = "local"
)

// WriteLogEntry is one recorded write.
type WriteLogEntry struct {
	ID           string
	LeadID       string
	Op           string
	Target       string
	RowIndex     int
	ErrorMessage string
	CreatedAt    time.Time
}

// AppendWriteLog inserts an entry, assigning an id when none is set.
func AppendWriteLog(db *sql.DB, entry WriteLogEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	var errMsg sql.NullString
	if entry.ErrorMessage != "" {
		errMsg = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO write_log (id, lead_id, op, target, row_index, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, entry.ID, entry.LeadID, entry.Op, entry.Target, entry.RowIndex, errMsg)
	if err != nil {
		return "", fmt.Errorf("failed to append write log: %w", err)
	}
	return entry.ID, nil
}

// RecentWrites returns up to limit entries, newest first.
func RecentWrites(db *sql.DB, limit int) ([]WriteLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, lead_id, op, target, row_index, error_message, created_at
		FROM write_log
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query write log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []WriteLogEntry
	for rows.Next() {
		var e WriteLogEntry
		var leadID, errMsg sql.NullString
		var rowIndex sql.NullInt64
		if err := rows.Scan(&e.ID, &leadID, &e.Op, &e.Target, &rowIndex, &errMsg, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan write log: %w", err)
		}
		e.LeadID = leadID.String
		e.RowIndex = int(rowIndex.Int64)
		e.ErrorMessage = errMsg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating write log: %w", err)
	}
	return entries, nil
}
