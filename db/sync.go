// ABOUTME: Database operations for the sync_state table
// ABOUTME: Records per-tier fetch outcomes so the last cloud error survives restarts
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Sync state statuses.
const (
	SyncStatusIdle  = "idle"
	SyncStatusOK    = "ok"
	SyncStatusError = "error"
)

// SyncState represents the fetch state of one tier.
type SyncState struct {
	Service      string
	LastSyncTime *time.Time
	Detail       *string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func scanSyncState(scan func(dest ...interface{}) error) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var detail sql.NullString
	var errorMessage sql.NullString

	if err := scan(
		&state.Service,
		&lastSyncTime,
		&detail,
		&state.Status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if detail.Valid {
		state.Detail = &detail.String
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}
	return &state, nil
}

// GetSyncState retrieves the sync state for a service.
func GetSyncState(db *sql.DB, service string) (*SyncState, error) {
	row := db.QueryRow(`
		SELECT service, last_sync_time, detail, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE service = ?
	`, service)

	state, err := scanSyncState(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}
	return state, nil
}

// RecordSyncError marks a service as failed with msg.
func RecordSyncError(db *sql.DB, service, msg string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (service, status, error_message, created_at, updated_at)
		VALUES (?, 'error', ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			status = 'error',
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, service, msg)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

// RecordSyncSuccess updates the last sync time and clears any error.
func RecordSyncSuccess(db *sql.DB, service, detail string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (service, last_sync_time, detail, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, ?, 'ok', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			detail = excluded.detail,
			status = 'ok',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, service, detail)

	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return nil
}

// LastSyncError returns the most recently recorded error message across all
// services, or "" when every tier last succeeded.
func LastSyncError(db *sql.DB) (string, error) {
	var msg string
	err := db.QueryRow(`
		SELECT error_message FROM sync_state
		WHERE status = 'error' AND error_message IS NOT NULL
		ORDER BY updated_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&msg)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last sync error: %w", err)
	}
	return msg, nil
}

// GetAllSyncStates retrieves the sync state for all services.
func GetAllSyncStates(db *sql.DB) ([]SyncState, error) {
	rows, err := db.Query(`
		SELECT service, last_sync_time, detail, status, error_message, created_at, updated_at
		FROM sync_state
		ORDER BY service
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []SyncState
	for rows.Next() {
		state, err := scanSyncState(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}
	return states, nil
}
