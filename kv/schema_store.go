// ABOUTME: Persists the last seen leads header map across sessions
// ABOUTME: Scoped to a spreadsheet id so switching sheets invalidates it

package kv

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harperreed/leadsheet/schema"
)

// SchemaKey holds the persisted schema map.
const SchemaKey = "schema_map"

type schemaEntry struct {
	SpreadsheetID string   `json:"spreadsheetId"`
	Version       int      `json:"version"`
	Headers       []string `json:"headers"`
}

// SchemaStore saves and loads schema maps.
type SchemaStore struct {
	kv *Client
}

// NewSchemaStore creates a schema store over kv.
func NewSchemaStore(kv *Client) *SchemaStore {
	return &SchemaStore{kv: kv}
}

// Save records the header row seen for spreadsheetID.
func (s *SchemaStore) Save(spreadsheetID string, m *schema.Map) error {
	raw, err := json.Marshal(schemaEntry{
		SpreadsheetID: spreadsheetID,
		Version:       schema.ExpectedSchemaVersion,
		Headers:       m.Headers,
	})
	if err != nil {
		return fmt.Errorf("failed to encode schema map: %w", err)
	}
	if err := s.kv.Set(SchemaKey, raw); err != nil {
		return fmt.Errorf("failed to save schema map: %w", err)
	}
	return nil
}

// Load returns the map saved for spreadsheetID. A map saved for another
// spreadsheet or an older schema version reports ok=false.
func (s *SchemaStore) Load(spreadsheetID string) (*schema.Map, bool, error) {
	raw, err := s.kv.Get(SchemaKey)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read schema map: %w", err)
	}
	var entry schemaEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, nil //nolint:nilerr // a corrupt entry is a miss
	}
	if entry.SpreadsheetID != spreadsheetID || entry.Version != schema.ExpectedSchemaVersion || len(entry.Headers) == 0 {
		return nil, false, nil
	}
	return schema.Build(entry.Headers), true, nil
}
