// ABOUTME: Offline store: the durable local mirror of the whole dataset
// ABOUTME: A single JSON blob row seeded from bundled reference data on first use
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/leadsheet/models"
)

//go:embed seed.json
var seedData []byte

// ErrLeadNotFound is returned when an update names a lead the store does not hold.
var ErrLeadNotFound = errors.New("lead not found")

// firstDataRow is the sheet row of the first lead; row 1 is the header.
const firstDataRow = 2

// OfflineStore persists a SystemData mirror. Leads added while no sheet is
// writable are pending: RowIndex stays -1 until a remote write places them.
type OfflineStore struct {
	db   *sql.DB
	seed []byte
}

// NewOfflineStore creates a store seeded from the bundled dataset.
func NewOfflineStore(db *sql.DB) *OfflineStore {
	return &OfflineStore{db: db, seed: seedData}
}

// WithSeed replaces the dataset used when the store is empty.
func (s *OfflineStore) WithSeed(seed []byte) *OfflineStore {
	s.seed = seed
	return s
}

// IsPending reports whether lead was created locally and has not reached the sheet.
func IsPending(lead models.Lead) bool {
	return lead.Pending && lead.RowIndex < firstDataRow
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// load reads the blob, seeding it first when absent.
func (s *OfflineStore) load(ctx context.Context, q queryer) (*models.SystemData, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT data FROM offline_store WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		data := &models.SystemData{}
		if len(s.seed) > 0 {
			if err := json.Unmarshal(s.seed, data); err != nil {
				return nil, fmt.Errorf("failed to decode seed data: %w", err)
			}
		}
		if err := s.store(ctx, q, data); err != nil {
			return nil, err
		}
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read offline store: %w", err)
	}

	data := &models.SystemData{}
	if err := json.Unmarshal([]byte(raw), data); err != nil {
		return nil, fmt.Errorf("failed to decode offline store: %w", err)
	}
	return data, nil
}

func (s *OfflineStore) store(ctx context.Context, q queryer, data *models.SystemData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode offline store: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO offline_store (id, data, created_at, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, string(raw))
	if err != nil {
		return fmt.Errorf("failed to write offline store: %w", err)
	}
	return nil
}

// mutate runs fn over the stored data inside one transaction and persists the result.
func (s *OfflineStore) mutate(ctx context.Context, fn func(data *models.SystemData) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	data, err := s.load(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	if err := s.store(ctx, tx, data); err != nil {
		return err
	}
	return tx.Commit()
}

// Load returns the stored dataset, seeding it on first use.
func (s *OfflineStore) Load(ctx context.Context) (*models.SystemData, error) {
	return s.load(ctx, s.db)
}

// PendingLeads returns the stored leads that have no sheet row yet.
func (s *OfflineStore) PendingLeads(ctx context.Context) ([]models.Lead, error) {
	data, err := s.load(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return pendingOf(data.Leads, nil), nil
}

// pendingOf lists the pending leads of leads whose id is not in known.
func pendingOf(leads []models.Lead, known map[string]bool) []models.Lead {
	var out []models.Lead
	for _, l := range leads {
		if IsPending(l) && !known[l.LeadID] {
			out = append(out, l.Clone())
		}
	}
	return out
}

// Mirror replaces the stored dataset with a fetched snapshot. Pending leads
// the snapshot does not contain are kept after the snapshot's leads and
// returned so callers can overlay them on what they serve.
func (s *OfflineStore) Mirror(ctx context.Context, snapshot *models.SystemData) ([]models.Lead, error) {
	var kept []models.Lead
	err := s.mutate(ctx, func(data *models.SystemData) error {
		known := make(map[string]bool, len(snapshot.Leads))
		for _, l := range snapshot.Leads {
			known[l.LeadID] = true
		}
		kept = pendingOf(data.Leads, known)

		*data = *snapshot.Clone()
		for _, l := range kept {
			data.Leads = append(data.Leads, l.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return kept, nil
}

// AddLead stores a new lead, assigning an id when missing. The lead has no
// sheet row until it is written remotely.
func (s *OfflineStore) AddLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	var stored models.Lead
	err := s.mutate(ctx, func(data *models.SystemData) error {
		stored = lead.Clone()
		if stored.LeadID == "" {
			stored.LeadID = models.NewLeadID()
		}
		if stored.Status == "" && stored.Stage == "" {
			stored.SetStatus(models.StageNew)
		} else {
			stored.SetStatus(stored.CurrentStage())
		}
		stored.RowIndex = -1
		stored.Pending = true
		data.Leads = append(data.Leads, stored)
		return nil
	})
	if err != nil {
		return models.Lead{}, err
	}
	return stored, nil
}

// UpdateLead replaces the lead with the same id. The stored row index is
// kept, except that a lead without a row takes the row it was appended at.
func (s *OfflineStore) UpdateLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	var stored models.Lead
	err := s.mutate(ctx, func(data *models.SystemData) error {
		for i := range data.Leads {
			if data.Leads[i].LeadID != lead.LeadID {
				continue
			}
			stored = lead.Clone()
			stored.RowIndex = data.Leads[i].RowIndex
			stored.Pending = data.Leads[i].Pending
			if stored.RowIndex < firstDataRow && lead.RowIndex >= firstDataRow {
				stored.RowIndex = lead.RowIndex
				stored.Pending = false
			}
			stored.SetStatus(stored.CurrentStage())
			data.Leads[i] = stored
			return nil
		}
		return fmt.Errorf("%w: %s", ErrLeadNotFound, lead.LeadID)
	})
	if err != nil {
		return models.Lead{}, err
	}
	return stored, nil
}

// SaveConfig replaces the stored rule sets.
func (s *OfflineStore) SaveConfig(ctx context.Context, rules models.RuleSets) error {
	return s.mutate(ctx, func(data *models.SystemData) error {
		data.RuleSets = rules
		data.FetchedAt = time.Now().UTC()
		return nil
	})
}

// Reset deletes the stored dataset; the next Load reseeds it.
func (s *OfflineStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_store`); err != nil {
		return fmt.Errorf("failed to reset offline store: %w", err)
	}
	return nil
}
