// ABOUTME: Write path for leads and configuration tables
// ABOUTME: Writes to the authenticated sheet when possible, otherwise to the offline store
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/leadsheet/config"
	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/schema"
	"github.com/harperreed/leadsheet/workflow"
)

var (
	// ErrNoRow is returned when a lead without a sheet row cannot be placed.
	ErrNoRow = errors.New("lead has no sheet row")

	// ErrInvalidRules is returned by SaveConfig when a rule set fails validation.
	ErrInvalidRules = errors.New("invalid rules")
)

// Writer persists mutations. Remote writes are last-write-wins with no retry.
type Writer struct {
	e *Engine
}

// Target reports where writes currently go.
func (w *Writer) Target() string {
	if w.e.Auth != nil {
		return db.TargetRemote
	}
	return db.TargetLocal
}

func (w *Writer) schemaMap() *schema.Map {
	if w.e.Schemas != nil {
		m, ok, err := w.e.Schemas.Load(w.e.SpreadsheetID)
		if err != nil {
			w.e.logger().Warn("failed to load schema map, using canonical header", zap.Error(err))
		}
		if ok {
			return m
		}
	}
	return schema.DefaultMap()
}

// finish logs the write, counts it and invalidates the cache on success.
func (w *Writer) finish(op, target string, lead models.Lead, err error) {
	e := w.e
	e.Metrics.wrote(op, target, err)

	entry := db.WriteLogEntry{LeadID: lead.LeadID, Op: op, Target: target, RowIndex: lead.RowIndex}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	if e.DB != nil {
		if _, logErr := db.AppendWriteLog(e.DB, entry); logErr != nil {
			e.logger().Warn("failed to append write log", zap.Error(logErr))
		}
	}

	if err != nil {
		e.logger().Warn("write failed",
			zap.String("op", op),
			zap.String("target", target),
			zap.String("lead_id", lead.LeadID),
			zap.Error(err),
		)
		return
	}
	if e.Cache != nil {
		if err := e.Cache.Invalidate(); err != nil {
			e.logger().Warn("failed to invalidate cache after write", zap.Error(err))
		}
	}
	e.logger().Info("write applied",
		zap.String("op", op),
		zap.String("target", target),
		zap.String("lead_id", lead.LeadID),
		zap.Int("row", lead.RowIndex),
	)
}

// prepareNew fills an id and defaults for a new lead. Every lead enters the
// pipeline at New; later stages are reached through MoveStage.
func prepareNew(lead models.Lead) models.Lead {
	lead = lead.Clone()
	if strings.TrimSpace(lead.LeadID) == "" {
		lead.LeadID = models.NewLeadID()
	}
	lead.SetStatus(models.StageNew)
	lead.WonDate = ""
	lead.LostDate = ""
	lead.RowIndex = -1
	lead.Pending = false
	if lead.Priority == "" || strings.EqualFold(lead.Priority, models.PriorityUnset) {
		lead.Priority = schema.DerivePriority(lead.EstimatedQty)
	}
	return lead
}

// AddLead stores a new lead at New and returns it with its id assigned.
// RowIndex is the appended sheet row, or -1 when the lead was stored locally.
func (w *Writer) AddLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	lead = prepareNew(lead)
	if lead.Date == "" {
		lead.Date = schema.FormatDate(w.e.now())
	}

	if w.e.Auth == nil {
		stored, err := w.e.Offline.AddLead(ctx, lead)
		w.finish(db.OpAdd, db.TargetLocal, stored, err)
		return stored, err
	}

	row := schema.EncodeLead(lead, w.schemaMap())
	updated, err := w.e.Auth.Append(ctx, w.e.Ranges.Leads, row)
	if err != nil {
		err = fmt.Errorf("%w: append lead %s: %v", ErrRemoteWrite, lead.LeadID, err)
		w.finish(db.OpAdd, db.TargetRemote, lead, err)
		return models.Lead{}, err
	}
	if n, perr := ParseUpdatedRow(updated); perr == nil {
		lead.RowIndex = n
	} else {
		w.e.logger().Warn("could not read appended row", zap.String("range", updated), zap.Error(perr))
	}
	w.finish(db.OpAdd, db.TargetRemote, lead, nil)
	return lead, nil
}

// UpdateLead overwrites an existing lead. Remotely the row at RowIndex is
// replaced, or appended when the lead has no row; locally the lead with the
// same id is.
func (w *Writer) UpdateLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	lead = lead.Clone()
	lead.SetStatus(lead.CurrentStage())

	if w.e.Auth == nil {
		stored, err := w.e.Offline.UpdateLead(ctx, lead)
		if err != nil {
			w.finish(db.OpUpdate, db.TargetLocal, lead, err)
			return models.Lead{}, err
		}
		w.finish(db.OpUpdate, db.TargetLocal, stored, nil)
		return stored, nil
	}

	if lead.RowIndex < 2 {
		return w.appendUnplaced(ctx, lead)
	}
	row := schema.EncodeLead(lead, w.schemaMap())
	if err := w.e.Auth.Update(ctx, RowRange(w.e.Ranges.Leads, lead.RowIndex), [][]interface{}{row}); err != nil {
		err = fmt.Errorf("%w: update lead %s: %v", ErrRemoteWrite, lead.LeadID, err)
		w.finish(db.OpUpdate, db.TargetRemote, lead, err)
		return models.Lead{}, err
	}
	w.finish(db.OpUpdate, db.TargetRemote, lead, nil)
	return lead, nil
}

// appendUnplaced writes a lead that has no sheet row yet, such as one added
// while offline, as a new row and records the row in the offline store.
func (w *Writer) appendUnplaced(ctx context.Context, lead models.Lead) (models.Lead, error) {
	if strings.TrimSpace(lead.LeadID) == "" {
		err := fmt.Errorf("%w: lead without id", ErrNoRow)
		w.finish(db.OpUpdate, db.TargetRemote, lead, err)
		return models.Lead{}, err
	}
	row := schema.EncodeLead(lead, w.schemaMap())
	updated, err := w.e.Auth.Append(ctx, w.e.Ranges.Leads, row)
	if err != nil {
		err = fmt.Errorf("%w: append lead %s: %v", ErrRemoteWrite, lead.LeadID, err)
		w.finish(db.OpAdd, db.TargetRemote, lead, err)
		return models.Lead{}, err
	}
	n, err := ParseUpdatedRow(updated)
	if err != nil {
		w.e.logger().Warn("could not read appended row", zap.String("range", updated), zap.Error(err))
	} else {
		lead.RowIndex = n
		lead.Pending = false
	}

	if w.e.Offline != nil && lead.RowIndex >= 2 {
		if _, err := w.e.Offline.UpdateLead(ctx, lead); err != nil && !errors.Is(err, db.ErrLeadNotFound) {
			w.e.logger().Warn("failed to record sheet row locally", zap.String("lead_id", lead.LeadID), zap.Error(err))
		}
	}
	w.finish(db.OpAdd, db.TargetRemote, lead, nil)
	return lead, nil
}

// SaveConfig validates and replaces every configuration table.
func (w *Writer) SaveConfig(ctx context.Context, rules models.RuleSets) error {
	if err := config.Validate(rules); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	if w.e.Auth == nil {
		err := w.e.Offline.SaveConfig(ctx, rules)
		w.finish(db.OpConfig, db.TargetLocal, models.Lead{}, err)
		return err
	}

	r := w.e.Ranges
	tables := []struct {
		rng    string
		values [][]interface{}
	}{
		{r.StageRules, schema.EncodeStageRules(rules.StageRules)},
		{r.SLARules, schema.EncodeSLARules(rules.SLARules)},
		{r.AutoActions, schema.EncodeAutoActionRules(rules.AutoActionRules)},
		{r.CategoryRules, schema.EncodeCategoryOverrides(rules.CategoryOverrides)},
		{r.Settings, schema.EncodeOptions(rules.Options)},
	}
	for _, t := range tables {
		if err := w.e.Auth.Clear(ctx, t.rng); err != nil {
			err = fmt.Errorf("%w: clear %s: %v", ErrRemoteWrite, t.rng, err)
			w.finish(db.OpConfig, db.TargetRemote, models.Lead{}, err)
			return err
		}
		if err := w.e.Auth.Update(ctx, RowRange(t.rng, 1), t.values); err != nil {
			err = fmt.Errorf("%w: write %s: %v", ErrRemoteWrite, t.rng, err)
			w.finish(db.OpConfig, db.TargetRemote, models.Lead{}, err)
			return err
		}
	}
	w.finish(db.OpConfig, db.TargetRemote, models.Lead{}, nil)
	return nil
}

// MoveStage applies a validated stage change to a lead of data and persists it.
func (w *Writer) MoveStage(ctx context.Context, data *models.SystemData, leadID, toStage string, now time.Time) (models.Lead, error) {
	lead, ok := data.FindLead(leadID)
	if !ok {
		return models.Lead{}, fmt.Errorf("%w: %s", db.ErrLeadNotFound, leadID)
	}
	moved, err := workflow.ApplyStageChange(lead, toStage, workflow.RulesFrom(data), now)
	if err != nil {
		return models.Lead{}, err
	}
	return w.UpdateLead(ctx, moved)
}
