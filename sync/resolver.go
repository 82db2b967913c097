// ABOUTME: Tiered read resolution: cache, authenticated sheet, public sheet, offline store
// ABOUTME: Every failure is logged, recorded, and falls through; Resolve never errors
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/schema"
)

// Resolver produces SystemData snapshots.
type Resolver struct {
	e *Engine
}

// Resolve returns a fresh snapshot from the first tier that can serve one.
// forceRefresh skips the cache. The result is never nil and is safe to mutate.
func (r *Resolver) Resolve(ctx context.Context, forceRefresh bool) *models.SystemData {
	e := r.e
	log := e.logger()

	if !forceRefresh && e.Cache != nil {
		data, ok, err := e.Cache.Load()
		switch {
		case err != nil:
			log.Warn("cache read failed", zap.Error(err))
			e.Metrics.resolve(TierCache, "error")
		case ok:
			out := data.Clone()
			out.DataSource = models.SourceCache
			e.Metrics.resolve(TierCache, "hit")
			e.Metrics.served(len(out.Leads))
			return out
		default:
			e.Metrics.resolve(TierCache, "miss")
		}
	}

	var lastErr error
	tiers := []struct {
		name     string
		store    RemoteStore
		readOnly bool
	}{
		{TierAuth, e.Auth, false},
		{TierPublic, e.Public, true},
	}
	for _, tier := range tiers {
		if tier.store == nil {
			continue
		}
		data, err := r.fetch(ctx, tier.name, tier.store)
		if err != nil {
			lastErr = err
			r.recordFailure(tier.name, err)
			continue
		}
		data.ReadOnly = tier.readOnly
		r.commit(ctx, tier.name, data)
		e.Metrics.resolve(tier.name, "ok")
		e.Metrics.served(len(data.Leads))
		return data
	}

	return r.local(ctx, lastErr)
}

func (r *Resolver) recordFailure(tier string, err error) {
	e := r.e
	e.logger().Warn("remote fetch failed, falling through", zap.String("tier", tier), zap.Error(err))
	e.Metrics.resolve(tier, "error")
	if e.DB != nil {
		if dbErr := db.RecordSyncError(e.DB, tier, err.Error()); dbErr != nil {
			e.logger().Warn("failed to record sync error", zap.Error(dbErr))
		}
	}
}

// commit writes a fetched snapshot to the offline mirror and the cache.
// Leads added locally that the sheet does not hold yet are appended to data.
func (r *Resolver) commit(ctx context.Context, tier string, data *models.SystemData) {
	e := r.e
	log := e.logger()
	if e.Offline != nil {
		pending, err := e.Offline.Mirror(ctx, data)
		if err != nil {
			log.Warn("failed to mirror snapshot into offline store", zap.Error(err))
		}
		if len(pending) > 0 {
			log.Info("serving leads not yet in the sheet", zap.String("tier", tier), zap.Int("pending", len(pending)))
			data.Leads = append(data.Leads, pending...)
		}
	}
	if e.Cache != nil {
		if err := e.Cache.Store(data); err != nil {
			log.Warn("failed to write cache", zap.Error(err))
		}
	}
	if e.DB != nil {
		detail := fmt.Sprintf("%d leads", len(data.Leads))
		if err := db.RecordSyncSuccess(e.DB, tier, detail); err != nil {
			log.Warn("failed to record sync state", zap.Error(err))
		}
	}
	log.Info("snapshot fetched",
		zap.String("tier", tier),
		zap.Int("leads", len(data.Leads)),
		zap.Bool("read_only", data.ReadOnly),
	)
}

func (r *Resolver) local(ctx context.Context, lastErr error) *models.SystemData {
	e := r.e
	log := e.logger()

	var out *models.SystemData
	if e.Offline != nil {
		data, err := e.Offline.Load(ctx)
		if err != nil {
			log.Error("offline store unavailable", zap.Error(err))
			lastErr = errors.Join(lastErr, err)
		} else {
			out = data.Clone()
		}
	}
	if out == nil {
		out = &models.SystemData{}
	}

	out.DataSource = models.SourceLocal
	out.ReadOnly = true
	out.FetchedAt = e.now()
	switch {
	case lastErr != nil:
		out.LastError = lastErr.Error()
	case e.DB != nil:
		if msg, err := db.LastSyncError(e.DB); err == nil {
			out.LastError = msg
		}
	}
	e.Metrics.resolve(TierLocal, "ok")
	e.Metrics.served(len(out.Leads))
	return out
}

// fetch reads every range from store and decodes a snapshot.
func (r *Resolver) fetch(ctx context.Context, tier string, store RemoteStore) (*models.SystemData, error) {
	e := r.e
	start := e.now()
	ranges := e.Ranges.All()

	values, err := store.BatchGet(ctx, ranges)
	if err != nil {
		e.logger().Debug("batch fetch failed, fetching ranges separately", zap.String("tier", tier), zap.Error(err))
		values, err = r.fanOut(ctx, store, ranges)
		if err != nil {
			return nil, err
		}
	}
	e.Metrics.fetched(tier, start)
	for len(values) < len(ranges) {
		values = append(values, nil)
	}

	m, leads := schema.DecodeLeads(values[0])
	report := m.Report()
	if !report.OK() {
		e.logger().Warn("leads header differs from expected schema",
			zap.Strings("missing", report.Missing),
			zap.Strings("duplicates", report.Duplicates),
			zap.Strings("unknown", report.Unknown),
		)
	}
	if e.Schemas != nil && len(values[0]) > 0 {
		if err := e.Schemas.Save(e.SpreadsheetID, m); err != nil {
			e.logger().Warn("failed to persist schema map", zap.Error(err))
		}
	}

	data := &models.SystemData{
		Leads:      leads,
		DataSource: models.SourceCloud,
		FetchedAt:  e.now(),
		Schema:     &report,
	}
	data.StageRules = schema.DecodeStageRules(values[1])
	data.SLARules = schema.DecodeSLARules(values[2])
	data.AutoActionRules = schema.DecodeAutoActionRules(values[3])
	data.CategoryOverrides = schema.DecodeCategoryOverrides(values[4])
	data.Options = schema.DecodeOptions(values[5])
	return data, nil
}

// fanOut fetches the leads range alone, then every config range
// concurrently. A failed config range yields an empty table.
func (r *Resolver) fanOut(ctx context.Context, store RemoteStore, ranges []string) ([][][]interface{}, error) {
	leads, err := store.Get(ctx, ranges[0])
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	values := make([][][]interface{}, len(ranges))
	values[0] = leads

	var wg gosync.WaitGroup
	for i := 1; i < len(ranges); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := store.Get(ctx, ranges[i])
			if err != nil {
				r.e.logger().Debug("config range unavailable", zap.String("range", ranges[i]), zap.Error(err))
				return
			}
			values[i] = v
		}(i)
	}
	wg.Wait()
	return values, nil
}
