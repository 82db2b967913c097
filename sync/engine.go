// ABOUTME: Engine is the per-process context holding session, cache, and offline store
// ABOUTME: Built and closed by the entry point; the resolver and writer hang off it
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/harperreed/leadsheet/config"
	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/kv"
)

// Tier names used in logs, metrics and sync_state.
const (
	TierCache  = "cache"
	TierAuth   = "sheets"
	TierPublic = "public"
	TierLocal  = "local"
)

// Engine wires the remote stores and local stores together.
type Engine struct {
	SpreadsheetID string
	Ranges        Ranges

	// Auth is nil when there is no authenticated session.
	Auth RemoteStore
	// Public is nil when no API key is configured.
	Public RemoteStore

	Cache   *kv.Cache
	Schemas *kv.SchemaStore
	DB      *sql.DB
	Offline *db.OfflineStore

	Logger  *zap.Logger
	Metrics *Metrics
	Now     func() time.Time

	closers []func() error
}

// Options control how Open builds an engine.
type Options struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	// LocalOnly skips every remote tier.
	LocalOnly bool
}

// Open builds an engine from configuration. Missing credentials are not an
// error; the corresponding tier is simply absent.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	kvClient, err := kv.Open(cfg.KVDir())
	if err != nil {
		return nil, err
	}
	database, err := db.OpenDatabase(cfg.DatabasePath())
	if err != nil {
		_ = kvClient.Close()
		return nil, err
	}

	loc := cfg.Location()
	e := &Engine{
		SpreadsheetID: cfg.SpreadsheetID,
		Ranges:        RangesFor(cfg.Sheets),
		Cache:         kv.NewCache(kvClient, cfg.TTL()),
		Schemas:       kv.NewSchemaStore(kvClient),
		DB:            database,
		Offline:       db.NewOfflineStore(database),
		Logger:        logger,
		Metrics:       NewMetrics(reg),
		Now:           func() time.Time { return time.Now().In(loc) },
		closers:       []func() error{database.Close, kvClient.Close},
	}

	if opts.LocalOnly || !cfg.HasSpreadsheet() {
		logger.Debug("remote tiers disabled", zap.Bool("local_only", opts.LocalOnly))
		return e, nil
	}

	if ts, err := SessionTokenSource(ctx, cfg); err == nil {
		store, err := NewSheetsStore(ctx, cfg.SpreadsheetID, ts)
		if err != nil {
			logger.Warn("authenticated tier unavailable", zap.Error(err))
		} else {
			e.Auth = store
		}
	} else {
		logger.Debug("no authenticated session", zap.Error(err))
	}

	if cfg.APIKey != "" {
		store, err := NewPublicSheetsStore(ctx, cfg.SpreadsheetID, cfg.APIKey)
		if err != nil {
			logger.Warn("public tier unavailable", zap.Error(err))
		} else {
			e.Public = store
		}
	}
	return e, nil
}

// Close releases the local stores.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Resolver returns the tiered reader.
func (e *Engine) Resolver() *Resolver {
	return &Resolver{e: e}
}

// Writer returns the write path.
func (e *Engine) Writer() *Writer {
	return &Writer{e: e}
}

// Status summarizes the engine's tiers and recent activity.
type Status struct {
	SpreadsheetID string
	HasSession    bool
	HasAPIKey     bool
	CacheAge      time.Duration
	CacheFresh    bool
	PendingLeads  int
	SyncStates    []db.SyncState
	RecentWrites  []db.WriteLogEntry
}

// Status reports the current state of every tier.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	s := &Status{
		SpreadsheetID: e.SpreadsheetID,
		HasSession:    e.Auth != nil,
		HasAPIKey:     e.Public != nil,
	}
	if age, ok := e.Cache.Age(); ok {
		s.CacheAge = age
		s.CacheFresh = age < e.Cache.TTL()
	}

	pending, err := e.Offline.PendingLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read offline store: %w", err)
	}
	s.PendingLeads = len(pending)

	if s.SyncStates, err = db.GetAllSyncStates(e.DB); err != nil {
		return nil, err
	}
	if s.RecentWrites, err = db.RecentWrites(e.DB, 10); err != nil {
		return nil, err
	}
	return s, nil
}
