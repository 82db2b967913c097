// ABOUTME: Test utilities for building a pipeline over in-memory stores
// ABOUTME: Used by the surface packages so their tests never touch the user's data directory
package handlers

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/harperreed/leadsheet/config"
	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/kv"
	"github.com/harperreed/leadsheet/sync"
)

// NewTestPipeline returns a local-only pipeline seeded with the bundled
// dataset whose clock is fixed at now.
func NewTestPipeline(t testing.TB, now time.Time) *Pipeline {
	t.Helper()

	client := kv.NewTestClient(t)
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	clock := func() time.Time { return now }
	engine := &sync.Engine{
		SpreadsheetID: "sheet-test",
		Ranges:        sync.RangesFor(config.DefaultSheetNames()),
		Cache:         kv.NewCache(client, kv.DefaultCacheTTL).WithClock(clock),
		Schemas:       kv.NewSchemaStore(client),
		DB:            database,
		Offline:       db.NewOfflineStore(database),
		Logger:        zap.NewNop(),
		Metrics:       sync.NewMetrics(prometheus.NewRegistry()),
		Now:           clock,
	}
	return NewPipeline(engine)
}
