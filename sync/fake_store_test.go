package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harperreed/leadsheet/config"
	"github.com/harperreed/leadsheet/db"
	"github.com/harperreed/leadsheet/kv"
)

var errUnavailable = errors.New("503 backend unavailable")

// fakeStore is an in-memory RemoteStore that counts every call.
type fakeStore struct {
	mu gosync.Mutex

	values   map[string][][]interface{}
	batchErr error
	getErr   map[string]error
	writeErr error
	nextRow  int

	batchCalls  int
	getCalls    int
	appended    [][]interface{}
	updates     map[string][][]interface{}
	cleared     []string
	appendRange string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:  make(map[string][][]interface{}),
		getErr:  make(map[string]error),
		updates: make(map[string][][]interface{}),
		nextRow: 9,
	}
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchCalls + f.getCalls
}

func (f *fakeStore) BatchGet(_ context.Context, ranges []string) ([][][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][][]interface{}, len(ranges))
	for i, r := range ranges {
		if err := f.getErr[r]; err != nil {
			return nil, err
		}
		out[i] = f.values[r]
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, rng string) ([][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if err := f.getErr[rng]; err != nil {
		return nil, err
	}
	return f.values[rng], nil
}

func (f *fakeStore) Append(_ context.Context, rng string, row []interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return "", f.writeErr
	}
	f.appended = append(f.appended, row)
	f.appendRange = rng
	n := f.nextRow
	f.nextRow++
	return fmt.Sprintf("%s!A%d:AG%d", sheetOf(rng), n, n), nil
}

func (f *fakeStore) Update(_ context.Context, rng string, rows [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.updates[rng] = rows
	return nil
}

func (f *fakeStore) Clear(_ context.Context, rng string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.cleared = append(f.cleared, rng)
	return nil
}

const testSeed = `{
  "leads": [
    {"leadId": "L-LOCAL-1", "companyName": "Offline Co", "status": "New", "stage": "New", "_rowIndex": 2}
  ],
  "slaRules": [{"stage": "New", "thresholdHours": 24}]
}`

// testClock is a settable time source shared by the engine and the cache.
type testClock struct {
	mu  gosync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, auth, public RemoteStore) (*Engine, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	client := kv.NewTestClient(t)
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	e := &Engine{
		SpreadsheetID: "sheet-123",
		Ranges:        RangesFor(config.DefaultSheetNames()),
		Cache:         kv.NewCache(client, kv.DefaultCacheTTL).WithClock(clock.Now),
		Schemas:       kv.NewSchemaStore(client),
		DB:            database,
		Offline:       db.NewOfflineStore(database).WithSeed([]byte(testSeed)),
		Logger:        zap.NewNop(),
		Metrics:       NewMetrics(prometheus.NewRegistry()),
		Now:           clock.Now,
		Auth:          auth,
		Public:        public,
	}
	return e, clock
}

func headerRow(headers ...string) []interface{} {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

// seedSheet fills f with a leads table and every config table.
func seedSheet(f *fakeStore, r Ranges) {
	f.values[r.Leads] = [][]interface{}{
		headerRow("Status", "Lead ID", "company  name", "Estimated Qty", "Priority", "Next Action Date", "GST Number"),
		{"Qualified", "L-100", "Acme Prints", float64(120), "", "12/03/2026", "27AAAA"},
		{"Won", "L-101", "Globex", float64(0), "", "2026-03-01", ""},
	}
	f.values[r.StageRules] = [][]interface{}{
		headerRow("From Stage", "To Stage", "Requires Field", "Forbidden"),
		{"Proposal", "New", "", "TRUE"},
	}
	f.values[r.SLARules] = [][]interface{}{
		headerRow("Stage", "Threshold Hours", "Alert Level"),
		{"Qualified", float64(48), "high"},
	}
	f.values[r.AutoActions] = [][]interface{}{
		headerRow("Trigger Stage", "Default Next Action", "Default Days"),
		{"Proposal", "Chase quote", float64(2)},
	}
	f.values[r.CategoryRules] = [][]interface{}{
		headerRow("Category", "Stage", "Add Fields", "Drop Fields"),
		{"Corporate", "", "customerType", ""},
	}
	f.values[r.Settings] = [][]interface{}{
		headerRow("Stages", "Categories"),
		{"New", "Corporate"},
		{"Qualified", ""},
		{"Won", ""},
	}
}
