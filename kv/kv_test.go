// ABOUTME: Tests for the kv client, snapshot cache TTL, and schema store scoping
// ABOUTME: All tests run against in-memory BadgerDB with an injected clock

package kv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsheet/models"
	"github.com/harperreed/leadsheet/schema"
)

func TestClientGetSetDelete(t *testing.T) {
	c := NewTestClient(t)

	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set("a:1", []byte("one")))
	require.NoError(t, c.Set("a:2", []byte("two")))
	require.NoError(t, c.Set("b:1", []byte("three")))

	v, err := c.Get("a:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), v)

	keys, err := c.KeysWithPrefix("a:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:1", "a:2"}, keys)

	require.NoError(t, c.Delete("a:1"))
	require.NoError(t, c.Delete("a:1"), "deleting twice is fine")
	_, err = c.Get("a:1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Reset())
	keys, err = c.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func snapshot() *models.SystemData {
	l := models.NewLead()
	l.LeadID = "L-1"
	l.CompanyName = "Acme"
	l.RowIndex = 7
	l.Extra = map[string]string{"GST": "X1"}
	data := &models.SystemData{
		Leads:      []models.Lead{l},
		DataSource: models.SourceCloud,
		ReadOnly:   true,
	}
	data.SLARules = []models.SLARule{{Stage: "New", ThresholdHours: 24}}
	return data
}

func TestCacheTTLBoundary(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	now := start
	cache := NewCache(NewTestClient(t), 0).WithClock(func() time.Time { return now })
	assert.Equal(t, DefaultCacheTTL, cache.TTL())

	require.NoError(t, cache.Store(snapshot()))

	now = start.Add(14*time.Minute + 59*time.Second)
	got, ok, err := cache.Load()
	require.NoError(t, err)
	require.True(t, ok, "entry younger than the TTL is served")
	assert.Equal(t, "L-1", got.Leads[0].LeadID)
	assert.Equal(t, 7, got.Leads[0].RowIndex)
	assert.Equal(t, "X1", got.Leads[0].Extra["GST"])
	assert.True(t, got.ReadOnly)
	assert.Len(t, got.SLARules, 1)

	now = start.Add(15*time.Minute + time.Second)
	_, ok, err = cache.Load()
	require.NoError(t, err)
	assert.False(t, ok, "entry older than the TTL is a miss")

	age, ok := cache.Age()
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute+time.Second, age)
}

func TestCacheMissAndInvalidate(t *testing.T) {
	client := NewTestClient(t)
	cache := NewCache(client, time.Minute)

	_, ok, err := cache.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store(snapshot()))
	_, ok, _ = cache.Load()
	assert.True(t, ok)

	require.NoError(t, cache.Invalidate())
	_, ok, _ = cache.Load()
	assert.False(t, ok)

	require.NoError(t, client.Set(CacheKey, []byte("{not json")))
	_, ok, err = cache.Load()
	assert.NoError(t, err, "a corrupt entry is a miss, not an error")
	assert.False(t, ok)
}

func TestSchemaStoreScopedToSpreadsheet(t *testing.T) {
	store := NewSchemaStore(NewTestClient(t))

	_, ok, err := store.Load("sheet-a")
	require.NoError(t, err)
	assert.False(t, ok)

	headers := []string{"Company Name", "Lead ID", "Status"}
	require.NoError(t, store.Save("sheet-a", schema.Build(headers)))

	m, ok, err := store.Load("sheet-a")
	require.NoError(t, err)
	require.True(t, ok)
	idx, found := m.Column("lead id")
	assert.True(t, found)
	assert.Equal(t, 1, idx)

	_, ok, err = store.Load("sheet-b")
	require.NoError(t, err)
	assert.False(t, ok, "a map saved for another spreadsheet is absent")
}
