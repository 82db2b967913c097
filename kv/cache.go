// ABOUTME: Time-bounded snapshot cache stored under a single key
// ABOUTME: Entries older than the TTL are treated as absent; the clock is injectable

package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/leadsheet/models"
)

const (
	// CacheKey holds the whole SystemData snapshot.
	CacheKey = "crm_data_cache"

	// DefaultCacheTTL is how long a snapshot is served without refetching.
	DefaultCacheTTL = 15 * time.Minute
)

type cacheEntry struct {
	Timestamp int64              `json:"timestamp"`
	Data      *models.SystemData `json:"data"`
}

// Cache stores one snapshot with a timestamp.
type Cache struct {
	kv  *Client
	ttl time.Duration
	now func() time.Time
}

// NewCache creates a cache over kv. A zero ttl uses DefaultCacheTTL.
func NewCache(kv *Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{kv: kv, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// TTL returns the validity window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Load returns the cached snapshot when it is younger than the TTL. A missing,
// expired or unreadable entry reports ok=false.
func (c *Cache) Load() (*models.SystemData, bool, error) {
	raw, err := c.kv.Get(CacheKey)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Data == nil {
		return nil, false, nil //nolint:nilerr // a corrupt entry is a miss
	}
	age := c.now().Sub(time.UnixMilli(entry.Timestamp))
	if age >= c.ttl || age < 0 {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// Age returns how old the stored entry is, or false when there is none.
func (c *Cache) Age() (time.Duration, bool) {
	raw, err := c.kv.Get(CacheKey)
	if err != nil {
		return 0, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return 0, false
	}
	return c.now().Sub(time.UnixMilli(entry.Timestamp)), true
}

// Store writes data with the current time.
func (c *Cache) Store(data *models.SystemData) error {
	raw, err := json.Marshal(cacheEntry{Timestamp: c.now().UnixMilli(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.kv.Set(CacheKey, raw); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() error {
	if err := c.kv.Delete(CacheKey); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}
