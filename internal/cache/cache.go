// Package cache is the on-disk product snapshot cache: one JSON file per
// ASIN plus a small hit/miss/total counter persisted through
// internal/store. Snapshots live on disk rather than in memory so they
// survive a process restart; the cache is purely derived state and can
// be rebuilt from the store at any time.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

// UpdateType is a bitmask describing which subset of an Entry a Set call
// is refreshing, so an out-of-stock-only write doesn't disturb a
// previously cached title/description.
type UpdateType uint8

const (
	UpdateBasicInfo UpdateType = 1 << iota
	UpdatePrice
	UpdateStock
	UpdateAll = UpdateBasicInfo | UpdatePrice | UpdateStock
)

// DefaultTTL is how long a cached entry is considered fresh before Get
// reports a miss and expects the caller to refetch.
const DefaultTTL = 24 * time.Hour

// Entry is one cached product snapshot.
type Entry struct {
	ASIN         string    `json:"asin"`
	Title        string    `json:"title,omitempty"`
	Brand        string    `json:"brand,omitempty"`
	Description  string    `json:"description,omitempty"`
	CategoryPath string    `json:"category_path,omitempty"`
	Images       []string  `json:"images,omitempty"`
	PriceJPY     int64     `json:"price_jpy,omitempty"`
	InStock      bool      `json:"in_stock"`
	BasicInfoAt  time.Time `json:"basic_info_at,omitempty"`
	PriceAt      time.Time `json:"price_at,omitempty"`
	StockAt      time.Time `json:"stock_at,omitempty"`
}

// latestTimestamp is the freshest of the entry's per-subset timestamps,
// used to judge whether the whole entry is still within TTL.
func (e Entry) latestTimestamp() time.Time {
	t := e.BasicInfoAt
	if e.PriceAt.After(t) {
		t = e.PriceAt
	}
	if e.StockAt.After(t) {
		t = e.StockAt
	}
	return t
}

// Cache is a directory of {asin}.json snapshot files backed by a
// cache_metadata counter row in the canonical store.
type Cache struct {
	dir   string
	store *store.Store
	ttl   time.Duration
}

// New creates a Cache rooted at dir, creating the directory if absent.
func New(dir string, s *store.Store) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: mkdir %s: %w", dir, err)
	}
	return &Cache{dir: dir, store: s, ttl: DefaultTTL}, nil
}

// SetTTL overrides the default freshness window, mainly for tests.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.ttl = ttl
}

func (c *Cache) path(asin string) string {
	return filepath.Join(c.dir, asin+".json")
}

// Get returns the cached entry for asin if present and still within TTL.
// A stale or missing entry is reported as a miss; both cases still
// return whatever was on disk so callers can fall back to it if a
// refetch fails.
func (c *Cache) Get(asin string) (Entry, bool, error) {
	raw, err := os.ReadFile(c.path(asin))
	if os.IsNotExist(err) {
		c.recordMiss()
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("cache: decode %s: %w", asin, err)
	}

	fresh := time.Since(e.latestTimestamp()) < c.ttl
	if fresh {
		c.recordHit()
	} else {
		c.recordMiss()
	}
	return e, fresh, nil
}

// Set merges fields into the cached entry for asin according to which
// which bits of updateTypes are set, stamping only the subsets that were
// actually refreshed, and writes the result back to disk.
func (c *Cache) Set(asin string, fields Entry, updateTypes UpdateType) error {
	existing, _, err := c.Get(asin)
	if err != nil {
		return err
	}
	if existing.ASIN == "" {
		existing.ASIN = asin
	}
	now := time.Now().UTC()

	if updateTypes&UpdateBasicInfo != 0 {
		existing.Title = fields.Title
		existing.Brand = fields.Brand
		existing.Description = fields.Description
		existing.CategoryPath = fields.CategoryPath
		existing.Images = fields.Images
		existing.BasicInfoAt = now
	}
	if updateTypes&UpdatePrice != 0 {
		existing.PriceJPY = fields.PriceJPY
		existing.PriceAt = now
	}
	if updateTypes&UpdateStock != 0 {
		existing.InStock = fields.InStock
		existing.StockAt = now
	}

	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(asin), out, 0o644)
}

// FetchFunc retrieves one ASIN's fresh data for a bulk update pass.
type FetchFunc func(asin string) (Entry, UpdateType, error)

// BulkUpdate walks asins sequentially, calling fetch for each and
// writing the result through Set, sleeping between ASINs to respect the
// caller's own pacing. It stops early, returning the count completed so
// far, if tok fires mid-run.
func (c *Cache) BulkUpdate(tok *shutdown.Token, asins []string, fetch FetchFunc, sleep time.Duration) (int, error) {
	completed := 0
	for _, asin := range asins {
		entry, updateTypes, err := fetch(asin)
		if err != nil {
			return completed, fmt.Errorf("cache: bulk update %s: %w", asin, err)
		}
		if err := c.Set(asin, entry, updateTypes); err != nil {
			return completed, err
		}
		completed++

		if tok.Fired() {
			break
		}
		if sleep > 0 && !tok.Sleep(sleep) {
			break
		}
	}

	if err := c.refreshTotalCached(); err != nil {
		return completed, err
	}
	return completed, nil
}

func (c *Cache) refreshTotalCached() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	var total int64
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			total++
		}
	}
	if c.store == nil {
		return nil
	}
	return c.store.SetTotalCached(total)
}

func (c *Cache) recordHit() {
	if c.store != nil {
		_ = c.store.RecordCacheHit()
	}
}

func (c *Cache) recordMiss() {
	if c.store != nil {
		_ = c.store.RecordCacheMiss()
	}
}
