package cache

import (
	"context"
	"testing"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c, err := New(t.TempDir(), s)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c
}

func TestGetMissingIsMiss(t *testing.T) {
	c := openTestCache(t)
	_, hit, err := c.Get("B000MISS")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Fatal("expected a miss for an uncached asin")
	}
}

func TestSetThenGetIsHitAndMergesSubsets(t *testing.T) {
	c := openTestCache(t)

	if err := c.Set("B000TEST", Entry{Title: "Widget", Brand: "Acme"}, UpdateBasicInfo); err != nil {
		t.Fatalf("set basic info: %v", err)
	}
	if err := c.Set("B000TEST", Entry{PriceJPY: 1500}, UpdatePrice); err != nil {
		t.Fatalf("set price: %v", err)
	}

	e, hit, err := c.Get("B000TEST")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit {
		t.Fatal("expected a hit")
	}
	if e.Title != "Widget" || e.Brand != "Acme" {
		t.Fatalf("expected basic info to survive the later price-only set, got %+v", e)
	}
	if e.PriceJPY != 1500 {
		t.Fatalf("expected price 1500, got %d", e.PriceJPY)
	}
}

func TestGetReportsMissPastTTL(t *testing.T) {
	c := openTestCache(t)
	c.SetTTL(10 * time.Millisecond)

	if err := c.Set("B000TEST", Entry{Title: "Widget"}, UpdateBasicInfo); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	e, hit, err := c.Get("B000TEST")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Fatal("expected a stale entry to report as a miss")
	}
	if e.Title != "Widget" {
		t.Fatalf("expected the stale data to still be returned for fallback use, got %+v", e)
	}
}

func TestBulkUpdateWritesEveryEntry(t *testing.T) {
	c := openTestCache(t)
	asins := []string{"A1", "A2", "A3"}

	fetch := func(asin string) (Entry, UpdateType, error) {
		return Entry{PriceJPY: 1000, InStock: true}, UpdatePrice | UpdateStock, nil
	}

	tok := shutdown.NewWithContext(context.Background())
	n, err := c.BulkUpdate(tok, asins, fetch, time.Millisecond)
	if err != nil {
		t.Fatalf("bulk update: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 completed, got %d", n)
	}

	for _, asin := range asins {
		e, hit, err := c.Get(asin)
		if err != nil || !hit {
			t.Fatalf("expected %s to be cached after bulk update, hit=%v err=%v", asin, hit, err)
		}
		if e.PriceJPY != 1000 || !e.InStock {
			t.Fatalf("unexpected entry for %s: %+v", asin, e)
		}
	}

	stats, err := c.store.CacheStats()
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	if stats.TotalCached != 3 {
		t.Fatalf("expected total_cached=3 after bulk update, got %d", stats.TotalCached)
	}
}

func TestBulkUpdateStopsOnShutdown(t *testing.T) {
	c := openTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	tok := shutdown.NewWithContext(ctx)
	cancel()

	calls := 0
	fetch := func(asin string) (Entry, UpdateType, error) {
		calls++
		return Entry{PriceJPY: 1}, UpdatePrice, nil
	}

	n, err := c.BulkUpdate(tok, []string{"A1", "A2", "A3"}, fetch, time.Second)
	if err != nil {
		t.Fatalf("bulk update: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one entry processed before the fired token stopped the loop, got %d", n)
	}
}
