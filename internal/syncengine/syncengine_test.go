package syncengine

import (
	"context"
	"testing"

	"github.com/nuco-0416/ecauto-sub000/internal/cache"
	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/spapi"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

const testPlatform = "syncengine-test"

type fakeAdapter struct {
	accountID   string
	visibleCall *bool
}

func (f *fakeAdapter) Platform() string  { return testPlatform }
func (f *fakeAdapter) AccountID() string { return f.accountID }

func (f *fakeAdapter) UpdatePrice(_ context.Context, _ string, _ int64) (platform.Result, error) {
	return platform.Ok("item-1"), nil
}

func (f *fakeAdapter) UpdateVisibility(_ context.Context, _ string, visible bool) (platform.Result, error) {
	f.visibleCall = &visible
	return platform.Ok("item-1"), nil
}

func (f *fakeAdapter) UpdateQuantity(_ context.Context, _ string, _ int) (platform.Result, error) {
	return platform.Ok("item-1"), nil
}

func newTestEngine(t *testing.T, adapter *fakeAdapter) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	platform.Register(testPlatform, func(accountID string, deps platform.Deps) (platform.Adapter, error) {
		return adapter, nil
	})

	book := &config.AccountBook{
		Accounts: map[string]config.Account{
			"acct-1": {ID: "acct-1", Platform: testPlatform, Active: true},
		},
	}
	deps := platform.Deps{Book: book, Store: st}
	return New(st, nil, nil, book, deps, nil), st
}

func priceJPY(v int64) *int64 { return &v }

func TestRunStockCheckOnlyHidesOutOfStockListing(t *testing.T) {
	adapter := &fakeAdapter{accountID: "acct-1"}
	e, st := newTestEngine(t, adapter)

	if err := st.AddProduct("B000TEST", store.ProductPatch{AmazonPriceJPY: priceJPY(1000)}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := st.UpsertListing(store.Listing{
		ASIN: "B000TEST", Platform: testPlatform, AccountID: "acct-1",
		SKU: "sku-1", PlatformItemID: "item-1", Status: store.ListingListed, Visibility: "public",
	}); err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	tok := shutdown.NewWithContext(context.Background())
	result, err := e.Run(tok, Options{StockCheckOnly: true, Platforms: []string{testPlatform}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.VisibilityFlips[testPlatform] != 1 {
		t.Fatalf("expected one visibility flip, got %+v", result.VisibilityFlips)
	}
	if adapter.visibleCall == nil || *adapter.visibleCall {
		t.Fatal("expected UpdateVisibility(false) since the product has no stock yet")
	}

	updated, err := st.GetListing("B000TEST", testPlatform, "acct-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if updated.Visibility != "hidden" {
		t.Fatalf("expected listing visibility to persist as hidden, got %q", updated.Visibility)
	}
}

func TestRunDryRunMakesNoAdapterCalls(t *testing.T) {
	adapter := &fakeAdapter{accountID: "acct-1"}
	e, st := newTestEngine(t, adapter)

	if err := st.AddProduct("B000TEST", store.ProductPatch{AmazonPriceJPY: priceJPY(1000)}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := st.UpsertListing(store.Listing{
		ASIN: "B000TEST", Platform: testPlatform, AccountID: "acct-1",
		SKU: "sku-1", PlatformItemID: "item-1", Status: store.ListingListed, Visibility: "public",
	}); err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	tok := shutdown.NewWithContext(context.Background())
	_, err := e.Run(tok, Options{StockCheckOnly: true, DryRun: true, Platforms: []string{testPlatform}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if adapter.visibleCall != nil {
		t.Fatal("expected a dry run to make no adapter calls at all")
	}
}

func TestApplyPhase1ResultMirrorsSnapshotIntoCache(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	snapshots, err := cache.New(t.TempDir(), st)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	book := &config.AccountBook{Accounts: map[string]config.Account{}}
	e := New(st, nil, snapshots, book, platform.Deps{Book: book, Store: st}, nil)

	result := spapi.OfferResult{ASIN: "B000CACHE", Status: spapi.OfferSuccess, Price: 1500, InStock: true}
	if err := e.applyPhase1Result(Options{}, "B000CACHE", result); err != nil {
		t.Fatalf("applyPhase1Result: %v", err)
	}

	entry, hit, err := snapshots.Get("B000CACHE")
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if !hit || entry.PriceJPY != 1500 || !entry.InStock {
		t.Fatalf("expected the refreshed snapshot in the cache, got hit=%v entry=%+v", hit, entry)
	}

	oos := spapi.OfferResult{ASIN: "B000CACHE", Status: spapi.OfferOutOfStock}
	if err := e.applyPhase1Result(Options{}, "B000CACHE", oos); err != nil {
		t.Fatalf("applyPhase1Result out-of-stock: %v", err)
	}
	entry, _, err = snapshots.Get("B000CACHE")
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if entry.InStock {
		t.Fatal("expected the out-of-stock write to flip the cached in_stock flag")
	}
	if entry.PriceJPY != 1500 {
		t.Fatalf("expected the stock-only cache write to leave the cached price intact, got %d", entry.PriceJPY)
	}
}

func TestApplyPhase1ResultHonorsSkipCacheUpdate(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	snapshots, err := cache.New(t.TempDir(), st)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	book := &config.AccountBook{Accounts: map[string]config.Account{}}
	e := New(st, nil, snapshots, book, platform.Deps{Book: book, Store: st}, nil)

	result := spapi.OfferResult{ASIN: "B000SKIP", Status: spapi.OfferSuccess, Price: 900, InStock: true}
	if err := e.applyPhase1Result(Options{SkipCacheUpdate: true}, "B000SKIP", result); err != nil {
		t.Fatalf("applyPhase1Result: %v", err)
	}

	if _, hit, err := snapshots.Get("B000SKIP"); err != nil || hit {
		t.Fatalf("expected no cache write with SkipCacheUpdate set, hit=%v err=%v", hit, err)
	}

	p, err := st.GetProduct("B000SKIP")
	if err != nil || p == nil || p.AmazonPriceJPY == nil || *p.AmazonPriceJPY != 900 {
		t.Fatalf("expected the canonical store write to happen regardless, got %+v err=%v", p, err)
	}
}
