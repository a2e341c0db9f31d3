package reconciler

import (
	"context"
	"testing"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

const testPlatform = "reconciler-test"

type fakeAdapter struct {
	accountID string

	lastPrice      int64
	lastVisible    *bool
	lastQuantity   *int
	failNextUpdate bool
}

func (f *fakeAdapter) Platform() string  { return testPlatform }
func (f *fakeAdapter) AccountID() string { return f.accountID }

func (f *fakeAdapter) UpdatePrice(_ context.Context, _ string, priceJPY int64) (platform.Result, error) {
	f.lastPrice = priceJPY
	return platform.Ok("item-1"), nil
}

func (f *fakeAdapter) UpdateVisibility(_ context.Context, _ string, visible bool) (platform.Result, error) {
	f.lastVisible = &visible
	return platform.Ok("item-1"), nil
}

func (f *fakeAdapter) UpdateQuantity(_ context.Context, _ string, quantity int) (platform.Result, error) {
	f.lastQuantity = &quantity
	return platform.Ok("item-1"), nil
}

func newTestReconciler(t *testing.T, adapter *fakeAdapter) (*Reconciler, *store.Store) {
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
	return New(st, deps), st
}

func int64Ptr(v int64) *int64 { return &v }

func TestReconcilePriceAppliesMarkupAndSkipsWhenUnchanged(t *testing.T) {
	adapter := &fakeAdapter{accountID: "acct-1"}
	r, st := newTestReconciler(t, adapter)

	product := store.Product{ASIN: "B000TEST", AmazonPriceJPY: int64Ptr(1000)}
	listing := store.Listing{ASIN: "B000TEST", Platform: testPlatform, AccountID: "acct-1", SKU: "sku-1", PlatformItemID: "item-1", Status: store.ListingListed}
	if err := st.UpsertListing(listing); err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	changed, err := r.ReconcilePrice(testPlatform, "acct-1", product, listing)
	if err != nil {
		t.Fatalf("ReconcilePrice: %v", err)
	}
	if !changed {
		t.Fatal("expected a price change on first reconciliation")
	}
	if adapter.lastPrice != 1200 {
		t.Fatalf("expected default 20%% markup to yield 1200, got %d", adapter.lastPrice)
	}

	updated, err := st.GetListing("B000TEST", testPlatform, "acct-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	changed, err = r.ReconcilePrice(testPlatform, "acct-1", product, *updated)
	if err != nil {
		t.Fatalf("ReconcilePrice second call: %v", err)
	}
	if changed {
		t.Fatal("expected no-op once the stored price already matches the desired price")
	}
}

func TestReconcileVisibilityHidesOnOutOfStock(t *testing.T) {
	adapter := &fakeAdapter{accountID: "acct-1"}
	r, st := newTestReconciler(t, adapter)

	listing := store.Listing{ASIN: "B000TEST", Platform: testPlatform, AccountID: "acct-1", SKU: "sku-1", PlatformItemID: "item-1", Status: store.ListingListed, Visibility: "public", InStockQuantity: 3}
	if err := st.UpsertListing(listing); err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	product := store.Product{ASIN: "B000TEST", AmazonInStock: false}
	outcome, err := r.ReconcileVisibility(testPlatform, "acct-1", product, listing)
	if err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}
	if outcome != OutcomeHidden {
		t.Fatalf("expected OutcomeHidden, got %v", outcome)
	}
	if adapter.lastVisible == nil || *adapter.lastVisible {
		t.Fatal("expected UpdateVisibility(false) to have been called")
	}
}

func TestReconcileVisibilityRestoresQuantityBeforeShowing(t *testing.T) {
	adapter := &fakeAdapter{accountID: "acct-1"}
	r, st := newTestReconciler(t, adapter)

	listing := store.Listing{ASIN: "B000TEST", Platform: testPlatform, AccountID: "acct-1", SKU: "sku-1", PlatformItemID: "item-1", Status: store.ListingListed, Visibility: "hidden", InStockQuantity: 0}
	if err := st.UpsertListing(listing); err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	product := store.Product{ASIN: "B000TEST", AmazonInStock: true}
	outcome, err := r.ReconcileVisibility(testPlatform, "acct-1", product, listing)
	if err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}
	if outcome != OutcomeShown {
		t.Fatalf("expected OutcomeShown, got %v", outcome)
	}
	if adapter.lastQuantity == nil || *adapter.lastQuantity != 1 {
		t.Fatal("expected quantity to be restored to 1 before showing")
	}
	if adapter.lastVisible == nil || !*adapter.lastVisible {
		t.Fatal("expected UpdateVisibility(true) to have been called")
	}
}
