// Package reconciler implements the stock/visibility and price
// reconciliation rules Phase 2 of the sync engine applies per listing:
// recompute the selling price from the canonical Amazon price and the
// account's markup, and flip visibility/quantity based on Amazon's
// in-stock flag. It is a pure consumer of canonical state (no SP-API
// calls), so it is independently testable and independently invokable
// from the standalone "mark out-of-stock ASINs hidden" batch job.
package reconciler

import (
	"context"
	"fmt"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

// Outcome tags what ReconcileVisibility actually did, for caller-side
// counters.
type Outcome string

const (
	OutcomeNone             Outcome = "none"
	OutcomeHidden           Outcome = "hidden"
	OutcomeShown            Outcome = "shown"
	OutcomeQuantityRestored Outcome = "quantity_restored"
)

// Reconciler ties the canonical store to the platform adapter registry.
type Reconciler struct {
	store *store.Store
	deps  platform.Deps
}

// New builds a Reconciler.
func New(st *store.Store, deps platform.Deps) *Reconciler {
	return &Reconciler{store: st, deps: deps}
}

// defaultMarkupBasisPoints is a 20% markup over the Amazon JPY price
// when an account does not configure one explicitly via its credentials
// blob's "markup_bps" key.
const defaultMarkupBasisPoints = 2000

func accountMarkupBasisPoints(acct config.Account) int64 {
	if v, ok := acct.Credentials["markup_bps"]; ok {
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return defaultMarkupBasisPoints
}

// desiredSellingPrice applies the account's markup to the canonical
// Amazon JPY price. USD platforms are expected to carry their own
// currency-conversion step inside the adapter's price-update call; this
// reconciler always works in JPY terms against the canonical price.
func desiredSellingPrice(amazonPriceJPY int64, acct config.Account) int64 {
	bps := accountMarkupBasisPoints(acct)
	return amazonPriceJPY * (10000 + bps) / 10000
}

// ReconcilePrice recomputes the desired selling price from the product's
// canonical Amazon price and the account's markup; if it differs from
// the listing's current selling_price, it calls UpdatePrice, persists the
// new price on the listing row, and appends a price_history entry.
// Returns whether a change was made.
func (r *Reconciler) ReconcilePrice(platformName, accountID string, p store.Product, l store.Listing) (bool, error) {
	if p.AmazonPriceJPY == nil {
		return false, nil
	}
	acct, ok := r.deps.Book.Accounts[accountID]
	if !ok {
		return false, fmt.Errorf("reconciler: unknown account %q", accountID)
	}

	desired := desiredSellingPrice(*p.AmazonPriceJPY, acct)
	if l.SellingPrice != nil && *l.SellingPrice == desired {
		return false, nil
	}

	adapter, err := platform.New(platformName, accountID, r.deps)
	if err != nil {
		return false, err
	}
	updater, ok := adapter.(platform.PriceUpdater)
	if !ok {
		return false, fmt.Errorf("reconciler: %s adapter does not support price updates", platformName)
	}

	res, err := updater.UpdatePrice(context.Background(), l.SKU, desired)
	if err != nil {
		return false, err
	}
	if res.Status != platform.StatusSuccess {
		return false, fmt.Errorf("reconciler: update price %s/%s: %s", platformName, l.SKU, res.Message)
	}

	if err := r.store.UpsertListing(withPrice(l, desired)); err != nil {
		return false, err
	}
	if err := r.store.RecordPriceChange(l.ASIN, platformName, accountID, desired); err != nil {
		return false, err
	}
	return true, nil
}

func withPrice(l store.Listing, price int64) store.Listing {
	l.SellingPrice = &price
	return l
}

// ReconcileVisibility implements the stock-driven transition table:
// Amazon out-of-stock flips a public listing to hidden; Amazon in-stock
// flips a hidden listing back to public, and if the platform's stored
// quantity is also 0, restores it to 1 first (a sold-through SKU Amazon
// replenished).
func (r *Reconciler) ReconcileVisibility(platformName, accountID string, p store.Product, l store.Listing) (Outcome, error) {
	adapter, err := platform.New(platformName, accountID, r.deps)
	if err != nil {
		return OutcomeNone, err
	}

	if !p.AmazonInStock && l.Visibility == "public" {
		updater, ok := adapter.(platform.VisibilityUpdater)
		if !ok {
			return OutcomeNone, fmt.Errorf("reconciler: %s adapter does not support visibility updates", platformName)
		}
		res, err := updater.UpdateVisibility(context.Background(), l.SKU, false)
		if err != nil {
			return OutcomeNone, err
		}
		if res.Status != platform.StatusSuccess {
			return OutcomeNone, fmt.Errorf("reconciler: hide %s/%s: %s", platformName, l.SKU, res.Message)
		}
		if err := r.store.SetListingVisibility(l.ASIN, platformName, accountID, "hidden"); err != nil {
			return OutcomeNone, err
		}
		return OutcomeHidden, nil
	}

	if p.AmazonInStock && l.Visibility == "hidden" {
		if l.InStockQuantity == 0 {
			if err := r.restoreQuantity(adapter, platformName, accountID, l); err != nil {
				return OutcomeNone, err
			}
		}
		updater, ok := adapter.(platform.VisibilityUpdater)
		if !ok {
			return OutcomeNone, fmt.Errorf("reconciler: %s adapter does not support visibility updates", platformName)
		}
		res, err := updater.UpdateVisibility(context.Background(), l.SKU, true)
		if err != nil {
			return OutcomeNone, err
		}
		if res.Status != platform.StatusSuccess {
			return OutcomeNone, fmt.Errorf("reconciler: show %s/%s: %s", platformName, l.SKU, res.Message)
		}
		if err := r.store.SetListingVisibility(l.ASIN, platformName, accountID, "public"); err != nil {
			return OutcomeNone, err
		}
		return OutcomeShown, nil
	}

	if p.AmazonInStock && l.Visibility == "public" && l.InStockQuantity == 0 {
		if err := r.restoreQuantity(adapter, platformName, accountID, l); err != nil {
			return OutcomeNone, err
		}
		return OutcomeQuantityRestored, nil
	}

	return OutcomeNone, nil
}

func (r *Reconciler) restoreQuantity(adapter platform.Adapter, platformName, accountID string, l store.Listing) error {
	updater, ok := adapter.(platform.QuantityUpdater)
	if !ok {
		return fmt.Errorf("reconciler: %s adapter does not support quantity updates", platformName)
	}
	res, err := updater.UpdateQuantity(context.Background(), l.SKU, 1)
	if err != nil {
		return err
	}
	if res.Status != platform.StatusSuccess {
		return fmt.Errorf("reconciler: restore quantity %s/%s: %s", platformName, l.SKU, res.Message)
	}
	l.InStockQuantity = 1
	return r.store.UpsertListing(l)
}

// MarkHiddenBatch is the standalone "mark out-of-stock ASINs hidden" job:
// it forces visibility to hidden for every listing matching the given
// ASINs, without consulting live Amazon state at all; used after bulk
// cache fills where the caller already knows which ASINs went out of
// stock from a prior pass.
func (r *Reconciler) MarkHiddenBatch(platformName string, asins []string) (int, error) {
	flipped := 0
	asinSet := make(map[string]bool, len(asins))
	for _, a := range asins {
		asinSet[a] = true
	}

	listings, err := r.store.ListingsByStatus(store.ListingListed)
	if err != nil {
		return 0, err
	}

	for _, l := range listings {
		if l.Platform != platformName || !asinSet[l.ASIN] || l.Visibility != "public" {
			continue
		}
		adapter, err := platform.New(platformName, l.AccountID, r.deps)
		if err != nil {
			return flipped, err
		}
		updater, ok := adapter.(platform.VisibilityUpdater)
		if !ok {
			continue
		}
		res, err := updater.UpdateVisibility(context.Background(), l.SKU, false)
		if err != nil {
			return flipped, err
		}
		if res.Status != platform.StatusSuccess {
			continue
		}
		if err := r.store.SetListingVisibility(l.ASIN, platformName, l.AccountID, "hidden"); err != nil {
			return flipped, err
		}
		flipped++
	}
	return flipped, nil
}
