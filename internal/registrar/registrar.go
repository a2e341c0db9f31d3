// Package registrar builds the canonical (product, listing) pairs every
// other component operates on, from whichever of four inputs discovered
// the ASIN first: a live SP-API catalog fetch, an external sourcing-
// candidate feed, a legacy CSV import, or a live downstream-platform
// listing dump used to backfill data for inventory the operator already
// has listed. The SP-API and candidate paths share the duplicate-ASIN
// gate and mint SKUs with BuildSKU; the platform-dump path upserts every
// item with a recoverable ASIN as listed without that gate, keeping the
// item's own SKU and minting one only when the item has none.
package registrar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/spapi"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

// Candidate is one externally-sourced (asin, platform, account)
// admission request, produced by a CandidateSource.
type Candidate struct {
	ASIN      string
	Platform  string
	AccountID string
}

// CandidateSource is the external-collaborator boundary for both the
// sourcing-candidate feed and legacy CSV ingestion: this repo ships no
// concrete implementation (CSV parsing is out of scope), only the
// contract the registrar consumes.
type CandidateSource interface {
	PendingCandidates(ctx context.Context) ([]Candidate, error)
}

// platformSKUPrefix maps a platform key to the single-letter prefix used
// in the SKU, e.g. "base" -> "b", "ebay" -> "s".
var platformSKUPrefix = map[string]string{
	"base": "b",
	"ebay": "s",
}

// BuildSKU mints the {platform-prefix}-{asin}-{YYYYMMDD_HHMM} SKU shape.
func BuildSKU(platformName, asin string, at time.Time) string {
	prefix := platformSKUPrefix[platformName]
	if prefix == "" {
		prefix = platformName
	}
	return fmt.Sprintf("%s-%s-%s", prefix, asin, at.UTC().Format("20060102_1504"))
}

// asinFromSKU recovers the ASIN segment from any identifier shape this
// system has minted over time: the current {prefix}-{asin}-{YYYYMMDD_HHMM},
// the legacy two-segment base-{asin} / b-{asin} / s-{asin} shapes, and a
// bare ASIN. It returns "" for anything else, such as an identifier
// pre-existing on the platform from before this system managed it.
func asinFromSKU(sku string) string {
	parts := strings.Split(sku, "-")
	var candidate string
	switch len(parts) {
	case 1:
		candidate = parts[0]
	case 2, 3:
		candidate = parts[1]
	default:
		return ""
	}
	if !looksLikeASIN(candidate) {
		return ""
	}
	return candidate
}

func looksLikeASIN(s string) bool {
	if len(s) < 8 || len(s) > 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('A' <= c && c <= 'Z') && !('0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

// Registrar ties the canonical store to the SP-API client used for the
// live single-ASIN fetch path.
type Registrar struct {
	store *store.Store
	spapi *spapi.Client
}

// New builds a Registrar.
func New(st *store.Store, client *spapi.Client) *Registrar {
	return &Registrar{store: st, spapi: client}
}

// FromSPAPI fetches asin's catalog record live from Amazon, writes the
// canonical product row, and admits a pending listing for the given
// platform/account if one does not already exist.
func (r *Registrar) FromSPAPI(tok *shutdown.Token, asin, platformName, accountID string) error {
	existingProduct, err := r.store.GetProduct(asin)
	if err != nil {
		return err
	}

	if existingProduct == nil {
		info, err := r.spapi.GetProductInfo(tok, asin)
		if err != nil {
			return fmt.Errorf("registrar: fetch %s: %w", asin, err)
		}
		if err := r.store.AddProduct(asin, store.ProductPatch{
			TitleJA:      &info.Title,
			Description:  &info.Description,
			Brand:        &info.Brand,
			CategoryPath: &info.CategoryPath,
			Images:       info.Images,
		}); err != nil {
			return err
		}
	}

	return r.admitListing(asin, platformName, accountID)
}

// FromCandidates drains every pending candidate from source, applying
// the duplicate-ASIN gate: a candidate whose (asin, platform, account)
// listing already exists is skipped outright, and a candidate whose
// ASIN has no canonical product yet triggers a live SP-API fetch to
// register one before the listing is admitted.
func (r *Registrar) FromCandidates(tok *shutdown.Token, source CandidateSource) (admitted int, err error) {
	candidates, err := source.PendingCandidates(tok.Context())
	if err != nil {
		return 0, fmt.Errorf("registrar: candidate source: %w", err)
	}

	for _, c := range candidates {
		if tok.Fired() {
			return admitted, nil
		}

		existing, err := r.store.GetListing(c.ASIN, c.Platform, c.AccountID)
		if err != nil {
			return admitted, err
		}
		if existing != nil {
			continue // duplicate-ASIN gate: already registered for this platform/account
		}

		if err := r.FromSPAPI(tok, c.ASIN, c.Platform, c.AccountID); err != nil {
			return admitted, err
		}
		admitted++
	}
	return admitted, nil
}

// FromPlatformDump backfills canonical (product, listing) rows from a
// live downstream-platform listing dump: every item the adapter reports
// already live is admitted directly as status=listed (it does not need
// an upload), skipping the queue entirely. A product row is created from
// the dump's own item content when the ASIN is not already known,
// since no Amazon catalog fetch is performed on this path.
func (r *Registrar) FromPlatformDump(ctx context.Context, adapter platform.Lister, platformName, accountID string) (imported int, err error) {
	items, err := adapter.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("registrar: list items: %w", err)
	}

	for _, item := range items {
		asin := item.ASIN
		if asin == "" {
			asin = asinFromSKU(item.SKU)
		}
		if asin == "" {
			continue // no recoverable ASIN, live dump entry cannot be reconciled against Amazon
		}
		item.ASIN = asin

		existing, err := r.store.GetProduct(item.ASIN)
		if err != nil {
			return imported, err
		}
		if existing == nil {
			title := item.Title
			desc := item.Description
			brand := item.Brand
			cat := item.CategoryPath
			if err := r.store.AddProduct(item.ASIN, store.ProductPatch{
				TitleJA:      &title,
				Description:  &desc,
				Brand:        &brand,
				CategoryPath: &cat,
				Images:       item.Images,
			}); err != nil {
				return imported, err
			}
		}

		price := item.PriceJPY
		sku := item.SKU
		if sku == "" {
			sku = BuildSKU(platformName, item.ASIN, time.Now())
		}
		platformItemID := item.PlatformItemID
		if platformItemID == "" {
			platformItemID = sku
		}
		if err := r.store.UpsertListing(store.Listing{
			ASIN:            item.ASIN,
			Platform:        platformName,
			AccountID:       accountID,
			PlatformItemID:  platformItemID,
			SKU:             sku,
			SellingPrice:    &price,
			InStockQuantity: item.Quantity,
			Status:          store.ListingListed,
			Visibility:      "public",
		}); err != nil {
			return imported, fmt.Errorf("registrar: backfill listing %s: %w", item.ASIN, err)
		}
		imported++
	}
	return imported, nil
}

// admitListing creates a pending listing for (asin, platform, account)
// with a freshly minted SKU, unless one already exists.
func (r *Registrar) admitListing(asin, platformName, accountID string) error {
	existing, err := r.store.GetListing(asin, platformName, accountID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return r.store.UpsertListing(store.Listing{
		ASIN:       asin,
		Platform:   platformName,
		AccountID:  accountID,
		SKU:        BuildSKU(platformName, asin, time.Now()),
		Status:     store.ListingPending,
		Visibility: "public",
	})
}
