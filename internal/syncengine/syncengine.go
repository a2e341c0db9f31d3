// Package syncengine implements the two-phase inventory/price sync cycle:
// a serial Phase 1 that refreshes Amazon price/stock data once for every
// listed ASIN, followed by a parallel Phase 2 that fans out to one worker
// per downstream platform to reconcile price and visibility. Every
// worker checks the shared shutdown token between listings, so a signal
// cancels all in-flight work within a bounded time.
package syncengine

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nuco-0416/ecauto-sub000/internal/cache"
	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/logger"
	"github.com/nuco-0416/ecauto-sub000/internal/notify"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/reconciler"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/spapi"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

const phase1BatchSize = 20

// Options configures one Run invocation.
type Options struct {
	DryRun          bool
	StockCheckOnly  bool // skip Phase 1; restrict Phase 2 to visibility/quantity
	SkipCacheUpdate bool
	MaxItems        int      // 0 means unlimited
	Platforms       []string // empty means every configured platform
}

// Result summarizes one Run for end-of-cycle notification/logging.
type Result struct {
	ASINsRefreshed   int
	ASINsAPIError    int
	PriceUpdates     map[string]int
	VisibilityFlips  map[string]int
	QuantityRestores map[string]int
	Errors           []error
}

// Engine ties the SP-API client, canonical store, snapshot cache,
// platform adapters, and notifier together to run sync cycles.
type Engine struct {
	store    *store.Store
	spapi    *spapi.Client
	cache    *cache.Cache
	book     *config.AccountBook
	deps     platform.Deps
	notifier notify.Notifier
}

// New builds an Engine. pc may be nil to run without a snapshot cache.
func New(st *store.Store, client *spapi.Client, pc *cache.Cache, book *config.AccountBook, deps platform.Deps, notifier notify.Notifier) *Engine {
	return &Engine{store: st, spapi: client, cache: pc, book: book, deps: deps, notifier: notifier}
}

// Run executes one sync cycle per opts.
func (e *Engine) Run(tok *shutdown.Token, opts Options) (Result, error) {
	result := Result{
		PriceUpdates:     map[string]int{},
		VisibilityFlips:  map[string]int{},
		QuantityRestores: map[string]int{},
	}

	if !opts.StockCheckOnly {
		refreshed, apiErrors, err := e.phase1(tok, opts)
		result.ASINsRefreshed = refreshed
		result.ASINsAPIError = apiErrors
		if err != nil {
			return result, fmt.Errorf("syncengine: phase 1: %w", err)
		}
		if tok.Fired() {
			return result, nil
		}
	}

	platforms := opts.Platforms
	if len(platforms) == 0 {
		platforms = e.book.ActivePlatforms()
	}

	if err := e.phase2(tok, platforms, opts, &result); err != nil {
		result.Errors = append(result.Errors, err)
	}

	return result, nil
}

// phase1 is the serial SP-API refresh: collect every distinct listed
// ASIN, fetch prices in batches of 20, and apply the write rule
// (retain last-known price on out_of_stock; never overwrite on
// api_error). Shutdown is checked between every batch and every write.
func (e *Engine) phase1(tok *shutdown.Token, opts Options) (refreshed int, apiErrors int, err error) {
	asins, err := e.store.DistinctListedASINs()
	if err != nil {
		return 0, 0, err
	}
	if opts.MaxItems > 0 && len(asins) > opts.MaxItems {
		asins = asins[:opts.MaxItems]
	}

	for start := 0; start < len(asins); start += phase1BatchSize {
		if tok.Fired() {
			return refreshed, apiErrors, nil
		}
		end := start + phase1BatchSize
		if end > len(asins) {
			end = len(asins)
		}
		batch := asins[start:end]

		results, err := e.spapi.GetPricesBatch(tok, batch)
		if err != nil {
			return refreshed, apiErrors, err
		}

		for _, asin := range batch {
			if tok.Fired() {
				return refreshed, apiErrors, nil
			}
			r, ok := results[asin]
			if !ok {
				continue
			}
			if err := e.applyPhase1Result(opts, asin, r); err != nil {
				return refreshed, apiErrors, err
			}
			if r.Status == spapi.OfferAPIError {
				apiErrors++
			} else {
				refreshed++
			}
		}
	}
	return refreshed, apiErrors, nil
}

// applyPhase1Result implements the write rule exactly: a successful
// fetch writes (price, in_stock=true); out_of_stock flips in_stock=false
// while leaving the previously-known price untouched, so downstream
// markup math keeps a real price to work from; api_error writes nothing
// at all.
func (e *Engine) applyPhase1Result(opts Options, asin string, r spapi.OfferResult) error {
	if opts.DryRun {
		return nil
	}

	now := time.Now().UTC()
	switch r.Status {
	case spapi.OfferSuccess:
		price := r.Price
		inStock := true
		if err := e.store.AddProduct(asin, store.ProductPatch{
			AmazonPriceJPY: &price,
			AmazonInStock:  &inStock,
			LastFetchedAt:  &now,
		}); err != nil {
			return err
		}
		e.cacheSnapshot(opts, asin, cache.Entry{PriceJPY: r.Price, InStock: true}, cache.UpdatePrice|cache.UpdateStock)
		return nil
	case spapi.OfferOutOfStock, spapi.OfferFilteredOut, spapi.OfferEmptyPayload:
		inStock := false
		if err := e.store.AddProduct(asin, store.ProductPatch{
			AmazonInStock: &inStock,
			LastFetchedAt: &now,
		}); err != nil {
			return err
		}
		e.cacheSnapshot(opts, asin, cache.Entry{InStock: false}, cache.UpdateStock)
		return nil
	case spapi.OfferAPIError:
		return nil // retain previous snapshot entirely
	default:
		return nil
	}
}

// cacheSnapshot mirrors a Phase 1 store write into the on-disk snapshot
// cache. The cache is derived state, so a write failure is logged and
// never fails the cycle.
func (e *Engine) cacheSnapshot(opts Options, asin string, entry cache.Entry, types cache.UpdateType) {
	if e.cache == nil || opts.SkipCacheUpdate {
		return
	}
	if err := e.cache.Set(asin, entry, types); err != nil {
		logger.Warn("SyncEngine", "cache write "+asin+": "+err.Error())
	}
}

// phase2 fans out one worker per platform. Workers are independent; no
// cross-platform ordering is defined. Each worker accumulates into its
// own platformResult rather than the shared Result directly: Result's
// maps and Errors slice are plain, unsynchronized Go data structures,
// and concurrent writes to them from multiple goroutines (even to
// distinct map keys) are undefined behavior. Every worker's result is
// merged into result sequentially on this goroutine only after
// g.Wait() returns, once every fan-out worker has finished.
func (e *Engine) phase2(tok *shutdown.Token, platforms []string, opts Options, result *Result) error {
	g, _ := errgroup.WithContext(tok.Context())
	perPlatform := make([]platformResult, len(platforms))

	for i, plat := range platforms {
		i, plat := i, plat
		g.Go(func() error {
			perPlatform[i] = e.runPlatformWorker(tok, plat, opts)
			return nil
		})
	}
	err := g.Wait()

	for _, pr := range perPlatform {
		if pr.platform == "" {
			continue
		}
		result.PriceUpdates[pr.platform] += pr.priceUpdates
		result.VisibilityFlips[pr.platform] += pr.visibilityFlips
		result.QuantityRestores[pr.platform] += pr.quantityRestores
		result.Errors = append(result.Errors, pr.errors...)
	}
	return err
}

// platformResult is one worker's private tally, safe to write from its
// own goroutine without synchronization since no other goroutine ever
// touches it until after phase2's g.Wait() merges it sequentially.
type platformResult struct {
	platform         string
	priceUpdates     int
	visibilityFlips  int
	quantityRestores int
	errors           []error
}

// runPlatformWorker is one Phase 2 fan-out worker. It checks tok.Fired()
// before every listing, so a shutdown signal stops the worker before it
// starts its next listing. No ticker polls the token while a listing is
// being reconciled, so how soon a signal is noticed depends on how long
// that listing's adapter calls take.
func (e *Engine) runPlatformWorker(tok *shutdown.Token, platformName string, opts Options) platformResult {
	pr := platformResult{platform: platformName}

	accounts := e.book.AccountsForPlatform(platformName)
	accountSet := make(map[string]bool, len(accounts))
	for _, acct := range accounts {
		accountSet[acct.ID] = true
	}

	listings, err := e.store.ListingsByStatus(store.ListingListed)
	if err != nil {
		pr.errors = append(pr.errors, err)
		return pr
	}

	rec := reconciler.New(e.store, e.deps)

	for _, l := range listings {
		if tok.Fired() {
			return pr
		}
		if l.Platform != platformName || !accountSet[l.AccountID] {
			continue
		}

		product, err := e.store.GetProduct(l.ASIN)
		if err != nil || product == nil {
			continue
		}

		if !opts.StockCheckOnly && !opts.DryRun {
			if changed, err := rec.ReconcilePrice(platformName, l.AccountID, *product, l); err != nil {
				pr.errors = append(pr.errors, err)
			} else if changed {
				pr.priceUpdates++
			}
		}

		if opts.DryRun {
			continue
		}
		outcome, err := rec.ReconcileVisibility(platformName, l.AccountID, *product, l)
		if err != nil {
			pr.errors = append(pr.errors, err)
			continue
		}
		switch outcome {
		case reconciler.OutcomeHidden, reconciler.OutcomeShown:
			pr.visibilityFlips++
		case reconciler.OutcomeQuantityRestored:
			pr.quantityRestores++
		}
	}

	logger.Info("SyncEngine", fmt.Sprintf("platform=%s price_updates=%d visibility_flips=%d quantity_restores=%d",
		platformName, pr.priceUpdates, pr.visibilityFlips, pr.quantityRestores))
	return pr
}
