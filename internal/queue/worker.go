package queue

import (
	"fmt"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/logger"
	"github.com/nuco-0416/ecauto-sub000/internal/notify"
	"github.com/nuco-0416/ecauto-sub000/internal/platform"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

// WorkerOptions configures one Worker.
type WorkerOptions struct {
	Platform   string
	BatchSize  int // default 10
	StartHour  int // default 6
	EndHour    int // default 23
	MaxRetries int // default 3
}

// Worker is the long-lived per-platform upload queue consumer.
type Worker struct {
	store    *store.Store
	deps     platform.Deps
	notifier notify.Notifier
	opts     WorkerOptions
}

// NewWorker builds a Worker for a single platform. Different platforms
// run in separate processes; a Worker never spans more than one.
func NewWorker(st *store.Store, deps platform.Deps, notifier notify.Notifier, opts WorkerOptions) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.EndHour <= opts.StartHour {
		opts.StartHour, opts.EndHour = 6, 23
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Worker{store: st, deps: deps, notifier: notifier, opts: opts}
}

// withinBusinessHours reports whether now falls inside [StartHour,
// EndHour) local time, the inclusive-exclusive gate outside of which the
// worker produces no marketplace writes.
func (w *Worker) withinBusinessHours(now time.Time) bool {
	h := now.Hour()
	return h >= w.opts.StartHour && h < w.opts.EndHour
}

// RunOnce claims and processes up to BatchSize due entries. It is a
// no-op outside business hours. Returns the number of entries processed.
func (w *Worker) RunOnce(tok *shutdown.Token) (int, error) {
	if !w.withinBusinessHours(time.Now()) {
		return 0, nil
	}

	entries, err := w.store.ClaimBatch(w.opts.Platform, w.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("queue: claim batch: %w", err)
	}

	processed := 0
	for _, e := range entries {
		if tok.Fired() {
			// Interrupted: leave the row uploading for the next instance
			// to resume rather than marking it failed.
			return processed, nil
		}
		w.processEntry(tok, e)
		processed++
	}
	return processed, nil
}

func (w *Worker) processEntry(tok *shutdown.Token, e store.QueueEntry) {
	listing, err := w.store.GetListing(e.ASIN, e.Platform, e.AccountID)
	if err != nil || listing == nil {
		w.fail(e, fmt.Sprintf("no listing on record for %s/%s/%s", e.ASIN, e.Platform, e.AccountID))
		return
	}

	// Already-listed guard: the listing may have advanced to 'listed'
	// independently (e.g. a manual platform-side sync) between enqueue
	// and claim. Skip the upload and record a no-op success.
	if listing.Status == store.ListingListed {
		if err := w.store.CompleteQueueEntry(e.ID, true, "", w.opts.MaxRetries); err != nil {
			logger.Error("Queue", "complete (already-listed) "+e.ASIN+": "+err.Error())
		}
		return
	}

	product, err := w.store.GetProduct(e.ASIN)
	if err != nil || product == nil {
		w.fail(e, "no product on record for "+e.ASIN)
		return
	}

	item := platform.Item{
		ASIN:         product.ASIN,
		SKU:          listing.SKU,
		Title:        firstNonEmpty(product.TitleJA, product.TitleEN),
		Description:  product.Description,
		Brand:        product.Brand,
		CategoryPath: product.CategoryPath,
		Images:       product.Images,
		Quantity:     1,
	}
	if listing.SellingPrice != nil {
		item.PriceJPY = *listing.SellingPrice
	}

	// Pre-upload validation: non-null title, positive price. This does
	// not consume retry budget; it is a data problem, not a transient
	// platform failure, so the row is left failed for operator triage.
	if item.Title == "" || item.PriceJPY <= 0 {
		w.failValidation(e, "validation error: missing title or non-positive price")
		return
	}

	adapter, err := platform.New(e.Platform, e.AccountID, w.deps)
	if err != nil {
		w.fail(e, err.Error())
		return
	}

	if validator, ok := adapter.(platform.Validator); ok {
		if err := validator.ValidateItem(item); err != nil {
			w.failValidation(e, "validation error: "+err.Error())
			return
		}
	}

	ctx := tok.Context()
	if checker, ok := adapter.(platform.DuplicateChecker); ok {
		dup, err := checker.CheckDuplicate(ctx, e.ASIN, listing.SKU)
		if err != nil {
			w.retry(e, "duplicate check failed: "+err.Error())
			return
		}
		if dup {
			// A duplicate is a permanent condition, not a transient
			// platform failure: the row is failed terminally rather than
			// cycled back through the retry budget.
			if err := w.store.FailQueueEntry(e.ID, "duplicate"); err != nil {
				logger.Error("Queue", "complete (duplicate) "+e.ASIN+": "+err.Error())
			}
			return
		}
	}

	uploader, ok := adapter.(platform.Uploader)
	if !ok {
		w.fail(e, fmt.Sprintf("%s adapter does not support uploads", e.Platform))
		return
	}

	res, err := uploader.UploadItem(ctx, item)
	if err != nil {
		w.retry(e, err.Error())
		return
	}
	if res.Status != platform.StatusSuccess {
		if res.ErrorCode == platform.ErrTransient {
			w.retry(e, res.Message)
		} else {
			w.fail(e, res.Message)
		}
		return
	}

	listing.Status = store.ListingListed
	listing.PlatformItemID = res.PlatformItemID
	now := time.Now().UTC()
	listing.ListedAt = &now
	if err := w.store.UpsertListing(*listing); err != nil {
		logger.Error("Queue", "upsert listed listing "+e.ASIN+": "+err.Error())
		w.retry(e, "store write failed after successful upload: "+err.Error())
		return
	}

	if err := w.store.CompleteQueueEntry(e.ID, true, "", w.opts.MaxRetries); err != nil {
		logger.Error("Queue", "complete (success) "+e.ASIN+": "+err.Error())
	}
	if w.notifier != nil {
		w.notifier.Notify("task_completion", "Upload succeeded", fmt.Sprintf("%s/%s listed as %s", e.ASIN, e.Platform, res.PlatformItemID), notify.LevelInfo)
	}
}

func (w *Worker) fail(e store.QueueEntry, msg string) {
	if err := w.store.FailQueueEntry(e.ID, msg); err != nil {
		logger.Error("Queue", "complete (fail) "+e.ASIN+": "+err.Error())
	}
	if w.notifier != nil {
		w.notifier.Notify("task_failure", "Upload failed", fmt.Sprintf("%s/%s: %s", e.ASIN, e.Platform, msg), notify.LevelError)
	}
}

// failValidation records a validation failure directly as permanently
// failed, leaving retry_count untouched: validation errors are data
// problems, not transient platform failures, so they neither consume
// retry budget nor silently retry forever.
func (w *Worker) failValidation(e store.QueueEntry, msg string) {
	if err := w.store.FailQueueEntry(e.ID, msg); err != nil {
		logger.Error("Queue", "complete (validation) "+e.ASIN+": "+err.Error())
	}
}

func (w *Worker) retry(e store.QueueEntry, msg string) {
	if err := w.store.CompleteQueueEntry(e.ID, false, msg, w.opts.MaxRetries); err != nil {
		logger.Error("Queue", "complete (retry) "+e.ASIN+": "+err.Error())
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
