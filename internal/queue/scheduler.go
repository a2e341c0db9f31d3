// Package queue implements the upload queue front-door (Scheduler) and
// the long-lived per-platform consumer (Worker): business-hour gated
// claiming, pre-upload validation, duplicate detection, the
// already-listed guard, and the pending/uploading/success/failed state
// machine. A Worker is scoped to a single platform processed strictly
// in (priority DESC, scheduled_time ASC) order; different platforms run
// as separate processes.
package queue

import (
	"fmt"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/store"
)

// Scheduler is the queue front-door: enqueuing new upload candidates and
// spreading many at once across a business window respecting each
// account's daily upload limit.
type Scheduler struct {
	store *store.Store
	book  *config.AccountBook
}

// NewScheduler builds a Scheduler.
func NewScheduler(st *store.Store, book *config.AccountBook) *Scheduler {
	return &Scheduler{store: st, book: book}
}

// Enqueue admits a single (asin, platform, account) candidate at the
// given scheduled time and priority. It is idempotent: the upload_queue
// UNIQUE constraint makes a second Enqueue for the same triple a no-op.
func (s *Scheduler) Enqueue(asin, platformName, accountID string, scheduledTime time.Time, priority int) error {
	return s.store.Enqueue(asin, platformName, accountID, scheduledTime, priority)
}

// SpreadAcrossWindow admits many pending ASINs for one account at once,
// spreading their scheduled_time uniformly across [startHour, endHour)
// on the given day, capped at the account's DailyUploadLimit. Different
// accounts' schedules are computed independently of one another; this
// call only ever touches one account.
func (s *Scheduler) SpreadAcrossWindow(accountID, platformName string, asins []string, day time.Time, startHour, endHour, priority int) error {
	acct, ok := s.book.Accounts[accountID]
	if !ok {
		return fmt.Errorf("queue: unknown account %q", accountID)
	}

	limit := len(asins)
	if acct.DailyUploadLimit > 0 && acct.DailyUploadLimit < limit {
		limit = acct.DailyUploadLimit
	}
	if limit == 0 {
		return nil
	}

	windowStart := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, day.Location())
	windowEnd := time.Date(day.Year(), day.Month(), day.Day(), endHour, 0, 0, 0, day.Location())
	span := windowEnd.Sub(windowStart)
	if span <= 0 {
		return fmt.Errorf("queue: invalid business window %d-%d", startHour, endHour)
	}

	step := span / time.Duration(limit)
	for i := 0; i < limit; i++ {
		scheduledTime := windowStart.Add(step * time.Duration(i))
		if err := s.store.Enqueue(asins[i], platformName, accountID, scheduledTime, priority); err != nil {
			return err
		}
	}
	return nil
}
