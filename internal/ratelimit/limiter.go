// Package ratelimit enforces per-endpoint-class minimum call intervals with
// a cancellable wait. It is the one component in the engine that uses an
// in-process mutex to serialize timestamp reads and writes; every other
// shared-state access goes through the canonical store's transactions
// instead.
package ratelimit

import (
	"sync"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
)

// Class names a rate-limit bucket.
type Class string

const (
	ClassCatalog   Class = "catalog"
	ClassBatch     Class = "batch"
	ClassPricing   Class = "pricing"
	ClassBaseWrite Class = "base_write"
)

// Limiter tracks the last-call timestamp per endpoint class.
type Limiter struct {
	mu        sync.Mutex
	intervals map[Class]time.Duration
	lastCall  map[Class]time.Time
}

// New builds a Limiter seeded with the given per-class minimum intervals.
func New(intervals map[Class]time.Duration) *Limiter {
	l := &Limiter{
		intervals: make(map[Class]time.Duration, len(intervals)),
		lastCall:  make(map[Class]time.Time),
	}
	for c, d := range intervals {
		l.intervals[c] = d
	}
	return l
}

// SetInterval overrides the minimum interval for a class at runtime. The
// SP_API_CATALOG_INTERVAL / SP_API_BATCH_INTERVAL env overrides do not go
// through it: config.Load applies them before the limiter is built.
func (l *Limiter) SetInterval(class Class, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intervals[class] = d
}

// Wait blocks until the minimum interval for class has elapsed since the
// last call, in a form cancellable by tok. It returns true if the wait
// completed normally, false if tok fired mid-wait, in which case the
// caller must abort its current batch rather than proceed.
//
// The last-call timestamp is updated only after a normal completion, and
// only the mutex held for the duration of the timestamp read+write
// guarantees concurrent callers serialize on it (not on the sleep itself).
func (l *Limiter) Wait(tok *shutdown.Token, class Class) bool {
	l.mu.Lock()
	interval := l.intervals[class]
	last, ok := l.lastCall[class]
	var needed time.Duration
	if ok {
		needed = interval - time.Since(last)
	}
	l.mu.Unlock()

	if needed > 0 {
		if !tok.Sleep(needed) {
			return false
		}
	} else if tok.Fired() {
		return false
	}

	l.mu.Lock()
	l.lastCall[class] = time.Now()
	l.mu.Unlock()
	return true
}
