package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
)

func TestWaitEnforcesInterval(t *testing.T) {
	l := New(map[Class]time.Duration{ClassCatalog: 50 * time.Millisecond})
	tok := shutdown.NewWithContext(context.Background())

	if !l.Wait(tok, ClassCatalog) {
		t.Fatal("first wait should not block")
	}

	start := time.Now()
	if !l.Wait(tok, ClassCatalog) {
		t.Fatal("second wait should complete")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected wait close to interval, got %v", elapsed)
	}
}

func TestWaitCancelledByShutdown(t *testing.T) {
	l := New(map[Class]time.Duration{ClassBatch: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	tok := shutdown.NewWithContext(ctx)

	l.Wait(tok, ClassBatch) // seed lastCall

	cancel()
	if l.Wait(tok, ClassBatch) {
		t.Fatal("expected wait to be cancelled by shutdown")
	}
}

func TestSetIntervalOverride(t *testing.T) {
	l := New(map[Class]time.Duration{ClassCatalog: time.Second})
	l.SetInterval(ClassCatalog, time.Millisecond)
	tok := shutdown.NewWithContext(context.Background())

	l.Wait(tok, ClassCatalog)
	start := time.Now()
	l.Wait(tok, ClassCatalog)
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("override interval was not applied")
	}
}
