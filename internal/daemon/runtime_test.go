package daemon

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/notify"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
)

type noopNotifier struct{ calls int }

func (n *noopNotifier) Notify(_, _, _ string, _ notify.Level) { n.calls++ }

func testDaemonConfig(t *testing.T) config.Daemon {
	t.Helper()
	dir := t.TempDir()
	return config.Daemon{
		IntervalSeconds:   1,
		MaxRetries:        1,
		RetryDelaySeconds: 0,
		LogDir:            filepath.Join(dir, "logs"),
		LockDir:           filepath.Join(dir, "locks"),
	}
}

func TestNewRejectsSecondHolderOfSameLock(t *testing.T) {
	cfg := testDaemonConfig(t)

	rt1, err := New("test-daemon", cfg, &noopNotifier{})
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	defer rt1.Close()

	_, err = New("test-daemon", cfg, &noopNotifier{})
	if err == nil {
		t.Fatal("expected a second instance against the same lock dir/name to fail")
	}
}

func TestRunForeverRunsFirstCycleImmediatelyAndReportsStatus(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.IntervalSeconds = 3600 // long enough that only the immediate first cycle should fire

	notifier := &noopNotifier{}
	rt, err := New("sync-test", cfg, notifier)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	calls := 0
	task := func(tok *shutdown.Token) error {
		calls++
		tok.Fire()
		return nil
	}

	if err := rt.RunForever(task); err != nil {
		t.Fatalf("RunForever: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the first cycle to run immediately exactly once, got %d", calls)
	}

	status := rt.Status()
	if status["daemon"] != "sync-test" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if ok, _ := status["last_cycle_ok"].(bool); !ok {
		t.Fatalf("expected last_cycle_ok=true, got %+v", status)
	}
	if runID, _ := status["last_run_id"].(string); runID == "" {
		t.Fatalf("expected a non-empty last_run_id, got %+v", status)
	}
	if notifier.calls < 2 {
		t.Fatalf("expected at least start+stop notifications, got %d", notifier.calls)
	}
}

func TestExecuteTaskRetriesUpToMaxRetriesThenReturnsLastError(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.MaxRetries = 2
	cfg.RetryDelaySeconds = 0

	rt, err := New("retry-test", cfg, &noopNotifier{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	attempts := 0
	wantErr := errors.New("boom")
	task := func(_ *shutdown.Token) error {
		attempts++
		return wantErr
	}

	got := rt.executeTask(task)
	if got != wantErr {
		t.Fatalf("expected the final attempt's error to surface, got %v", got)
	}
	if attempts != cfg.MaxRetries+1 {
		t.Fatalf("expected %d attempts (1 + MaxRetries), got %d", cfg.MaxRetries+1, attempts)
	}
}

func TestExecuteTaskStopsRetryingOnceShutdownFires(t *testing.T) {
	cfg := testDaemonConfig(t)
	cfg.MaxRetries = 5
	cfg.RetryDelaySeconds = 1

	rt, err := New("retry-abort-test", cfg, &noopNotifier{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	attempts := 0
	task := func(tok *shutdown.Token) error {
		attempts++
		if attempts == 1 {
			tok.Fire()
		}
		return errors.New("still failing")
	}

	done := make(chan struct{})
	go func() {
		rt.executeTask(task)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executeTask did not abort promptly once the shutdown token fired mid-backoff")
	}
	if attempts != 1 {
		t.Fatalf("expected the retry loop to abort after the first failed attempt, got %d attempts", attempts)
	}
}
