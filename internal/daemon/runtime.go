// Package daemon is the shared long-lived process runtime: a
// single-instance file lock, a bounded-retry task loop with
// shutdown-cancellable sleeps, size-rotated structured logging, and
// robfig/cron-driven inter-cycle scheduling, shared by both the sync
// daemon and the upload daemon entrypoints.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nuco-0416/ecauto-sub000/internal/config"
	"github.com/nuco-0416/ecauto-sub000/internal/logger"
	"github.com/nuco-0416/ecauto-sub000/internal/notify"
	"github.com/nuco-0416/ecauto-sub000/internal/shutdown"
)

// Task is one daemon cycle's unit of work. It receives the runtime's
// shutdown token so long-running work inside it can honor interruption
// the same way every other blocking section in the engine does.
type Task func(tok *shutdown.Token) error

// CycleInfo is a snapshot of the most recently completed cycle, exposed
// through Status for internal/adminhttp.
type CycleInfo struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Attempts   int
	Err        string
}

// Runtime is one long-lived daemon process: a held lock file, a
// shutdown token wired to SIGINT/SIGTERM, a structured logger, and the
// cron scheduler driving its cycle interval.
type Runtime struct {
	name     string
	cfg      config.Daemon
	tok      *shutdown.Token
	log      zerolog.Logger
	notifier notify.Notifier
	lockFile *os.File
	cron     *cron.Cron

	mu   sync.Mutex
	last CycleInfo
}

// New acquires the single-instance lock and builds the structured
// logger. It returns an error if another instance already holds the
// lock file for this daemon name.
func New(name string, cfg config.Daemon, notifier notify.Notifier) (*Runtime, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("daemon: mkdir log dir: %w", err)
	}
	if err := os.MkdirAll(cfg.LockDir, 0o755); err != nil {
		return nil, fmt.Errorf("daemon: mkdir lock dir: %w", err)
	}

	lockFile, err := acquireLock(filepath.Join(cfg.LockDir, name+".lock"))
	if err != nil {
		return nil, err
	}

	return &Runtime{
		name:     name,
		cfg:      cfg,
		tok:      shutdown.New(),
		log:      newStructuredLogger(cfg.LogDir, name),
		notifier: notifier,
		lockFile: lockFile,
	}, nil
}

// Token returns the runtime's shutdown token, for constructing the
// engine components a Task closes over before calling RunForever.
func (r *Runtime) Token() *shutdown.Token { return r.tok }

// Log returns the structured zerolog sink.
func (r *Runtime) Log() *zerolog.Logger { return &r.log }

// Close stops the cron scheduler if running and releases the lock file.
func (r *Runtime) Close() error {
	if r.cron != nil {
		r.cron.Stop()
	}
	return releaseLock(r.lockFile)
}

// RunForever runs task immediately, then on every IntervalSeconds tick
// via cron, until SIGINT/SIGTERM fires the shutdown token. It returns
// the error of the last completed cycle (nil if the last cycle
// succeeded), which callers use to pick the process exit code.
func (r *Runtime) RunForever(task Task) error {
	logger.Banner(r.name, "")
	r.notifier.Notify("daemon_start", r.name+" started", "", notify.LevelInfo)

	c := cron.New()
	r.cron = c

	run := func() {
		if r.tok.Fired() {
			return
		}
		runID := uuid.NewString()
		cycleLog := r.log.With().Str("run_id", runID).Logger()

		logger.Section(fmt.Sprintf("%s cycle", r.name))
		started := time.Now().UTC()
		err := r.executeTask(task)
		finished := time.Now().UTC()

		r.mu.Lock()
		r.last = CycleInfo{RunID: runID, StartedAt: started, FinishedAt: finished}
		if err != nil {
			r.last.Err = err.Error()
		}
		r.mu.Unlock()

		if err != nil {
			logger.Error(r.name, err.Error())
			cycleLog.Error().Err(err).Msg("cycle failed")
			// An error surfacing from executeTask means the retry budget
			// is spent; a shutdown-interrupted cycle is not a failure and
			// gets no notification.
			if !r.tok.Fired() {
				r.notifier.Notify("retry_exhausted", r.name+" retry budget exhausted", fmt.Sprintf("run_id=%s: %s", runID, err.Error()), notify.LevelError)
			}
		} else {
			logger.Success(r.name, "cycle completed")
			cycleLog.Info().Dur("duration", finished.Sub(started)).Msg("cycle completed")
		}
	}

	spec := fmt.Sprintf("@every %ds", r.cfg.IntervalSeconds)
	if _, err := c.AddFunc(spec, run); err != nil {
		return fmt.Errorf("daemon: schedule %q: %w", spec, err)
	}
	c.Start()

	run() // first cycle fires immediately rather than waiting for the first tick

	<-r.tok.Done()
	c.Stop()
	r.notifier.Notify("daemon_stop", r.name+" stopped", "", notify.LevelInfo)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last.Err != "" {
		return fmt.Errorf("daemon: last cycle failed: %s", r.last.Err)
	}
	return nil
}

// executeTask runs task with up to cfg.MaxRetries additional attempts,
// sleeping RetryDelaySeconds between them through the shutdown token so
// a signal received mid-backoff aborts the retry loop immediately
// rather than completing it.
func (r *Runtime) executeTask(task Task) error {
	var err error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if r.tok.Fired() {
			return err
		}
		err = task(r.tok)
		if err == nil {
			return nil
		}
		r.log.Warn().Err(err).Int("attempt", attempt+1).Msg("task attempt failed")
		if attempt == r.cfg.MaxRetries {
			break
		}
		if !r.tok.Sleep(time.Duration(r.cfg.RetryDelaySeconds) * time.Second) {
			return err
		}
	}
	return err
}

// Status implements internal/adminhttp.StatusProvider, reporting the
// most recently completed cycle.
func (r *Runtime) Status() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := map[string]interface{}{
		"daemon": r.name,
	}
	if !r.last.FinishedAt.IsZero() {
		status["last_run_id"] = r.last.RunID
		status["last_cycle_started_at"] = r.last.StartedAt
		status["last_cycle_finished_at"] = r.last.FinishedAt
		status["last_cycle_ok"] = r.last.Err == ""
		if r.last.Err != "" {
			status["last_cycle_error"] = r.last.Err
		}
	}
	return status
}
