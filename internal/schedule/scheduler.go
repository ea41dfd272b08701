// Package schedule owns the cron trigger for the refresh daemon. It fires
// scheduled runs, detects a run missed while the process was down, and tears
// everything down cleanly on Stop, including any pending catch-up timer.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rcollins/quotesync/internal/logger"
	"github.com/rcollins/quotesync/internal/refresh"
)

// Config is the validated scheduling configuration, read once at Initialize.
type Config struct {
	Enabled              bool
	CronExpression       string
	RunOnStartupIfMissed bool
	StartupDelay         time.Duration
}

// RunLog is the persistence collaborator queried for missed-run detection.
type RunLog interface {
	Exists() bool
	LastSuccessfulRun(category string, trigger refresh.Trigger) (time.Time, bool)
}

// Scheduler wires the cron trigger to the orchestrator.
type Scheduler struct {
	cfg    Config
	orch   *refresh.Orchestrator
	runLog RunLog
	log    *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	started bool
	stopped bool
}

// New creates a scheduler. Nothing runs until Initialize.
func New(cfg Config, orch *refresh.Orchestrator, runLog RunLog, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		orch:   orch,
		runLog: runLog,
		log:    log,
	}
}

// Initialize validates the cron expression, starts the trigger, and arms the
// missed-run catch-up timer when one is due. An invalid expression is the
// only error path; when scheduling is disabled it logs and does nothing.
func (s *Scheduler) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.log.Info("scheduled refresh disabled")
		return nil
	}

	if _, err := ParseSpec(s.cfg.CronExpression); err != nil {
		return err
	}

	s.cron = cron.New()
	entryID, err := s.cron.AddFunc(s.cfg.CronExpression, func() {
		// The orchestrator's single-flight guard drops a tick that
		// arrives while the previous run is still executing.
		s.orch.Execute(ctx, refresh.TriggerScheduled)
	})
	if err != nil {
		return err
	}
	s.entryID = entryID
	s.cron.Start()
	s.started = true

	if next, ok := s.nextRunLocked(); ok {
		s.log.Info("refresh scheduled",
			logger.Field{Key: "cron", Value: s.cfg.CronExpression},
			logger.Field{Key: "next_run", Value: next})
	}

	s.maybeScheduleMissedRun(ctx, time.Now())
	return nil
}

// maybeScheduleMissedRun arms a one-shot deferred run when the last
// successful scheduled price refresh predates the most recent firing time.
// Skipped entirely on fresh installs where no run log exists yet.
func (s *Scheduler) maybeScheduleMissedRun(ctx context.Context, now time.Time) {
	if !s.cfg.RunOnStartupIfMissed {
		return
	}
	if !s.runLog.Exists() {
		return
	}

	prev, err := PrevFireTime(s.cfg.CronExpression, now)
	if err != nil {
		s.log.Warn("cannot compute previous firing time, skipping missed-run check",
			logger.Field{Key: "cron", Value: s.cfg.CronExpression})
		return
	}

	last, ok := s.runLog.LastSuccessfulRun(refresh.CategoryPrice, refresh.TriggerScheduled)
	if ok && !last.Before(prev) {
		return
	}

	s.log.Info("missed scheduled refresh detected",
		logger.Field{Key: "last_fire_time", Value: prev},
		logger.Field{Key: "startup_delay", Value: s.cfg.StartupDelay.String()})

	// The wait goes through the orchestrator's waiter so Stop cancels it.
	go func() {
		if s.orch.Waiter().Wait(s.cfg.StartupDelay) == refresh.WaitCancelled {
			return
		}
		s.orch.Execute(ctx, refresh.TriggerScheduled)
	}()
}

// Stop cancels the cron trigger and every pending deferred wait, including a
// pending missed-run timer. Idempotent; safe when never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	if s.cron != nil {
		s.cron.Stop()
	}
	s.orch.Waiter().CancelAll()

	if s.started {
		s.log.Info("scheduler stopped")
	}
}

// NextRun returns the next firing time; ok is false when scheduling is
// disabled or the scheduler has been stopped.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunLocked()
}

func (s *Scheduler) nextRunLocked() (time.Time, bool) {
	if !s.started || s.stopped {
		return time.Time{}, false
	}
	next := s.cron.Entry(s.entryID).Next
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Running reports whether a refresh run is executing right now.
func (s *Scheduler) Running() bool {
	return s.orch.Running()
}
