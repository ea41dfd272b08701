package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rcollins/quotesync/internal/logger"
)

// Run-log categories recorded after a completed run.
const (
	CategoryPrice     = "price"
	CategoryBenchmark = "benchmark"
	CategoryCurrency  = "currency"
)

// Config governs the retry loop.
type Config struct {
	RetryDelay   time.Duration // pause before each retry attempt
	MaxAttempts  int           // total attempts including the initial pass, 1..10
	DelayProfile string        // pacing profile handed to the scraper
}

// Orchestrator executes one full refresh pass and drives the bounded retry
// loop over whatever failed. At most one run is live at a time; triggers that
// arrive mid-run are dropped.
type Orchestrator struct {
	cfg      Config
	scraper  Scraper
	recorder Recorder
	waiter   *Waiter
	metrics  *Metrics
	log      *logger.Logger

	running atomic.Bool

	mu   sync.RWMutex
	last *RunOutcome
}

// NewOrchestrator wires an orchestrator. recorder and metrics may be nil.
func NewOrchestrator(cfg Config, scraper Scraper, recorder Recorder, metrics *Metrics, log *logger.Logger) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Orchestrator{
		cfg:      cfg,
		scraper:  scraper,
		recorder: recorder,
		waiter:   NewWaiter(),
		metrics:  metrics,
		log:      log,
	}
}

// Waiter exposes the cancellation controller so the scheduler can route its
// deferred timers and Stop through the same cancel path.
func (o *Orchestrator) Waiter() *Waiter {
	return o.waiter
}

// Running reports whether a run is currently executing.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastOutcome returns the outcome of the most recently completed run, or nil
// if no run has completed yet.
func (o *Orchestrator) LastOutcome() *RunOutcome {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// Execute runs one refresh. If a run is already in progress the trigger is
// dropped. Nothing is ever propagated to the caller; wholesale failures are
// recorded on the outcome.
func (o *Orchestrator) Execute(ctx context.Context, trigger Trigger) {
	if !o.running.CompareAndSwap(false, true) {
		o.log.Info("refresh already running, dropping trigger",
			logger.Field{Key: "trigger", Value: string(trigger)})
		return
	}
	defer o.running.Store(false)

	o.waiter.Reset()
	o.metrics.RunStarted()
	start := time.Now()

	outcome := o.safeRun(ctx, trigger)
	outcome.CompletedAt = time.Now()

	o.mu.Lock()
	o.last = outcome
	o.mu.Unlock()

	o.metrics.RunFinished(trigger, outcome, time.Since(start))
	o.record(outcome)

	if outcome.Failed() {
		o.log.Error("refresh run failed", fmt.Errorf("%s", outcome.Err),
			logger.Field{Key: "run_id", Value: outcome.ID},
			logger.Field{Key: "trigger", Value: string(trigger)})
		return
	}
	o.log.Info("refresh run complete",
		logger.Field{Key: "run_id", Value: outcome.ID},
		logger.Field{Key: "trigger", Value: string(trigger)},
		logger.Field{Key: "retry_attempts", Value: outcome.TotalRetryAttempts},
		logger.Field{Key: "failed_prices", Value: len(outcome.FinalFailedPriceIDs)},
		logger.Field{Key: "failed_benchmarks", Value: len(outcome.FinalFailedBenchmarkIDs)},
		logger.Field{Key: "duration", Value: time.Since(start).String()})
}

// safeRun converts a panic anywhere in the run into an error outcome. This
// is a background process with no caller to receive a failure, so nothing may
// escape the run boundary.
func (o *Orchestrator) safeRun(ctx context.Context, trigger Trigger) (outcome *RunOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = &RunOutcome{
				ID:      uuid.NewString(),
				Trigger: trigger,
				Err:     fmt.Sprintf("internal error: %v", r),
			}
		}
	}()
	return o.run(ctx, trigger)
}

func (o *Orchestrator) run(ctx context.Context, trigger Trigger) *RunOutcome {
	outcome := &RunOutcome{
		ID:      uuid.NewString(),
		Trigger: trigger,
	}

	summary, err := o.scraper.RunFull(ctx, RunOptions{
		Trigger:      trigger,
		DelayProfile: o.cfg.DelayProfile,
	})
	if err != nil {
		outcome.Err = fmt.Sprintf("full scrape failed: %v", err)
		return outcome
	}

	state := newRetryState(summary)
	attempt := 2

	for attempt <= o.cfg.MaxAttempts && !o.waiter.Cancelled() && state.hasFailures() {
		if o.waiter.Wait(o.cfg.RetryDelay) == WaitCancelled {
			o.log.Info("retry loop cancelled",
				logger.Field{Key: "run_id", Value: outcome.ID},
				logger.Field{Key: "attempt", Value: attempt})
			break
		}

		o.log.Info("retrying failed items",
			logger.Field{Key: "run_id", Value: outcome.ID},
			logger.Field{Key: "attempt", Value: attempt},
			logger.Field{Key: "max_attempts", Value: o.cfg.MaxAttempts},
			logger.Field{Key: "pending_prices", Value: len(state.priceIDs)},
			logger.Field{Key: "pending_benchmarks", Value: len(state.benchmarkIDs)},
			logger.Field{Key: "pending_currency", Value: state.currency})

		res, err := o.scraper.RetryFailed(ctx, state.set(), RetryOptions{
			Attempt:      attempt,
			Trigger:      trigger,
			DelayProfile: o.cfg.DelayProfile,
		})
		if err != nil {
			outcome.Err = fmt.Sprintf("retry attempt %d failed: %v", attempt, err)
			return outcome
		}
		o.metrics.RetryAttempt()

		state.apply(res)
		attempt++
	}

	outcome.Initial = &summary
	outcome.FinalFailedPriceIDs = state.priceIDs
	outcome.FinalFailedBenchmarkIDs = state.benchmarkIDs
	outcome.FinalCurrencyOK = !state.currency
	outcome.TotalRetryAttempts = attempt - 2
	if outcome.TotalRetryAttempts < 0 {
		outcome.TotalRetryAttempts = 0
	}
	return outcome
}

// record writes per-category completion marks for a finished run. A category
// counts as successful when nothing in it is still failing. Wholesale
// failures are not recorded; the run never completed a pass.
func (o *Orchestrator) record(outcome *RunOutcome) {
	if o.recorder == nil || outcome.Failed() {
		return
	}

	marks := []struct {
		category string
		success  bool
	}{
		{CategoryPrice, len(outcome.FinalFailedPriceIDs) == 0},
		{CategoryBenchmark, len(outcome.FinalFailedBenchmarkIDs) == 0},
		{CategoryCurrency, outcome.FinalCurrencyOK},
	}
	for _, m := range marks {
		if err := o.recorder.Record(m.category, outcome.Trigger, outcome.CompletedAt, m.success); err != nil {
			o.log.Error("failed to record run completion", err,
				logger.Field{Key: "category", Value: m.category},
				logger.Field{Key: "run_id", Value: outcome.ID})
		}
	}
}
