// Package refresh contains the run orchestration core: the single-flight
// guard, the bounded retry loop over failed items, cancellable waits, and the
// status projection consumed by the admin API. It knows nothing about how an
// individual value is fetched; that lives behind the Scraper interface.
package refresh

import (
	"context"
	"time"
)

// Trigger identifies what started a run.
type Trigger string

const (
	// TriggerManual marks runs started from the admin API or CLI.
	TriggerManual Trigger = "manual"
	// TriggerScheduled marks runs started by the cron trigger or the
	// missed-run catch-up timer.
	TriggerScheduled Trigger = "scheduled"
)

// RunOptions is passed to the scraper for the initial full pass.
type RunOptions struct {
	Trigger      Trigger
	DelayProfile string
}

// RetryOptions is passed to the scraper for each retry attempt.
type RetryOptions struct {
	Attempt      int // 2 on the first retry; attempt 1 is the full pass
	Trigger      Trigger
	DelayProfile string
}

// RunSummary is the outcome of one full refresh pass.
type RunSummary struct {
	PricesUpdated      int     `json:"prices_updated"`
	BenchmarksUpdated  int     `json:"benchmarks_updated"`
	FailedPriceIDs     []int64 `json:"failed_price_ids"`
	FailedBenchmarkIDs []int64 `json:"failed_benchmark_ids"`
	CurrencyOK         bool    `json:"currency_ok"`
}

// RetrySet is the still-failing subset handed to the scraper on a retry.
type RetrySet struct {
	PriceIDs     []int64
	BenchmarkIDs []int64
	Currency     bool
}

// RetryResult reports what a retry attempt resolved.
type RetryResult struct {
	FailedPriceIDs     []int64
	FailedBenchmarkIDs []int64
	CurrencyOK         bool
}

// Scraper is the external collaborator that performs the actual fetching.
// Both calls may take arbitrarily long and may fail wholesale; a wholesale
// failure ends the run and is recorded on the outcome.
type Scraper interface {
	RunFull(ctx context.Context, opts RunOptions) (RunSummary, error)
	RetryFailed(ctx context.Context, set RetrySet, opts RetryOptions) (RetryResult, error)
}

// Recorder persists per-category completion marks for missed-run detection.
type Recorder interface {
	Record(category string, trigger Trigger, completedAt time.Time, success bool) error
}

// RunOutcome is the final result of a run. When Err is non-empty the run
// failed wholesale and the remaining fields besides ID, Trigger and
// CompletedAt are unset.
type RunOutcome struct {
	ID                      string      `json:"id"`
	Trigger                 Trigger     `json:"trigger"`
	CompletedAt             time.Time   `json:"completed_at"`
	Initial                 *RunSummary `json:"initial,omitempty"`
	FinalFailedPriceIDs     []int64     `json:"final_failed_price_ids"`
	FinalFailedBenchmarkIDs []int64     `json:"final_failed_benchmark_ids"`
	FinalCurrencyOK         bool        `json:"final_currency_ok"`
	TotalRetryAttempts      int         `json:"total_retry_attempts"`
	Err                     string      `json:"error,omitempty"`
}

// Failed reports whether the run ended in a wholesale error.
func (o *RunOutcome) Failed() bool {
	return o != nil && o.Err != ""
}

// retryState tracks the still-failing items across retry attempts.
// It is created fresh for each run and discarded when the run ends.
type retryState struct {
	priceIDs     []int64
	benchmarkIDs []int64
	currency     bool
}

func newRetryState(s RunSummary) *retryState {
	return &retryState{
		priceIDs:     append([]int64(nil), s.FailedPriceIDs...),
		benchmarkIDs: append([]int64(nil), s.FailedBenchmarkIDs...),
		currency:     !s.CurrencyOK,
	}
}

func (st *retryState) hasFailures() bool {
	return len(st.priceIDs) > 0 || len(st.benchmarkIDs) > 0 || st.currency
}

func (st *retryState) set() RetrySet {
	return RetrySet{
		PriceIDs:     st.priceIDs,
		BenchmarkIDs: st.benchmarkIDs,
		Currency:     st.currency,
	}
}

// apply narrows the state to what the retry attempt left failing. The
// currency refresh is only still needed if it was needed before and the
// retry failed it again.
func (st *retryState) apply(res RetryResult) {
	st.priceIDs = res.FailedPriceIDs
	st.benchmarkIDs = res.FailedBenchmarkIDs
	st.currency = st.currency && !res.CurrencyOK
}
