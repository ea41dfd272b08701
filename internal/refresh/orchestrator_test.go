package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcollins/quotesync/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, slog.LevelDebug)
}

// stubScraper scripts the collaborator's behavior per call.
type stubScraper struct {
	mu         sync.Mutex
	full       func(opts RunOptions) (RunSummary, error)
	retry      func(set RetrySet, opts RetryOptions) (RetryResult, error)
	fullCalls  int
	retryCalls []RetryOptions
}

func (s *stubScraper) RunFull(_ context.Context, opts RunOptions) (RunSummary, error) {
	s.mu.Lock()
	s.fullCalls++
	s.mu.Unlock()
	return s.full(opts)
}

func (s *stubScraper) RetryFailed(_ context.Context, set RetrySet, opts RetryOptions) (RetryResult, error) {
	s.mu.Lock()
	s.retryCalls = append(s.retryCalls, opts)
	s.mu.Unlock()
	return s.retry(set, opts)
}

func (s *stubScraper) retryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retryCalls)
}

// memRecorder collects Record calls in memory.
type memRecorder struct {
	mu    sync.Mutex
	marks map[string]bool
}

func (r *memRecorder) Record(category string, _ Trigger, _ time.Time, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.marks == nil {
		r.marks = make(map[string]bool)
	}
	r.marks[category] = success
	return nil
}

func newOrchestrator(cfg Config, s *stubScraper, rec Recorder) *Orchestrator {
	return NewOrchestrator(cfg, s, rec, nil, testLogger())
}

func TestExecute_AllSucceedsFirstPass(t *testing.T) {
	s := &stubScraper{
		full: func(RunOptions) (RunSummary, error) {
			return RunSummary{PricesUpdated: 12, BenchmarksUpdated: 3, CurrencyOK: true}, nil
		},
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 3}, s, nil)

	o.Execute(context.Background(), TriggerScheduled)

	outcome := o.LastOutcome()
	require.NotNil(t, outcome)
	assert.False(t, outcome.Failed())
	assert.Equal(t, 0, outcome.TotalRetryAttempts)
	assert.Empty(t, outcome.FinalFailedPriceIDs)
	assert.True(t, outcome.FinalCurrencyOK)
	assert.Equal(t, 0, s.retryCount())
	assert.False(t, o.Running())
}

func TestExecute_RetriesResolveFailuresSequentially(t *testing.T) {
	// Initial pass fails prices 7 and 9; attempt 2 resolves 7, attempt 3
	// resolves 9.
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{FailedPriceIDs: []int64{7, 9}, CurrencyOK: true}, nil
	}
	s.retry = func(set RetrySet, opts RetryOptions) (RetryResult, error) {
		switch opts.Attempt {
		case 2:
			assert.ElementsMatch(t, []int64{7, 9}, set.PriceIDs)
			return RetryResult{FailedPriceIDs: []int64{9}, CurrencyOK: true}, nil
		case 3:
			assert.ElementsMatch(t, []int64{9}, set.PriceIDs)
			return RetryResult{CurrencyOK: true}, nil
		default:
			t.Fatalf("unexpected attempt %d", opts.Attempt)
			return RetryResult{}, nil
		}
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 3}, s, nil)

	o.Execute(context.Background(), TriggerManual)

	outcome := o.LastOutcome()
	require.NotNil(t, outcome)
	assert.Empty(t, outcome.FinalFailedPriceIDs)
	assert.Equal(t, 2, outcome.TotalRetryAttempts)
	assert.Equal(t, TriggerManual, outcome.Trigger)
}

func TestExecute_RetryLoopIsBounded(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{FailedPriceIDs: []int64{1, 2, 3}, CurrencyOK: true}, nil
	}
	s.retry = func(set RetrySet, _ RetryOptions) (RetryResult, error) {
		// Everything keeps failing.
		return RetryResult{FailedPriceIDs: set.PriceIDs, FailedBenchmarkIDs: set.BenchmarkIDs, CurrencyOK: true}, nil
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 5}, s, nil)

	o.Execute(context.Background(), TriggerScheduled)

	outcome := o.LastOutcome()
	require.NotNil(t, outcome)
	assert.Equal(t, 4, s.retryCount())
	assert.Equal(t, 4, outcome.TotalRetryAttempts)
	assert.ElementsMatch(t, []int64{1, 2, 3}, outcome.FinalFailedPriceIDs)
}

func TestExecute_StopsEarlyWhenRetrySucceeds(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{FailedBenchmarkIDs: []int64{42}, CurrencyOK: true}, nil
	}
	s.retry = func(RetrySet, RetryOptions) (RetryResult, error) {
		return RetryResult{CurrencyOK: true}, nil
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 10}, s, nil)

	o.Execute(context.Background(), TriggerScheduled)

	assert.Equal(t, 1, s.retryCount())
	assert.Equal(t, 1, o.LastOutcome().TotalRetryAttempts)
}

func TestExecute_CurrencyOnlyRetriedUntilItSucceeds(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{CurrencyOK: false}, nil
	}
	s.retry = func(set RetrySet, opts RetryOptions) (RetryResult, error) {
		assert.True(t, set.Currency)
		// Fails again on attempt 2, succeeds on attempt 3.
		return RetryResult{CurrencyOK: opts.Attempt >= 3}, nil
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 5}, s, nil)

	o.Execute(context.Background(), TriggerScheduled)

	outcome := o.LastOutcome()
	assert.Equal(t, 2, s.retryCount())
	assert.True(t, outcome.FinalCurrencyOK)
	assert.Equal(t, 2, outcome.TotalRetryAttempts)
}

func TestExecute_SingleFlightDropsConcurrentTrigger(t *testing.T) {
	block := make(chan struct{})
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		<-block
		return RunSummary{CurrencyOK: true}, nil
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 1}, s, nil)

	done := make(chan struct{})
	go func() {
		o.Execute(context.Background(), TriggerScheduled)
		close(done)
	}()
	require.Eventually(t, func() bool { return o.Running() }, time.Second, time.Millisecond)

	// A second trigger mid-run must be dropped without touching state.
	o.Execute(context.Background(), TriggerManual)
	assert.Nil(t, o.LastOutcome())
	assert.Equal(t, 1, s.fullCalls)

	close(block)
	<-done
	require.NotNil(t, o.LastOutcome())
	assert.Equal(t, TriggerScheduled, o.LastOutcome().Trigger)
}

func TestExecute_WholesaleFailureRecordedNotPropagated(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{}, errors.New("total network outage")
	}
	rec := &memRecorder{}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 3}, s, rec)

	o.Execute(context.Background(), TriggerScheduled)

	outcome := o.LastOutcome()
	require.NotNil(t, outcome)
	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.Err, "total network outage")
	assert.False(t, o.Running())
	// Failed runs never write completion marks.
	assert.Empty(t, rec.marks)
}

func TestExecute_PanicRecordedAsErrorOutcome(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		panic("scraper blew up")
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 3}, s, nil)

	o.Execute(context.Background(), TriggerScheduled)

	outcome := o.LastOutcome()
	require.NotNil(t, outcome)
	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.Err, "scraper blew up")
	assert.False(t, o.Running())
}

func TestExecute_RetryErrorAbortsRun(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{FailedPriceIDs: []int64{1}, CurrencyOK: true}, nil
	}
	s.retry = func(RetrySet, RetryOptions) (RetryResult, error) {
		return RetryResult{}, errors.New("upstream gone")
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 5}, s, nil)

	o.Execute(context.Background(), TriggerScheduled)

	outcome := o.LastOutcome()
	require.NotNil(t, outcome)
	assert.True(t, outcome.Failed())
	assert.Contains(t, outcome.Err, "retry attempt 2")
	assert.Equal(t, 1, s.retryCount())
}

func TestExecute_CancelDuringWaitExitsWithoutRetrying(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{FailedPriceIDs: []int64{5}, CurrencyOK: true}, nil
	}
	s.retry = func(set RetrySet, _ RetryOptions) (RetryResult, error) {
		return RetryResult{FailedPriceIDs: set.PriceIDs, CurrencyOK: true}, nil
	}
	o := newOrchestrator(Config{RetryDelay: time.Minute, MaxAttempts: 5}, s, nil)

	done := make(chan struct{})
	go func() {
		o.Execute(context.Background(), TriggerScheduled)
		close(done)
	}()
	require.Eventually(t, func() bool { return o.Waiter().Pending() == 1 }, time.Second, time.Millisecond)

	o.Waiter().CancelAll()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not exit after cancellation")
	}

	outcome := o.LastOutcome()
	require.NotNil(t, outcome)
	assert.False(t, outcome.Failed())
	assert.Equal(t, 0, s.retryCount())
	assert.Equal(t, 0, outcome.TotalRetryAttempts)
	assert.ElementsMatch(t, []int64{5}, outcome.FinalFailedPriceIDs)
}

func TestExecute_ClearsStaleCancellation(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{FailedPriceIDs: []int64{8}, CurrencyOK: true}, nil
	}
	s.retry = func(RetrySet, RetryOptions) (RetryResult, error) {
		return RetryResult{CurrencyOK: true}, nil
	}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 3}, s, nil)

	// A previous shutdown left the flag set; the next run must still retry.
	o.Waiter().CancelAll()
	o.Execute(context.Background(), TriggerScheduled)

	assert.Equal(t, 1, s.retryCount())
	assert.Empty(t, o.LastOutcome().FinalFailedPriceIDs)
}

func TestExecute_RecordsPerCategoryMarks(t *testing.T) {
	s := &stubScraper{}
	s.full = func(RunOptions) (RunSummary, error) {
		return RunSummary{FailedPriceIDs: []int64{1}, CurrencyOK: true}, nil
	}
	s.retry = func(set RetrySet, _ RetryOptions) (RetryResult, error) {
		// Price 1 never recovers.
		return RetryResult{FailedPriceIDs: set.PriceIDs, CurrencyOK: true}, nil
	}
	rec := &memRecorder{}
	o := newOrchestrator(Config{RetryDelay: 0, MaxAttempts: 2}, s, rec)

	o.Execute(context.Background(), TriggerScheduled)

	assert.Equal(t, map[string]bool{
		CategoryPrice:     false,
		CategoryBenchmark: true,
		CategoryCurrency:  true,
	}, rec.marks)
}
