package refresh

import (
	"sync"
	"time"
)

// WaitResult distinguishes a wait that ran its full duration from one that
// was cut short by CancelAll.
type WaitResult int

const (
	// WaitCompleted means the timer fired naturally.
	WaitCompleted WaitResult = iota
	// WaitCancelled means CancelAll ended the wait early. Callers must treat
	// this as "stop now", not as "the delay elapsed".
	WaitCancelled
)

// Waiter provides cancellable waits. Every outstanding wait is tracked, and
// CancelAll resolves each of them as WaitCancelled by closing its signal
// channel; a wait can never be left hanging on a cleared timer.
type Waiter struct {
	mu        sync.Mutex
	cancelled bool
	waits     map[chan struct{}]struct{}
}

// NewWaiter creates a Waiter with no pending waits.
func NewWaiter() *Waiter {
	return &Waiter{
		waits: make(map[chan struct{}]struct{}),
	}
}

// Wait blocks for d and reports whether the wait completed or was cancelled.
// If CancelAll ran before the call, it returns WaitCancelled without waiting.
func (w *Waiter) Wait(d time.Duration) WaitResult {
	w.mu.Lock()
	if w.cancelled {
		w.mu.Unlock()
		return WaitCancelled
	}
	signal := make(chan struct{})
	w.waits[signal] = struct{}{}
	w.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		w.remove(signal)
		return WaitCompleted
	case <-signal:
		// CancelAll already removed the entry.
		return WaitCancelled
	}
}

// CancelAll flips the cancellation flag and resolves every outstanding wait.
// Repeated calls are cheap no-ops once nothing is pending.
func (w *Waiter) CancelAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancelled = true
	for signal := range w.waits {
		close(signal)
		delete(w.waits, signal)
	}
}

// Reset clears a stale cancellation flag so a new run can wait again.
func (w *Waiter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelled = false
}

// Cancelled reports whether CancelAll has run since the last Reset.
func (w *Waiter) Cancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

// Pending returns the number of outstanding waits.
func (w *Waiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waits)
}

func (w *Waiter) remove(signal chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.waits, signal)
}
