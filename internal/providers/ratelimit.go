package providers

import (
	"sync"
	"time"
)

// Window tracks per-provider call timestamps over a sliding 60-second
// interval. Every attempted provider call is recorded regardless of its
// outcome, so failed and rejected calls still consume budget.
//
// The window is an explicit injected object guarded by a mutex rather than
// package-level state, so concurrent requests in one process share a
// consistent budget.
type Window struct {
	mu       sync.Mutex
	budget   int
	interval time.Duration
	calls    map[string][]time.Time
	now      func() time.Time
}

// windowInterval is the sliding interval all provider budgets are
// expressed against.
const windowInterval = 60 * time.Second

// NewWindow creates a sliding window allowing budget calls per provider
// per minute.
func NewWindow(budget int) *Window {
	return &Window{
		budget:   budget,
		interval: windowInterval,
		calls:    make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether the provider is under budget and, if so, records
// the call. Callers must invoke Allow exactly once per attempted provider
// call, before the call is made.
func (w *Window) Allow(provider string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	recent := w.prune(provider, now)

	if len(recent) >= w.budget {
		return false
	}

	w.calls[provider] = append(recent, now)
	return true
}

// Count returns the number of calls recorded for the provider within the
// current interval.
func (w *Window) Count(provider string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	recent := w.prune(provider, w.now())
	w.calls[provider] = recent
	return len(recent)
}

// prune drops timestamps older than the interval. Caller holds the lock.
func (w *Window) prune(provider string, now time.Time) []time.Time {
	cutoff := now.Add(-w.interval)
	timestamps := w.calls[provider]

	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}
	return timestamps[i:]
}
