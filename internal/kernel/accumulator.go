package kernel

import "sync"

// #region accumulator

// Accumulator receives the veto reasons of every validation. An empty
// observation is an acceptance. Implementations must be safe for
// concurrent use; one accumulator is typically shared by a worker pool.
type Accumulator interface {
	Observe(reasons []string)
	Snapshot() map[string]int64
	Reset()
}

// CountingAccumulator counts validations, rejections, and per-reason
// totals under one mutex.
type CountingAccumulator struct {
	mu          sync.Mutex
	validations int64
	rejections  int64
	byReason    map[string]int64
}

// NewCountingAccumulator returns an empty accumulator.
func NewCountingAccumulator() *CountingAccumulator {
	return &CountingAccumulator{byReason: make(map[string]int64)}
}

// Observe records one validation and its veto reasons.
func (a *CountingAccumulator) Observe(reasons []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validations++
	if len(reasons) == 0 {
		return
	}
	a.rejections++
	for _, r := range reasons {
		a.byReason[r]++
	}
}

// Snapshot copies the per-reason counts.
func (a *CountingAccumulator) Snapshot() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int64, len(a.byReason))
	for r, n := range a.byReason {
		out[r] = n
	}
	return out
}

// Validations returns the number of observed validations.
func (a *CountingAccumulator) Validations() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.validations
}

// Rejections returns the number of observed rejections.
func (a *CountingAccumulator) Rejections() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rejections
}

// Reset clears all counts.
func (a *CountingAccumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validations = 0
	a.rejections = 0
	a.byReason = make(map[string]int64)
}

// Merge folds another accumulator's counts into this one. Workers can
// count locally and merge once at the end of a batch.
func (a *CountingAccumulator) Merge(other *CountingAccumulator) {
	if other == nil || other == a {
		return
	}
	other.mu.Lock()
	validations := other.validations
	rejections := other.rejections
	byReason := make(map[string]int64, len(other.byReason))
	for r, n := range other.byReason {
		byReason[r] = n
	}
	other.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.validations += validations
	a.rejections += rejections
	for r, n := range byReason {
		a.byReason[r] += n
	}
}

// #endregion accumulator
