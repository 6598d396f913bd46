package model

import "sync"

// UsageTracker accumulates token usage per model name. A package-level
// tracker collects process-wide totals; eval runs attach their own tracker
// per sample.
type UsageTracker struct {
	mu      sync.Mutex
	byModel map[string]TokenUsage
}

// NewUsageTracker returns an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{byModel: make(map[string]TokenUsage)}
}

// Record adds a usage sample for the model.
func (t *UsageTracker) Record(model string, usage TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.byModel[model]
	u.Add(usage)
	t.byModel[model] = u
}

// ByModel returns a copy of the per-model totals.
func (t *UsageTracker) ByModel() map[string]TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]TokenUsage, len(t.byModel))
	for k, v := range t.byModel {
		out[k] = v
	}
	return out
}

// Total returns usage summed across all models.
func (t *UsageTracker) Total() TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total TokenUsage
	for _, u := range t.byModel {
		total.Add(u)
	}
	return total
}

// Reset drops all recorded usage.
func (t *UsageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byModel = make(map[string]TokenUsage)
}

// globalUsage collects totals across every Model in the process.
var globalUsage = NewUsageTracker()

// GlobalUsage returns the process-wide usage tracker.
func GlobalUsage() *UsageTracker { return globalUsage }
