package alerting

import (
	"sync"
	"time"
)

// maxOccurrencesPerRule bounds the timestamps retained for one rule.
const maxOccurrencesPerRule = 1000

// OccurrenceTracker keeps recent match timestamps per rule so burst rules
// can ask how many matches landed inside a sliding window.
type OccurrenceTracker struct {
	buffers map[string][]time.Time
	mu      sync.Mutex
}

// NewOccurrenceTracker creates an empty tracker.
func NewOccurrenceTracker() *OccurrenceTracker {
	return &OccurrenceTracker{buffers: make(map[string][]time.Time)}
}

// Record adds a match at ts for rule, evicts matches older than window and
// returns how many matches remain inside it.
func (t *OccurrenceTracker) Record(rule string, ts time.Time, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := append(t.buffers[rule], ts)

	cutoff := ts.Add(-window)
	start := 0
	for start < len(samples) && !samples[start].After(cutoff) {
		start++
	}
	samples = samples[start:]

	if len(samples) > maxOccurrencesPerRule {
		samples = samples[len(samples)-maxOccurrencesPerRule:]
	}

	t.buffers[rule] = samples
	return len(samples)
}

// Reset forgets all matches for rule. Called after a burst rule fires so the
// next notification needs a fresh burst.
func (t *OccurrenceTracker) Reset(rule string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buffers, rule)
}

// Count returns the number of matches retained for rule.
func (t *OccurrenceTracker) Count(rule string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffers[rule])
}
