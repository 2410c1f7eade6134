package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOccurrenceTracker_SlidingWindow(t *testing.T) {
	tracker := NewOccurrenceTracker()
	base := time.Unix(1700000000, 0)
	window := time.Minute

	assert.Equal(t, 1, tracker.Record("r", base, window))
	assert.Equal(t, 2, tracker.Record("r", base.Add(20*time.Second), window))
	assert.Equal(t, 3, tracker.Record("r", base.Add(50*time.Second), window))
	// base falls out of the window at exactly one minute.
	assert.Equal(t, 3, tracker.Record("r", base.Add(60*time.Second), window))
	assert.Equal(t, 1, tracker.Record("r", base.Add(5*time.Minute), window))
}

func TestOccurrenceTracker_RulesAreIndependent(t *testing.T) {
	tracker := NewOccurrenceTracker()
	now := time.Now()

	tracker.Record("a", now, time.Minute)
	tracker.Record("a", now, time.Minute)
	tracker.Record("b", now, time.Minute)

	assert.Equal(t, 2, tracker.Count("a"))
	assert.Equal(t, 1, tracker.Count("b"))

	tracker.Reset("a")
	assert.Equal(t, 0, tracker.Count("a"))
	assert.Equal(t, 1, tracker.Count("b"))
}

func TestOccurrenceTracker_BufferCapped(t *testing.T) {
	tracker := NewOccurrenceTracker()
	now := time.Now()
	for range maxOccurrencesPerRule + 50 {
		tracker.Record("r", now, time.Hour)
	}
	assert.Equal(t, maxOccurrencesPerRule, tracker.Count("r"))
}
