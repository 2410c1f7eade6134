// Package datastore holds the in-memory alert history.
package datastore

import (
	"sync"

	"github.com/campusguard/edge-collector/internal/datastore/entities"
)

// DefaultCapacity is the number of alerts retained in memory.
const DefaultCapacity = 200

// RingBuffer is a fixed-capacity, newest-first alert store. Inserting into
// a full buffer silently drops the oldest alert.
type RingBuffer struct {
	mu    sync.RWMutex
	items []entities.Alert
	head  int // index of the newest alert
	size  int
}

// NewRingBuffer creates a buffer holding at most capacity alerts.
// Non-positive capacities fall back to DefaultCapacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{items: make([]entities.Alert, capacity)}
}

// InsertFront stores alert as the newest entry. It reports whether an older
// alert was evicted to make room.
func (r *RingBuffer) InsertFront(alert entities.Alert) (evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.items)
	r.head = (r.head - 1 + capacity) % capacity
	r.items[r.head] = alert
	if r.size == capacity {
		return true
	}
	r.size++
	return false
}

// Recent returns up to limit alerts, newest first. The slice is a copy.
func (r *RingBuffer) Recent(limit int) []entities.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := min(max(limit, 0), r.size)
	out := make([]entities.Alert, n)
	capacity := len(r.items)
	for i := range n {
		out[i] = r.items[(r.head+i)%capacity]
	}
	return out
}

// Len returns the number of retained alerts.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the maximum number of retained alerts.
func (r *RingBuffer) Capacity() int {
	return len(r.items)
}
