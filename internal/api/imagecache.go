package api

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// imageCache keeps recently served images in memory under a byte budget.
// Images larger than maxItem, or that would push the total past maxTotal,
// are served from disk and never cached.
type imageCache struct {
	items    *cache.Cache
	maxTotal int64
	maxItem  int64

	mu    sync.Mutex // serializes put so replaced entries are uncounted once
	total atomic.Int64
}

// newImageCache returns nil when ttl or maxTotal is not positive. A
// non-positive maxItem only bounds items by maxTotal.
func newImageCache(ttl time.Duration, maxTotal, maxItem int64) *imageCache {
	if ttl <= 0 || maxTotal <= 0 {
		return nil
	}
	if maxItem <= 0 || maxItem > maxTotal {
		maxItem = maxTotal
	}
	c := &imageCache{
		items:    cache.New(ttl, 2*ttl),
		maxTotal: maxTotal,
		maxItem:  maxItem,
	}
	// Runs for Delete and for expired entries swept by the janitor.
	c.items.OnEvicted(func(_ string, v any) {
		c.total.Add(-int64(len(v.([]byte))))
	})
	return c
}

func (c *imageCache) get(name string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.items.Get(name)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// put stores data and reports whether it was cached.
func (c *imageCache) put(name string, data []byte) bool {
	if c == nil {
		return false
	}
	size := int64(len(data))
	if size > c.maxItem {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// An expired entry may still sit in the map; drop it so its bytes are
	// released before the budget check.
	c.items.Delete(name)
	if c.total.Load()+size > c.maxTotal {
		return false
	}
	c.items.Set(name, data, cache.DefaultExpiration)
	c.total.Add(size)
	return true
}

func (c *imageCache) size() int64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}
