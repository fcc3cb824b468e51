package feed

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache holds the last successful extraction for a bounded time.
type Cache struct {
	mutex     sync.RWMutex
	items     []Item
	fetchedAt time.Time
	valid     bool

	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group
}

// NewCache returns an empty cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now}
}

// Get returns the cached items while they are fresh.
func (c *Cache) Get() ([]Item, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.valid || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.items, true
}

// Set stores items as the fresh value.
func (c *Cache) Set(items []Item) {
	c.mutex.Lock()
	c.items = items
	c.fetchedAt = c.now()
	c.valid = true
	c.mutex.Unlock()
}

// Purge drops the cached value so the next Load goes upstream.
func (c *Cache) Purge() {
	c.mutex.Lock()
	c.items = nil
	c.valid = false
	c.mutex.Unlock()
}

// Age reports how long ago the cached value was stored.
func (c *Cache) Age() (time.Duration, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.valid {
		return 0, false
	}
	return c.now().Sub(c.fetchedAt), true
}

// Load returns the fresh cached value, or calls fill once for all concurrent
// callers and caches its result when it succeeds. hit reports whether the
// value came from the cache. The shared fill is detached from the caller that
// started it, so one caller giving up does not fail the others; each caller
// still stops waiting when its own ctx is done.
func (c *Cache) Load(ctx context.Context, fill func(context.Context) ([]Item, error)) (items []Item, hit bool, err error) {
	if items, ok := c.Get(); ok {
		return items, true, nil
	}

	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("feed", func() (interface{}, error) {
		if items, ok := c.Get(); ok {
			return items, nil
		}
		items, err := fill(fillCtx)
		if err != nil {
			return nil, err
		}
		c.Set(items)
		return items, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]Item), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
