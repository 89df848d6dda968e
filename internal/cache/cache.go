package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores opaque values by key. Get and Set treat backend failures as
// misses. Counters never expire and report failures, because callers use
// them to version what they cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	// Counter returns the current value of a counter, 0 if it was never incremented.
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// Memory is an in-process TTL cache. Expired entries are dropped when read
// and swept in bulk once every sweepEvery writes.
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	items    map[string]entry
	counters map[string]int64
	writes   int
	now      func() time.Time
}

type entry struct {
	val     []byte
	expires time.Time
}

const sweepEvery = 256

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Memory{
		ttl:      ttl,
		items:    make(map[string]entry),
		counters: make(map[string]int64),
		now:      time.Now,
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if !c.now().Before(e.expires) {
		delete(c.items, key)
		return nil, false
	}

	return e.val, true
}

func (c *Memory) Set(_ context.Context, key string, val []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.items[key] = entry{val: val, expires: now.Add(c.ttl)}

	c.writes++
	if c.writes%sweepEvery == 0 {
		for k, e := range c.items {
			if !now.Before(e.expires) {
				delete(c.items, k)
			}
		}
	}
}

func (c *Memory) Counter(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counters[key], nil
}

func (c *Memory) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters[key]++
	return c.counters[key], nil
}

func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}
