package resultcache

import (
	"context"
	"sync"
	"time"
)

type memoryCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]Outcome
}

// NewMemory builds the default, in-process result cache backend, grounded
// on the teacher's map+mutex decision cache.
func NewMemory(ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &memoryCache{ttl: ttl, entries: make(map[string]Outcome)}
}

func (c *memoryCache) Lookup(_ context.Context, key string) (Outcome, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	outcome, ok := c.entries[key]
	if !ok {
		return Outcome{}, false, nil
	}
	if time.Now().After(outcome.ExpiresAt) {
		delete(c.entries, key)
		return Outcome{}, false, nil
	}
	return outcome, true, nil
}

func (c *memoryCache) Store(_ context.Context, key string, outcome Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if outcome.StoredAt.IsZero() {
		outcome.StoredAt = time.Now().UTC()
	}
	if outcome.ExpiresAt.IsZero() {
		outcome.ExpiresAt = outcome.StoredAt.Add(c.ttl)
	}
	c.entries[key] = outcome
	return nil
}

func (c *memoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Outcome)
	return nil
}

func (c *memoryCache) Close(context.Context) error { return nil }
