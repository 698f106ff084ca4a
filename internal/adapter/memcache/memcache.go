// Package memcache is an in-process cache backend with per-entry expiry.
package memcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vertextoedge/movie-catalog/internal/port"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is a thread-safe map of byte values with TTL support
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

var _ port.CacheBackend = (*Cache)(nil)

// New creates an empty cache
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns a copy of the value for key. Expired entries are removed
// and reported as misses.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a copy of value until ttl elapses. A non-positive ttl is a no-op.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	v := make([]byte, len(value))
	copy(v, value)

	c.mu.Lock()
	c.entries[key] = entry{value: v, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete removes the keys
func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil
}

// DeletePrefix removes every key starting with prefix
func (c *Cache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed, nil
}

// PurgeExpired removes expired entries
func (c *Cache) PurgeExpired(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close drops all entries
func (c *Cache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}
