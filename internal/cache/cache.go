// Package cache provides a thread-safe in-memory TTL cache keyed by logical
// resource. TTLs are derived from the resource class encoded in the key
// prefix; entries are evicted lazily on read and by a periodic sweep.
//
// The cache is single-process and not durable across restarts.
package cache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// TTLs per resource class. Quotes are the hot path and default; slower-moving
// resources keep their data longer.
const (
	TTLQuote        = 5 * time.Minute
	TTLNews         = 15 * time.Minute
	TTLEarnings     = 1 * time.Hour
	TTLDividends    = 2 * time.Hour
	TTLFundamentals = 4 * time.Hour
)

// Item is one cached value with its lifetime bounds.
type Item struct {
	Data      interface{}
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the item is past its expiry at the given time.
func (i Item) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Cache is a mutex-guarded map of resource keys to cached items.
type Cache struct {
	mu    sync.RWMutex
	items map[string]Item
	now   func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		items: make(map[string]Item),
		now:   time.Now,
	}
}

// TTLForKey returns the TTL of the resource class encoded in the key prefix
// ("earnings:AAPL", "news:TSLA", ...). Unrecognized prefixes get the quote
// default.
func TTLForKey(key string) time.Duration {
	class, _, found := strings.Cut(key, ":")
	if !found {
		return TTLQuote
	}
	switch class {
	case "news":
		return TTLNews
	case "earnings":
		return TTLEarnings
	case "dividends":
		return TTLDividends
	case "fundamentals":
		return TTLFundamentals
	default:
		return TTLQuote
	}
}

// Get returns the cached value for key if present and unexpired. Expired
// entries are removed on the spot.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if item.Expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: another goroutine may have refreshed it.
		if cur, ok := c.items[key]; ok && cur.Expired(c.now()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return item.Data, true
}

// Set stores data under key. A zero or negative ttl falls back to the
// key-derived resource-class TTL.
func (c *Cache) Set(key string, data interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = TTLForKey(key)
	}
	now := c.now()
	c.mu.Lock()
	c.items[key] = Item{
		Data:      data,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	c.mu.Unlock()
}

// GetOrSet returns the cached value for key, or invokes fetch, stores the
// result, and returns it. An optional ttl overrides the resource-class TTL.
// Fetch errors are returned without caching anything.
func (c *Cache) GetOrSet(key string, fetch func() (interface{}, error), ttl ...time.Duration) (interface{}, error) {
	if data, ok := c.Get(key); ok {
		return data, nil
	}

	data, err := fetch()
	if err != nil {
		return nil, err
	}

	var override time.Duration
	if len(ttl) > 0 {
		override = ttl[0]
	}
	c.Set(key, data, override)
	return data, nil
}

// Invalidate removes one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// InvalidatePattern removes every key matching the regular expression and
// returns how many entries were dropped.
func (c *Cache) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.items {
		if re.MatchString(key) {
			delete(c.items, key)
			removed++
		}
	}
	return removed, nil
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, item := range c.items {
		if item.Expired(now) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is canceled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
