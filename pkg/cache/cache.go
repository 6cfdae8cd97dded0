// Package cache memoizes full search responses for a bounded window.
// Entries are evicted lazily on the access that finds them expired;
// nothing sweeps the store in the background.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/detra/semsearch/internal/models"
)

type key struct {
	query      string
	maxResults int
}

type entry struct {
	expiresAt time.Time
	response  models.SearchResponse
}

// TTLCache is an in-memory response cache shared across requests. Keys
// match exactly on normalized query text and the resolved max_results;
// a one-character difference is a miss.
type TTLCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	store   map[key]entry
	now     func() time.Time
}

func New(ttl time.Duration, maxSize int) *TTLCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &TTLCache{
		ttl:     ttl,
		maxSize: maxSize,
		store:   make(map[key]entry),
		now:     time.Now,
	}
}

// Key normalization: trimmed, lowercased query text.
func makeKey(query string, maxResults int) key {
	return key{query: strings.ToLower(strings.TrimSpace(query)), maxResults: maxResults}
}

// Get returns the cached response for an exact key, treating expired
// entries as misses and dropping them on that access.
func (c *TTLCache) Get(query string, maxResults int) (models.SearchResponse, bool) {
	k := makeKey(query, maxResults)

	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()

	if !ok {
		return models.SearchResponse{}, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Recheck under the write lock; a concurrent Put may have
		// refreshed the entry.
		if cur, ok := c.store[k]; ok && c.now().After(cur.expiresAt) {
			delete(c.store, k)
		}
		c.mu.Unlock()
		return models.SearchResponse{}, false
	}
	return e.response, true
}

// Put stores a response. When the cache is at capacity the entry
// expiring soonest is dropped to make room. Last writer for a key wins.
func (c *TTLCache) Put(query string, maxResults int, response models.SearchResponse) {
	k := makeKey(query, maxResults)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[k]; !exists && len(c.store) >= c.maxSize {
		var oldest key
		var oldestExpiry time.Time
		first := true
		for ck, ce := range c.store {
			if first || ce.expiresAt.Before(oldestExpiry) {
				oldest = ck
				oldestExpiry = ce.expiresAt
				first = false
			}
		}
		delete(c.store, oldest)
	}

	c.store[k] = entry{
		expiresAt: c.now().Add(c.ttl),
		response:  response,
	}
}

// Size returns the number of entries currently held, expired or not.
func (c *TTLCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
