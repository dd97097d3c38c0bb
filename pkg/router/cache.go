package router

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// decisionCache is a bounded TTL cache of final decisions keyed by
// normalized request text. Fallback decisions are never cached: the
// failure that produced them may be gone on the next request.
type decisionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	size    int
	now     func() time.Time
}

type cacheEntry struct {
	decision Decision
	storedAt time.Time
}

func newDecisionCache(ttl time.Duration, size int) *decisionCache {
	return &decisionCache{
		entries: make(map[string]cacheEntry, size),
		ttl:     ttl,
		size:    size,
		now:     time.Now,
	}
}

// cacheKey hashes the whitespace-normalized, lowercased text.
func cacheKey(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *decisionCache) get(text string) (Decision, bool) {
	key := cacheKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Decision{}, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return Decision{}, false
	}
	return entry.decision, true
}

func (c *decisionCache) put(text string, d Decision) {
	if d.Source == SourceFallback {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(text)
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.size {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{decision: d, storedAt: c.now()}
}

// evictOldestLocked drops the stalest entry. Callers hold c.mu.
func (c *decisionCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *decisionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
