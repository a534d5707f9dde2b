package retrieval

import (
	"strconv"
	"sync"

	"github.com/mizan-legal/mizan/internal/domain"
)

// queryCache memoizes finished result lists per query shape. Bounded; once
// full it stops inserting rather than evicting. Entries are stored whole, so
// a cancelled query can never publish a partial list.
type queryCache struct {
	capacity int

	mu      sync.RWMutex
	entries map[string][]domain.Result
}

func newQueryCache(capacity int) *queryCache {
	return &queryCache{
		capacity: capacity,
		entries:  make(map[string][]domain.Result),
	}
}

// cacheKey canonicalizes one query shape.
func cacheKey(normalizedQuery string, topK int, threshold float64, filter domain.Filter, diverse bool) string {
	return normalizedQuery + "\x00" +
		strconv.Itoa(topK) + "\x00" +
		strconv.FormatFloat(threshold, 'g', -1, 64) + "\x00" +
		filter.Key() + "\x00" +
		strconv.FormatBool(diverse)
}

// get hands out a copy; callers may reorder or trim their result list without
// corrupting the entry for later hits.
func (c *queryCache) get(key string) ([]domain.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return append([]domain.Result(nil), results...), true
}

func (c *queryCache) put(key string, results []domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	if len(c.entries) >= c.capacity {
		return
	}
	// The caller keeps its slice; the cache owns a private copy.
	c.entries[key] = append([]domain.Result(nil), results...)
}

// invalidate drops every entry. Called whenever the corpus or embeddings
// change.
func (c *queryCache) invalidate() {
	c.mu.Lock()
	c.entries = make(map[string][]domain.Result)
	c.mu.Unlock()
}

func (c *queryCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
