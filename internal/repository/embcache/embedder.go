// Package embcache decorates an Embedder with a bounded in-process cache.
package embcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mizan-legal/mizan/internal/domain"
)

// DefaultCapacity bounds the cache when no explicit capacity is given.
const DefaultCapacity = 10000

// CachedEmbedder caches embeddings keyed by the exact input string. Once the
// capacity is reached new entries are not inserted; existing entries keep
// serving hits. Entries are written whole or not at all, so a cancelled query
// can never leave a partial vector behind.
type CachedEmbedder struct {
	inner      domain.Embedder
	capacity   int
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	mu      sync.RWMutex
	entries map[string][]float32
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	capacity int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		capacity:   capacity,
		cacheTotal: cacheTotal,
		logger:     logger,
		entries:    make(map[string][]float32),
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// The cache is an optimization only: same input yields the same vector with
// or without a hit.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if vec, ok := c.get(text); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.put(text, result.Embedding)
	return result, nil
}

// BatchEmbed embeds through the cache one text at a time, so repeated texts
// still hit.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, c, texts)
}

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Invalidate drops all cached entries.
func (c *CachedEmbedder) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string][]float32)
	c.mu.Unlock()
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) get(text string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.entries[text]
	return vec, ok
}

func (c *CachedEmbedder) put(text string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[text]; ok {
		return
	}
	if len(c.entries) >= c.capacity {
		// Full: stop inserting, never evict.
		return
	}
	c.entries[text] = vec
}
