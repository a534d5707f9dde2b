package embcache

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mizan-legal/mizan/internal/domain"
)

func TestEmbedCachesSecondCall(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.1, 0.2},
		TotalTokens: 7,
	}}
	ce := newTestCachedEmbedder(t, inner, 10)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "نص")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := ce.Embed(ctx, "نص")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Fatalf("hit returned different vector at %d", i)
		}
	}
	// Cache hit consumed no tokens.
	if second.TotalTokens != 0 {
		t.Errorf("hit TotalTokens = %d, want 0", second.TotalTokens)
	}
}

func TestEmbedErrorNotCached(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrModelUnavailable}
	ce := newTestCachedEmbedder(t, inner, 10)
	ctx := context.Background()

	if _, err := ce.Embed(ctx, "نص"); !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if ce.Len() != 0 {
		t.Errorf("failed embed left %d cache entries", ce.Len())
	}

	// Backend recovers; the next call must reach it.
	inner.err = nil
	inner.result = domain.EmbeddingResult{Embedding: []float32{1}}
	if _, err := ce.Embed(ctx, "نص"); err != nil {
		t.Fatalf("Embed after recovery: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner called %d times, want 2", inner.calls)
	}
}

func TestCacheStopsInsertingWhenFull(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce := newTestCachedEmbedder(t, inner, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := ce.Embed(ctx, fmt.Sprintf("text-%d", i)); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}

	if ce.Len() != 3 {
		t.Errorf("cache size = %d, want 3 (capped)", ce.Len())
	}

	// Entries inserted before the cap still hit.
	inner.calls = 0
	if _, err := ce.Embed(ctx, "text-0"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("expected hit for text-0, inner called %d times", inner.calls)
	}
}

func TestBatchEmbedHitsCache(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.5},
		TotalTokens: 4,
	}}
	ce := newTestCachedEmbedder(t, inner, 10)
	ctx := context.Background()

	res, err := ce.BatchEmbed(ctx, []string{"نص", "اخر", "نص"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("got %d embeddings, want 3", len(res.Embeddings))
	}
	// The repeated text must be served from cache.
	if inner.calls != 2 {
		t.Errorf("inner called %d times, want 2", inner.calls)
	}
	if res.TotalTokens != 8 {
		t.Errorf("TotalTokens = %d, want 8", res.TotalTokens)
	}
}

func TestInvalidate(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce := newTestCachedEmbedder(t, inner, 10)
	ctx := context.Background()

	_, _ = ce.Embed(ctx, "نص")
	if ce.Len() != 1 {
		t.Fatalf("cache size = %d, want 1", ce.Len())
	}

	ce.Invalidate()
	if ce.Len() != 0 {
		t.Errorf("cache size after Invalidate = %d, want 0", ce.Len())
	}
}
