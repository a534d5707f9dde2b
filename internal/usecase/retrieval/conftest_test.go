package retrieval

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mizan-legal/mizan/internal/domain"
	"github.com/mizan-legal/mizan/internal/embed"
	"github.com/mizan-legal/mizan/internal/repository/corpus"
)

// mockCorpus wraps the in-memory corpus and counts accessor calls.
type mockCorpus struct {
	*corpus.Mem
	listCalls int
	listErr   error
	metaErr   error
}

func newMockCorpus() *mockCorpus {
	return &mockCorpus{Mem: corpus.NewMem()}
}

func (m *mockCorpus) ListEmbedded(ctx context.Context, filter domain.Filter) ([]domain.Passage, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.Mem.ListEmbedded(ctx, filter)
}

func (m *mockCorpus) GetMetadata(ctx context.Context, id int64) (domain.Metadata, error) {
	if m.metaErr != nil {
		return domain.Metadata{}, m.metaErr
	}
	return m.Mem.GetMetadata(ctx, id)
}

// countingEmbedder counts Embed calls through to the real local backend.
type countingEmbedder struct {
	inner *embed.MeanPoolEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

// stubEmbedder returns handcrafted vectors per query text.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	vec, ok := s.vectors[text]
	if !ok {
		return domain.EmbeddingResult{}, domain.ErrModelUnavailable
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// failingEmbedder always reports the model as down.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, domain.ErrModelUnavailable
}

const testDim = 64

func newTestEmbedder(t *testing.T) *embed.MeanPoolEmbedder {
	t.Helper()
	e, err := embed.NewMeanPool(testDim, 1)
	if err != nil {
		t.Fatalf("NewMeanPool: %v", err)
	}
	t.Cleanup(e.Release)
	return e
}

func newTestService(t *testing.T, c CorpusAccessor, e Embedder, params Params) *Service {
	t.Helper()
	return New(c, e, params, zap.NewNop())
}

// seedPassage embeds content with the given embedder and stores the passage.
func seedPassage(
	t *testing.T, c *mockCorpus, e *embed.MeanPoolEmbedder,
	id int64, content string, meta domain.Metadata,
) {
	t.Helper()
	res, err := e.Embed(context.Background(), content)
	if err != nil {
		t.Fatalf("embed passage %d: %v", id, err)
	}
	p := domain.Passage{
		ID:        id,
		Content:   content,
		Embedding: res.Embedding,
		SourceRef: meta.SourceRef,
		CreatedAt: time.Now().Add(-365 * 24 * time.Hour),
	}
	meta.PassageID = id
	if err := c.Put(context.Background(), &p, &meta); err != nil {
		t.Fatalf("put passage %d: %v", id, err)
	}
}
