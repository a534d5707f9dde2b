package ingest

import (
	"context"

	"github.com/mizan-legal/mizan/internal/domain"
)

// mockWriter records every PutMulti call.
type mockWriter struct {
	passages []domain.Passage
	metas    []domain.Metadata
	calls    int
	err      error
}

func (m *mockWriter) PutMulti(_ context.Context, passages []domain.Passage, metas []domain.Metadata) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.passages = append(m.passages, passages...)
	m.metas = append(m.metas, metas...)
	return nil
}

// mockBatchEmbedder returns a fixed unit vector per text and counts calls.
type mockBatchEmbedder struct {
	calls int
	err   error
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{1, 0, 0}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts) * 3}, nil
}

// mockNotifier counts corpus change notifications.
type mockNotifier struct {
	calls int
}

func (m *mockNotifier) MarkCorpusChanged() { m.calls++ }
