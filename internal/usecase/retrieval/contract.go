package retrieval

import (
	"context"

	"github.com/mizan-legal/mizan/internal/domain"
)

// CorpusAccessor yields candidate passages and enrichment metadata. The
// retrieval core only reads from it.
type CorpusAccessor interface {
	ListEmbedded(ctx context.Context, filter domain.Filter) ([]domain.Passage, error)
	GetPassages(ctx context.Context, ids []int64) ([]domain.Passage, error)
	GetMetadata(ctx context.Context, id int64) (domain.Metadata, error)
}

// IndexStore persists the serialized fast-path index across processes.
// LoadIndexSnapshot returns nil when no snapshot has been saved.
type IndexStore interface {
	SaveIndexSnapshot(ctx context.Context, data []byte) error
	LoadIndexSnapshot(ctx context.Context) ([]byte, error)
	DropIndexSnapshot(ctx context.Context) error
}

// Embedder vectorizes query text into a unit-length embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
