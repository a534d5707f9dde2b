package ingest

import (
	"context"

	"github.com/mizan-legal/mizan/internal/domain"
)

// BatchEmbedder vectorizes a batch of passage texts in one call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// CorpusWriter persists passages together with their metadata.
type CorpusWriter interface {
	PutMulti(ctx context.Context, passages []domain.Passage, metas []domain.Metadata) error
}

// ChangeNotifier is told when stored passages changed, so readers can
// invalidate caches and rebuild indexes.
type ChangeNotifier interface {
	MarkCorpusChanged()
}
