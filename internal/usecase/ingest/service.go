package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mizan-legal/mizan/internal/domain"
	"github.com/mizan-legal/mizan/internal/logger"
)

// DefaultBatchSize is the number of passages embedded per provider call.
const DefaultBatchSize = 64

// Entry is one pre-chunked legal passage ready for ingestion.
type Entry struct {
	ID           int64     `json:"id"`
	Content      string    `json:"content"`
	SourceRef    string    `json:"source_ref"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	LawName      string    `json:"law_name"`
	ArticleNo    string    `json:"article_no"`
	Jurisdiction string    `json:"jurisdiction"`
}

// Report summarizes one ingestion run.
type Report struct {
	Stored  int
	Skipped int
	Tokens  int
}

// Service embeds pre-chunked passages and writes them to the corpus.
type Service struct {
	corpus    CorpusWriter
	embed     BatchEmbedder
	notify    ChangeNotifier
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an ingestion service.
func New(corpus CorpusWriter, embed BatchEmbedder, notify ChangeNotifier, logger *zap.Logger) *Service {
	return &Service{
		corpus:    corpus,
		embed:     embed,
		notify:    notify,
		batchSize: DefaultBatchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// WithBatchSize configures how many passages are embedded per call.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// Ingest embeds and stores the given entries in batches. Entries with a
// non-positive ID or empty content are skipped, the rest of the run
// continues. The corpus change notification fires once at the end, after at
// least one passage was stored.
func (s *Service) Ingest(ctx context.Context, entries []Entry) (Report, error) {
	var report Report
	log := logger.FromContext(ctx, s.logger)

	valid := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ID <= 0 || strings.TrimSpace(e.Content) == "" {
			log.Warn("skipping invalid entry",
				zap.Int64("id", e.ID),
				zap.Int("content_len", len(e.Content)))
			report.Skipped++
			continue
		}
		valid = append(valid, e)
	}

	for start := 0; start < len(valid); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(start+s.batchSize, len(valid))
		stored, tokens, err := s.ingestBatch(ctx, valid[start:end])
		report.Stored += stored
		report.Tokens += tokens
		if err != nil {
			return report, err
		}
	}

	if report.Stored > 0 && s.notify != nil {
		s.notify.MarkCorpusChanged()
	}

	log.Info("ingestion finished",
		zap.Int("stored", report.Stored),
		zap.Int("skipped", report.Skipped),
		zap.Int("tokens", report.Tokens))
	return report, nil
}

func (s *Service) ingestBatch(ctx context.Context, batch []Entry) (int, int, error) {
	texts := make([]string, len(batch))
	for i, e := range batch {
		texts[i] = e.Content
	}

	res, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("vectorize batch: %w", err)
	}
	if len(res.Embeddings) != len(batch) {
		return 0, 0, fmt.Errorf("vectorize batch: got %d embeddings for %d texts",
			len(res.Embeddings), len(batch))
	}

	passages := make([]domain.Passage, len(batch))
	metas := make([]domain.Metadata, len(batch))
	for i, e := range batch {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.now()
		}
		passages[i] = domain.Passage{
			ID:        e.ID,
			Content:   e.Content,
			Embedding: res.Embeddings[i],
			SourceRef: e.SourceRef,
			Verified:  e.Verified,
			CreatedAt: createdAt,
		}
		metas[i] = domain.Metadata{
			PassageID:    e.ID,
			LawName:      e.LawName,
			ArticleNo:    e.ArticleNo,
			SourceRef:    e.SourceRef,
			Jurisdiction: e.Jurisdiction,
		}
	}

	if err := s.corpus.PutMulti(ctx, passages, metas); err != nil {
		return 0, 0, fmt.Errorf("store batch: %w", err)
	}
	return len(batch), res.TotalTokens, nil
}
