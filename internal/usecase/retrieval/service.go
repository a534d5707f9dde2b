// Package retrieval implements the hybrid semantic retrieval engine: dense
// cosine similarity blended with lexical overlap, boosted, thresholded, and
// diversified with Maximal Marginal Relevance.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mizan-legal/mizan/internal/arabic"
	"github.com/mizan-legal/mizan/internal/domain"
	"github.com/mizan-legal/mizan/internal/index"
	"github.com/mizan-legal/mizan/internal/logger"
	"github.com/mizan-legal/mizan/internal/metrics"
)

// SearchOptions shapes one query.
type SearchOptions struct {
	// TopK is the number of results to return; 0 means the configured default.
	TopK int
	// Threshold is the minimum acceptable blended score in [0, 1].
	Threshold float64
	Filter    domain.Filter
	// Diverse selects results with MMR as the primary strategy instead of
	// plain ranking.
	Diverse bool
}

// builtIndex couples a fast-path index with the passage snapshot it was built
// from. Published atomically so readers never observe a half-built index, and
// never mix ids from one build with vectors from another. byID is nil for an
// index restored from a persisted snapshot: hits are then fetched from the
// corpus.
type builtIndex struct {
	flat *index.Flat
	byID map[int64]domain.Passage
	rev  uint64
}

// Service is the retrieval orchestrator. Construct with New, optionally call
// RebuildIndex to enable the fast path, and Close when done.
type Service struct {
	corpus    CorpusAccessor
	embed     Embedder
	params    Params
	logger    *zap.Logger
	cache     *queryCache
	snapshots IndexStore

	// rev counts corpus changes; an index built at an older rev is stale and
	// the scan path is used until the next rebuild.
	rev atomic.Uint64
	idx atomic.Pointer[builtIndex]

	now func() time.Time
}

// New creates a retrieval service.
func New(corpus CorpusAccessor, embed Embedder, params Params, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := params.withDefaults()
	return &Service{
		corpus: corpus,
		embed:  embed,
		params: p,
		logger: logger,
		cache:  newQueryCache(p.QueryCacheSize),
		now:    time.Now,
	}
}

// WithIndexStore enables index snapshot persistence: RebuildIndex saves the
// built index and LoadIndex restores it on startup.
func (s *Service) WithIndexStore(st IndexStore) *Service {
	s.snapshots = st
	return s
}

// Params returns the effective parameters.
func (s *Service) Params() Params { return s.params }

// log prefers the request-scoped logger attached to the context.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}

// Search runs one query through the full pipeline and returns results ordered
// by blended score descending, ties by ascending passage id.
//
// When no candidate reaches the threshold, the top candidates are diversified
// with MMR and returned anyway: as long as the corpus holds anything at all,
// the caller gets a non-empty ranked list rather than nothing.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]domain.Result, error) {
	start := s.now()

	if err := opts.Filter.Validate(); err != nil {
		metrics.SearchQueriesTotal.WithLabelValues("scan", "error").Inc()
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = s.params.DefaultTopK
	}

	key := cacheKey(arabic.Normalize(query), opts.TopK, opts.Threshold, opts.Filter, opts.Diverse)
	if results, ok := s.cache.get(key); ok {
		metrics.SearchQueriesTotal.WithLabelValues("cache", "ok").Inc()
		return results, nil
	}

	embRes, err := s.embed.Embed(ctx, query)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues("scan", "error").Inc()
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	queryVec := embRes.Embedding
	queryTokens := arabic.TokenSet(query)

	candidates, path, err := s.candidates(ctx, queryVec, opts)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(path, "error").Inc()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scoredCands := s.scoreCandidates(queryVec, queryTokens, candidates, s.now())

	selected := s.selectResults(queryVec, scoredCands, opts)

	results := s.enrich(ctx, selected)

	s.cache.put(key, results)
	metrics.SearchQueriesTotal.WithLabelValues(path, "ok").Inc()
	metrics.SearchDuration.Observe(s.now().Sub(start).Seconds())
	return results, nil
}

// candidates obtains the scoring pool, preferring the fast-path index when it
// is present, current, and able to honor the filter.
func (s *Service) candidates(
	ctx context.Context, queryVec []float32, opts SearchOptions,
) ([]domain.Passage, string, error) {
	cur := s.idx.Load()
	// The index snapshot has no jurisdiction column, so those queries scan.
	indexable := cur != nil && cur.rev == s.rev.Load() &&
		cur.flat.Len() > 0 && opts.Filter.Jurisdiction == ""

	if indexable {
		poolK := opts.TopK
		if poolK < s.params.FallbackPoolSize {
			poolK = s.params.FallbackPoolSize
		}
		if opts.Filter.SourceID != 0 {
			// Fetch a superset; the filter discards part of the shortlist.
			poolK *= 3
		}

		hits, err := cur.flat.Search(queryVec, poolK)
		if err != nil {
			// Query/index dimension disagreement means ingestion and query
			// embedders diverged. Fall back to the scan path, which detects
			// it per candidate.
			s.log(ctx).Warn("Fast-path index unusable for query", zap.Error(err))
		} else {
			shortlist, err := s.hitPassages(ctx, cur, hits)
			if err != nil {
				s.log(ctx).Warn("Shortlist fetch failed, scanning", zap.Error(err))
				return s.scanCandidates(ctx, opts)
			}
			pool := make([]domain.Passage, 0, len(shortlist))
			for _, p := range shortlist {
				if opts.Filter.SourceID != 0 && !opts.Filter.Matches(p.SourceRef, "") {
					continue
				}
				pool = append(pool, p)
			}
			// A filtered shortlist can come up short; widen to a full scan
			// rather than silently returning fewer results.
			if !opts.Filter.IsEmpty() && len(pool) < opts.TopK && cur.flat.Len() > len(hits) {
				return s.scanCandidates(ctx, opts)
			}
			return pool, "index", nil
		}
	}

	return s.scanCandidates(ctx, opts)
}

// hitPassages resolves index hits to full passages, from the in-process build
// snapshot when present, otherwise from the corpus in one pipelined fetch.
func (s *Service) hitPassages(ctx context.Context, cur *builtIndex, hits []index.Hit) ([]domain.Passage, error) {
	if cur.byID != nil {
		out := make([]domain.Passage, 0, len(hits))
		for _, hit := range hits {
			if p, ok := cur.byID[hit.PassageID]; ok {
				out = append(out, p)
			}
		}
		return out, nil
	}

	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.PassageID
	}
	return s.corpus.GetPassages(ctx, ids)
}

func (s *Service) scanCandidates(ctx context.Context, opts SearchOptions) ([]domain.Passage, string, error) {
	passages, err := s.corpus.ListEmbedded(ctx, opts.Filter)
	if err != nil {
		return nil, "scan", fmt.Errorf("list passages: %w", err)
	}
	return passages, "scan", nil
}

// selectResults applies the threshold rule or MMR diversification.
func (s *Service) selectResults(queryVec []float32, cands []scored, opts SearchOptions) []scored {
	if len(cands) == 0 {
		return nil
	}

	if opts.Diverse {
		return s.diversify(queryVec, cands, opts.TopK)
	}

	meeting := make([]scored, 0, len(cands))
	for _, c := range cands {
		if c.cand.Blended >= opts.Threshold {
			meeting = append(meeting, c)
		}
	}

	if len(meeting) == 0 {
		// Nothing clears the threshold; return the best diverse slice of
		// what exists instead of an empty list.
		metrics.SearchFallbacksTotal.Inc()
		return s.diversify(queryVec, cands, opts.TopK)
	}

	sortByBlended(meeting)
	if len(meeting) > opts.TopK {
		meeting = meeting[:opts.TopK]
	}
	return meeting
}

// diversify takes the strongest FallbackPoolSize candidates and MMR-selects
// k of them.
func (s *Service) diversify(queryVec []float32, cands []scored, k int) []scored {
	pool := append([]scored(nil), cands...)
	sortByBlended(pool)
	if len(pool) > s.params.FallbackPoolSize {
		pool = pool[:s.params.FallbackPoolSize]
	}

	vectors := make([][]float32, len(pool))
	for i, c := range pool {
		vectors[i] = c.passage.Embedding
	}

	picked := selectDiverse(queryVec, vectors, k, s.params.MMRLambda)
	out := make([]scored, 0, len(picked))
	for _, i := range picked {
		out = append(out, pool[i])
	}
	sortByBlended(out)
	return out
}

// enrich attaches source metadata. A failed lookup keeps the result with
// empty metadata; dropping it would silently truncate the list.
func (s *Service) enrich(ctx context.Context, selected []scored) []domain.Result {
	results := make([]domain.Result, 0, len(selected))
	for _, c := range selected {
		meta, err := s.corpus.GetMetadata(ctx, c.passage.ID)
		if err != nil {
			s.log(ctx).Warn("Metadata lookup failed", zap.Int64("id", c.passage.ID), zap.Error(err))
			metrics.SearchSkippedCandidatesTotal.WithLabelValues("metadata").Inc()
			meta = domain.Metadata{PassageID: c.passage.ID}
		}
		results = append(results, domain.Result{
			PassageID: c.passage.ID,
			Content:   c.passage.Content,
			Score:     c.cand.Blended,
			Metadata:  meta,
		})
	}
	return results
}

// RebuildIndex lists the full corpus, builds a fresh flat index, and swaps it
// in. Concurrent queries keep using the previous index until the swap. With an
// IndexStore configured the built index is persisted as well, so the next
// process can restore it with LoadIndex.
func (s *Service) RebuildIndex(ctx context.Context) error {
	rev := s.rev.Load()

	passages, err := s.corpus.ListEmbedded(ctx, domain.Filter{})
	if err != nil {
		return fmt.Errorf("list passages for index: %w", err)
	}

	flat := index.Build(passages)
	if flat.Excluded() > 0 {
		s.log(ctx).Warn("Excluded passages from fast-path index",
			zap.Int("excluded", flat.Excluded()),
			zap.Int("indexed", flat.Len()),
		)
	}

	byID := make(map[int64]domain.Passage, len(passages))
	for _, p := range passages {
		byID[p.ID] = p
	}

	s.idx.Store(&builtIndex{flat: flat, byID: byID, rev: rev})
	s.cache.invalidate()

	if s.snapshots != nil {
		if flat.Len() == 0 {
			if err := s.snapshots.DropIndexSnapshot(ctx); err != nil {
				return fmt.Errorf("drop index snapshot: %w", err)
			}
		} else if err := s.snapshots.SaveIndexSnapshot(ctx, flat.Snapshot()); err != nil {
			return fmt.Errorf("persist index snapshot: %w", err)
		}
	}

	metrics.IndexRebuildsTotal.Inc()
	metrics.IndexSize.Set(float64(flat.Len()))
	s.log(ctx).Info("Rebuilt fast-path index",
		zap.Int("passages", flat.Len()),
		zap.Int("dimension", flat.Dim()),
	)
	return nil
}

// LoadIndex restores the fast-path index from a persisted snapshot. A missing
// snapshot is not an error; a corrupt one is logged and ignored, leaving the
// scan path in effect until the next rebuild.
func (s *Service) LoadIndex(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}

	data, err := s.snapshots.LoadIndexSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load index snapshot: %w", err)
	}
	if data == nil {
		return nil
	}

	flat, err := index.FromSnapshot(data)
	if err != nil {
		s.log(ctx).Warn("Ignoring corrupt index snapshot", zap.Error(err))
		return nil
	}

	s.idx.Store(&builtIndex{flat: flat, rev: s.rev.Load()})
	metrics.IndexSize.Set(float64(flat.Len()))
	s.log(ctx).Info("Restored fast-path index from snapshot",
		zap.Int("passages", flat.Len()),
		zap.Int("dimension", flat.Dim()),
	)
	return nil
}

// MarkCorpusChanged invalidates the query cache and marks the current index
// stale. Queries fall back to the scan path until RebuildIndex runs.
func (s *Service) MarkCorpusChanged() {
	s.rev.Add(1)
	s.cache.invalidate()
}

// Close releases the index and cached results.
func (s *Service) Close() {
	s.idx.Store(nil)
	s.cache.invalidate()
}

// sortByBlended orders by blended score descending, ties by ascending id.
func sortByBlended(cands []scored) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].cand.Blended != cands[j].cand.Blended {
			return cands[i].cand.Blended > cands[j].cand.Blended
		}
		return cands[i].cand.PassageID < cands[j].cand.PassageID
	})
}
