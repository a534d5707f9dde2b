// Package embed provides the local deterministic embedding backend.
package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/mizan-legal/mizan/internal/arabic"
	"github.com/mizan-legal/mizan/internal/domain"
)

// Compile-time checks.
var (
	_ domain.Embedder      = (*MeanPoolEmbedder)(nil)
	_ domain.BatchEmbedder = (*MeanPoolEmbedder)(nil)
)

// MeanPoolEmbedder maps each token to a pseudo-random unit direction seeded by
// the token's 64-bit hash, mean-pools the token vectors, and L2-normalizes the
// result. It is fully deterministic, needs no network or model files, and
// keeps exact token overlap aligned between the semantic and lexical terms.
type MeanPoolEmbedder struct {
	dim  int
	pool *ants.Pool
}

// NewMeanPool creates a local embedder of the given dimension.
// poolSize bounds batch concurrency; 0 means NumCPU/2 with a minimum of 1.
func NewMeanPool(dim, poolSize int) (*MeanPoolEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if poolSize <= 0 {
		poolSize = runtime.NumCPU() / 2
		if poolSize < 1 {
			poolSize = 1
		}
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &MeanPoolEmbedder{dim: dim, pool: pool}, nil
}

// Dim returns the embedding dimension.
func (e *MeanPoolEmbedder) Dim() int { return e.dim }

// Release frees the worker pool.
func (e *MeanPoolEmbedder) Release() { e.pool.Release() }

// Embed implements domain.Embedder. Token usage is zero for the local backend.
func (e *MeanPoolEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}

	tokens := arabic.Tokenize(text)
	if len(tokens) == 0 {
		// Content-free input still embeds to a fixed direction so repeated
		// calls stay deterministic.
		tokens = []string{""}
	}

	acc := make([]float64, e.dim)
	buf := make([]float64, e.dim)
	for _, tok := range tokens {
		tokenVector(tok, buf)
		for i, v := range buf {
			acc[i] += v
		}
	}

	inv := 1.0 / float64(len(tokens))
	vec := make([]float32, e.dim)
	var norm float64
	for i, v := range acc {
		v *= inv
		acc[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}

	return domain.EmbeddingResult{Embedding: vec}, nil
}

// BatchEmbed embeds texts concurrently on the worker pool. The result order
// matches the input order.
func (e *MeanPoolEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))

	var wg sync.WaitGroup
	errs := make([]error, len(texts))
	for i, text := range texts {
		i, text := i, text
		wg.Add(1)
		if err := e.pool.Submit(func() {
			defer wg.Done()
			res, err := e.Embed(ctx, text)
			if err != nil {
				errs[i] = err
				return
			}
			embeddings[i] = res.Embedding
		}); err != nil {
			wg.Done()
			return domain.BatchEmbeddingResult{}, fmt.Errorf("submit embed job: %w", err)
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed [%d]: %w", i, err)
		}
	}

	return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
}

// tokenVector fills buf with the token's pseudo-random direction in [-1, 1).
func tokenVector(token string, buf []float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	state := h.Sum64()
	for i := range buf {
		buf[i] = unitFloat(splitmix64(&state))
	}
}

// splitmix64 is the SplitMix64 generator step.
func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// unitFloat maps a uint64 to [-1, 1).
func unitFloat(v uint64) float64 {
	return float64(v>>11)/float64(1<<52) - 1
}
