// Package index implements the flat inner-product fast path over passage
// embeddings. An index is immutable after Build; rebuilds produce a new value
// that the caller publishes atomically.
package index

import (
	"container/heap"
	"sort"

	"github.com/mizan-legal/mizan/internal/domain"
)

// Hit is a single index match.
type Hit struct {
	PassageID int64
	Score     float64
}

// Flat holds all embeddings of one dimension in a contiguous block and scans
// them exactly. Safe for concurrent readers.
type Flat struct {
	dim      int
	ids      []int64
	vectors  []float32 // len(ids) * dim, row-major
	excluded int
}

// Build packs the embeddings of the given passages. The dimension is taken
// from the first non-empty embedding; passages with a different dimension are
// excluded and counted. Build cost is O(N*D).
func Build(passages []domain.Passage) *Flat {
	dim := 0
	for i := range passages {
		if len(passages[i].Embedding) > 0 {
			dim = len(passages[i].Embedding)
			break
		}
	}

	f := &Flat{dim: dim}
	if dim == 0 {
		return f
	}

	f.ids = make([]int64, 0, len(passages))
	f.vectors = make([]float32, 0, len(passages)*dim)
	for i := range passages {
		if len(passages[i].Embedding) != dim {
			f.excluded++
			continue
		}
		f.ids = append(f.ids, passages[i].ID)
		f.vectors = append(f.vectors, passages[i].Embedding...)
	}
	return f
}

// Dim returns the embedding dimension, 0 for an empty index.
func (f *Flat) Dim() int { return f.dim }

// Len returns the number of indexed passages.
func (f *Flat) Len() int { return len(f.ids) }

// Excluded returns how many passages were dropped for dimension mismatch.
func (f *Flat) Excluded() int { return f.excluded }

// Search returns the topK passages by inner product with the query, scores
// descending, ties by ascending passage id. Both sides are expected to be
// unit length, making the score a cosine. A dimension mismatch between query
// and index is a caller error.
func (f *Flat) Search(query []float32, topK int) ([]Hit, error) {
	if f.Len() == 0 || topK <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, domain.NewDimensionMismatch(f.dim, len(query))
	}

	if topK > f.Len() {
		topK = f.Len()
	}

	// Fixed-size min-heap of the best topK seen so far.
	h := make(hitHeap, 0, topK)
	for row := 0; row < f.Len(); row++ {
		base := row * f.dim
		var dot float64
		for i, q := range query {
			dot += float64(q) * float64(f.vectors[base+i])
		}
		hit := Hit{PassageID: f.ids[row], Score: dot}
		if len(h) < topK {
			heap.Push(&h, hit)
		} else if hitLess(h[0], hit) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	hits := []Hit(h)
	sort.Slice(hits, func(i, j int) bool { return hitLess(hits[j], hits[i]) })
	return hits, nil
}

// hitLess orders hits worst-first: lower score first, equal scores put the
// higher id first so the ascending-id hit survives in the heap.
func hitLess(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.PassageID > b.PassageID
}

type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return hitLess(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
