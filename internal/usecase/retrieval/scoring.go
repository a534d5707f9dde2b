package retrieval

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mizan-legal/mizan/internal/arabic"
	"github.com/mizan-legal/mizan/internal/domain"
	"github.com/mizan-legal/mizan/internal/metrics"
)

// normEpsilon guards the defensive renormalization against zero vectors.
const normEpsilon = 1e-12

// scored pairs a candidate passage with its scoring breakdown. The embedding
// is kept for the MMR redundancy term.
type scored struct {
	passage *domain.Passage
	cand    domain.ScoredCandidate
}

// cosine computes the cosine similarity of two vectors. Inputs are expected
// to be unit length already; renormalization is defensive only.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	norm := math.Sqrt(na) * math.Sqrt(nb)
	if norm < normEpsilon {
		return 0
	}
	return dot / norm
}

// jaccard computes token-set overlap: |Q ∩ C| / |Q ∪ C|, 0 for an empty
// query.
func jaccard(query, cand map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	var shared int
	for t := range query {
		if _, ok := cand[t]; ok {
			shared++
		}
	}
	union := len(query) + len(cand) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// scoreCandidates blends cosine and lexical similarity for every candidate.
// Candidates with a missing or dimension-mismatched embedding are skipped and
// logged; a skipped candidate never appears with a stand-in score.
func (s *Service) scoreCandidates(
	queryVec []float32, queryTokens map[string]struct{},
	candidates []domain.Passage, now time.Time,
) []scored {
	out := make([]scored, 0, len(candidates))
	for i := range candidates {
		p := &candidates[i]

		if len(p.Embedding) == 0 {
			s.logger.Warn("Skipping candidate without embedding", zap.Int64("id", p.ID))
			metrics.SearchSkippedCandidatesTotal.WithLabelValues("empty_embedding").Inc()
			continue
		}
		if len(p.Embedding) != len(queryVec) {
			s.logger.Warn("Skipping candidate with mismatched embedding",
				zap.Int64("id", p.ID),
				zap.Int("want", len(queryVec)),
				zap.Int("got", len(p.Embedding)),
			)
			metrics.SearchSkippedCandidatesTotal.WithLabelValues("dim_mismatch").Inc()
			continue
		}

		cos := cosine(queryVec, p.Embedding)
		lex := jaccard(queryTokens, arabic.TokenSet(p.Content))
		blended := s.params.Alpha*cos + (1-s.params.Alpha)*lex

		if p.Verified {
			blended *= s.params.VerifiedBoost
		}
		if !p.CreatedAt.IsZero() && now.Sub(p.CreatedAt) <= s.params.RecencyWindow {
			blended *= s.params.RecencyBoost
		}
		if blended > 1 {
			blended = 1
		}

		out = append(out, scored{
			passage: p,
			cand: domain.ScoredCandidate{
				PassageID: p.ID,
				Cosine:    cos,
				Lexical:   lex,
				Blended:   blended,
			},
		})
	}
	return out
}
