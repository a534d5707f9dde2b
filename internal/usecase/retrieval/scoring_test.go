package retrieval

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mizan-legal/mizan/internal/arabic"
	"github.com/mizan-legal/mizan/internal/domain"
)

func TestCosineBounds(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{-1, 0, 0},
		{0.577, 0.577, 0.577},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			got := cosine(a, b)
			if got < -1-1e-9 || got > 1+1e-9 {
				t.Errorf("cosine(%v, %v) = %v out of [-1, 1]", a, b, got)
			}
		}
	}

	if got := cosine(vectors[0], vectors[0]); math.Abs(got-1) > 1e-4 {
		t.Errorf("cosine of identical vectors = %v, want 1.0", got)
	}
	if got := cosine(vectors[0], vectors[2]); math.Abs(got+1) > 1e-4 {
		t.Errorf("cosine of opposite vectors = %v, want -1.0", got)
	}
}

func TestCosineDefensiveNormalization(t *testing.T) {
	// Non-unit inputs must still land on the true cosine.
	if got := cosine([]float32{3, 0}, []float32{7, 0}); math.Abs(got-1) > 1e-6 {
		t.Errorf("cosine of parallel non-unit vectors = %v, want 1.0", got)
	}
	// Zero vector yields 0, not NaN.
	if got := cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("cosine with zero vector = %v, want 0", got)
	}
	// Length disagreement yields 0 at this level; callers skip such
	// candidates before reaching here.
	if got := cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("cosine with length mismatch = %v, want 0", got)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		cand   string
		want   float64
		approx bool
	}{
		{"identical", "عقوبة تزوير", "عقوبة تزوير", 1, false},
		{"disjoint", "عقوبة تزوير", "تسجيل علامة", 0, false},
		{"half overlap", "عقوبة تزوير", "عقوبة تقليد تزييف", 0.25, false},
		{"empty query", "", "عقوبة", 0, false},
		{"empty candidate", "عقوبة", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jaccard(arabic.TokenSet(tt.query), arabic.TokenSet(tt.cand))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("jaccard = %v, want %v", got, tt.want)
			}
		})
	}
}

func scoreOne(t *testing.T, s *Service, queryVec []float32, queryText string, p domain.Passage, now time.Time) []scored {
	t.Helper()
	return s.scoreCandidates(queryVec, arabic.TokenSet(queryText), []domain.Passage{p}, now)
}

func newScoringService(t *testing.T, params Params) *Service {
	t.Helper()
	return New(newMockCorpus(), failingEmbedder{}, params, zap.NewNop())
}

func TestBlendMonotonicity(t *testing.T) {
	s := newScoringService(t, Params{})
	now := time.Now()
	query := []float32{1, 0}
	queryText := "عقوبة تزوير الطوابع"

	// Fix the lexical term, increase cosine.
	lowCos := scoreOne(t, s, query, queryText, domain.Passage{
		ID: 1, Content: "عقوبة تزوير الطوابع", Embedding: []float32{0, 1},
	}, now)
	highCos := scoreOne(t, s, query, queryText, domain.Passage{
		ID: 1, Content: "عقوبة تزوير الطوابع", Embedding: []float32{1, 0},
	}, now)
	if highCos[0].cand.Blended < lowCos[0].cand.Blended {
		t.Errorf("raising cosine lowered blend: %v -> %v",
			lowCos[0].cand.Blended, highCos[0].cand.Blended)
	}

	// Fix cosine, increase lexical overlap.
	lowLex := scoreOne(t, s, query, queryText, domain.Passage{
		ID: 1, Content: "تسجيل علامة تجارية", Embedding: []float32{1, 0},
	}, now)
	highLex := scoreOne(t, s, query, queryText, domain.Passage{
		ID: 1, Content: "عقوبة تزوير الطوابع", Embedding: []float32{1, 0},
	}, now)
	if highLex[0].cand.Blended < lowLex[0].cand.Blended {
		t.Errorf("raising lexical overlap lowered blend: %v -> %v",
			lowLex[0].cand.Blended, highLex[0].cand.Blended)
	}
}

func TestBlendWeights(t *testing.T) {
	s := newScoringService(t, Params{Alpha: 0.85})
	now := time.Now()

	// Cosine 1, lexical 0: blended = alpha.
	got := scoreOne(t, s, []float32{1, 0}, "عقوبة تزوير", domain.Passage{
		ID: 1, Content: "تسجيل علامة", Embedding: []float32{1, 0},
	}, now)
	if math.Abs(got[0].cand.Blended-0.85) > 1e-9 {
		t.Errorf("blended = %v, want alpha (0.85)", got[0].cand.Blended)
	}
}

func TestBoostsAndCap(t *testing.T) {
	s := newScoringService(t, Params{})
	now := time.Now()
	query := []float32{1, 0}

	base := scoreOne(t, s, query, "", domain.Passage{
		ID: 1, Content: "", Embedding: []float32{1, 0},
	}, now)
	verified := scoreOne(t, s, query, "", domain.Passage{
		ID: 1, Content: "", Embedding: []float32{1, 0}, Verified: true,
	}, now)
	recent := scoreOne(t, s, query, "", domain.Passage{
		ID: 1, Content: "", Embedding: []float32{1, 0}, CreatedAt: now.Add(-24 * time.Hour),
	}, now)
	old := scoreOne(t, s, query, "", domain.Passage{
		ID: 1, Content: "", Embedding: []float32{1, 0}, CreatedAt: now.Add(-120 * 24 * time.Hour),
	}, now)

	wantBase := 0.85 // cosine 1 with empty query token set
	if math.Abs(base[0].cand.Blended-wantBase) > 1e-9 {
		t.Fatalf("base blended = %v, want %v", base[0].cand.Blended, wantBase)
	}
	if math.Abs(verified[0].cand.Blended-wantBase*1.15) > 1e-9 {
		t.Errorf("verified blended = %v, want %v", verified[0].cand.Blended, wantBase*1.15)
	}
	if math.Abs(recent[0].cand.Blended-wantBase*1.10) > 1e-9 {
		t.Errorf("recent blended = %v, want %v", recent[0].cand.Blended, wantBase*1.10)
	}
	if math.Abs(old[0].cand.Blended-wantBase) > 1e-9 {
		t.Errorf("old blended = %v, want unboosted %v", old[0].cand.Blended, wantBase)
	}

	// Both boosts on a perfect match must cap at 1.0.
	perfect := scoreOne(t, s, query, "عقوبة", domain.Passage{
		ID: 1, Content: "عقوبة", Embedding: []float32{1, 0},
		Verified: true, CreatedAt: now.Add(-time.Hour),
	}, now)
	if perfect[0].cand.Blended != 1 {
		t.Errorf("boosted perfect match = %v, want capped 1.0", perfect[0].cand.Blended)
	}
}

func TestScoreSkipsMalformedEmbeddings(t *testing.T) {
	s := newScoringService(t, Params{})
	now := time.Now()
	query := []float32{1, 0, 0}

	cands := []domain.Passage{
		{ID: 1, Content: "valid", Embedding: []float32{1, 0, 0}},
		{ID: 2, Content: "truncated", Embedding: []float32{1, 0}},
		{ID: 3, Content: "missing", Embedding: nil},
		{ID: 4, Content: "valid too", Embedding: []float32{0, 1, 0}},
	}
	got := s.scoreCandidates(query, arabic.TokenSet("valid"), cands, now)

	if len(got) != 2 {
		t.Fatalf("scored %d candidates, want 2", len(got))
	}
	if got[0].cand.PassageID != 1 || got[1].cand.PassageID != 4 {
		t.Errorf("unexpected survivors: %d, %d", got[0].cand.PassageID, got[1].cand.PassageID)
	}
}

func TestZeroCandidates(t *testing.T) {
	s := newScoringService(t, Params{})
	got := s.scoreCandidates([]float32{1, 0}, nil, nil, time.Now())
	if len(got) != 0 {
		t.Errorf("expected no scored candidates, got %d", len(got))
	}
}
