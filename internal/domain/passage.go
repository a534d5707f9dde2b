package domain

import "time"

// Passage is a unit of indexed legal text with a precomputed embedding.
// The retrieval core reads passages, it never mutates them.
type Passage struct {
	ID        int64
	Content   string
	Embedding []float32
	SourceRef string
	Verified  bool
	CreatedAt time.Time
}

// Metadata is the enrichment record attached to a result.
type Metadata struct {
	PassageID    int64  `json:"passage_id"`
	SourceRef    string `json:"source_ref"`
	LawName      string `json:"law_name,omitempty"`
	ArticleNo    string `json:"article_no,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// Result is a single ranked search hit returned to the caller.
type Result struct {
	PassageID int64    `json:"passage_id"`
	Content   string   `json:"content"`
	Score     float64  `json:"score"`
	Metadata  Metadata `json:"metadata"`
}

// ScoredCandidate carries the per-candidate scoring breakdown through one
// query. It is never persisted.
type ScoredCandidate struct {
	PassageID int64
	Cosine    float64
	Lexical   float64
	Blended   float64
}
