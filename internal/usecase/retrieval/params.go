package retrieval

import "time"

// Default scoring and selection parameters.
const (
	DefaultAlpha            = 0.85
	DefaultMMRLambda        = 0.7
	DefaultVerifiedBoost    = 1.15
	DefaultRecencyBoost     = 1.10
	DefaultRecencyWindow    = 90 * 24 * time.Hour
	DefaultFallbackPoolSize = 50
	DefaultTopK             = 5
	DefaultQueryCacheSize   = 200
)

// Params holds the tunable knobs of the retrieval engine. The zero value is
// replaced field by field with the defaults above.
type Params struct {
	// Alpha weighs the cosine term in the blend; 1-Alpha weighs the lexical term.
	Alpha float64
	// MMRLambda weighs relevance against redundancy in diversity selection.
	MMRLambda float64
	// VerifiedBoost multiplies the blended score of verified passages.
	VerifiedBoost float64
	// RecencyBoost multiplies the blended score of passages created within
	// RecencyWindow of now.
	RecencyBoost  float64
	RecencyWindow time.Duration
	// FallbackPoolSize bounds the candidate pool diversified when no
	// candidate meets the threshold.
	FallbackPoolSize int
	DefaultTopK      int
	QueryCacheSize   int
}

func (p Params) withDefaults() Params {
	if p.Alpha <= 0 {
		p.Alpha = DefaultAlpha
	}
	if p.MMRLambda <= 0 {
		p.MMRLambda = DefaultMMRLambda
	}
	if p.VerifiedBoost <= 0 {
		p.VerifiedBoost = DefaultVerifiedBoost
	}
	if p.RecencyBoost <= 0 {
		p.RecencyBoost = DefaultRecencyBoost
	}
	if p.RecencyWindow <= 0 {
		p.RecencyWindow = DefaultRecencyWindow
	}
	if p.FallbackPoolSize <= 0 {
		p.FallbackPoolSize = DefaultFallbackPoolSize
	}
	if p.DefaultTopK <= 0 {
		p.DefaultTopK = DefaultTopK
	}
	if p.QueryCacheSize <= 0 {
		p.QueryCacheSize = DefaultQueryCacheSize
	}
	return p
}
