package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mizan",
			Name:      "search_queries_total",
			Help:      "Total number of search queries",
		},
		[]string{"path", "status"}, // path: "index" / "scan" / "cache"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mizan",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SearchFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mizan",
			Name:      "search_mmr_fallbacks_total",
			Help:      "Queries where no candidate met the threshold and the MMR fallback ran",
		},
	)

	SearchSkippedCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mizan",
			Name:      "search_skipped_candidates_total",
			Help:      "Candidates skipped during scoring",
		},
		[]string{"reason"}, // "dim_mismatch" / "empty_embedding" / "metadata"
	)

	IndexRebuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mizan",
			Name:      "index_rebuilds_total",
			Help:      "Fast-path index rebuilds",
		},
	)

	IndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mizan",
			Name:      "index_size_passages",
			Help:      "Passages currently held by the fast-path index",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus retrieval metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchQueriesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchFallbacksTotal)
	prometheus.MustRegister(SearchSkippedCandidatesTotal)
	prometheus.MustRegister(IndexRebuildsTotal)
	prometheus.MustRegister(IndexSize)
	searchMetricsRegistered = true
}
