package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search Metrics
//
// These metrics track the name index and query engine. Use these to monitor
// rebuild cost and query latency across index modes.

var (
	// SearchDuration tracks query latency.
	// Labels: mode (standard, ultra_compact), cache (hit, miss)
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irondrop_search_duration_seconds",
			Help:    "Search query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		},
		[]string{"mode", "cache"},
	)

	// SearchQueriesTotal counts queries by mode and cache outcome.
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irondrop_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"mode", "cache"},
	)

	// IndexedEntries reports the size of the published index generation.
	IndexedEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "irondrop_indexed_entries",
			Help: "Entries in the published search index",
		},
	)

	// IndexRebuildDuration tracks full index rebuild cost.
	// Labels: mode
	IndexRebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irondrop_index_rebuild_duration_seconds",
			Help:    "Index rebuild duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~82s
		},
		[]string{"mode"},
	)
)
