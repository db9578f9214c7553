package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Download Metrics
//
// These metrics track file downloads from the served tree. Use these to
// monitor download performance and identify bottlenecks by file type.

var (
	// DownloadDuration tracks the time taken to stream a file body.
	// Labels: file_ext (e.g., "txt", "pdf", "zip")
	DownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irondrop_download_duration_seconds",
			Help:    "Download duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"file_ext"},
	)

	// DownloadBytes tracks delivered body sizes, including partial ranges.
	DownloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irondrop_download_size_bytes",
			Help:    "Download body size in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12), // 1KB to ~4GB
		},
		[]string{"file_ext"},
	)

	// DownloadsTotal counts downloads by file extension and result.
	// Labels: file_ext, result (success, error)
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irondrop_downloads_total",
			Help: "Total number of downloads",
		},
		[]string{"file_ext", "result"},
	)

	// RangeRequestsTotal counts ranged downloads.
	RangeRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "irondrop_range_requests_total",
			Help: "Total number of ranged download requests",
		},
	)

	// ActiveDownloads tracks downloads currently streaming.
	ActiveDownloads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "irondrop_active_downloads",
			Help: "Downloads currently in flight",
		},
	)

	// ThrottledWritesTotal counts responses that went through the per-IP
	// bandwidth limiter.
	ThrottledWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irondrop_throttled_responses_total",
			Help: "Responses written through the bandwidth limiter",
		},
		[]string{"client_ip"},
	)
)
