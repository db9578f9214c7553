package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload Metrics
//
// These metrics track direct binary uploads. Use these to monitor upload
// performance, success rates, and identify bottlenecks in the commit path.

var (
	// UploadDuration tracks the time from first body byte to commit.
	// Labels: file_ext
	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irondrop_upload_duration_seconds",
			Help:    "Upload duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~51s
		},
		[]string{"file_ext"},
	)

	// UploadBytes tracks the size of committed uploads.
	UploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irondrop_upload_size_bytes",
			Help:    "Upload size in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 20), // 1KB to ~512MB
		},
		[]string{"file_ext"},
	)

	// UploadsTotal counts uploads by file extension and result.
	// Labels: file_ext, result (success, error)
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irondrop_uploads_total",
			Help: "Total number of uploads",
		},
		[]string{"file_ext", "result"},
	)

	// ActiveUploads tracks uploads currently streaming to disk.
	ActiveUploads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "irondrop_active_uploads",
			Help: "Uploads currently in flight",
		},
	)

	// SpooledBodiesTotal counts request bodies spooled to a temp file
	// because they exceeded the in-memory threshold.
	SpooledBodiesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "irondrop_spooled_bodies_total",
			Help: "Request bodies spooled to disk",
		},
	)
)
