package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
//
// These metrics track request performance and admission control. Use these
// to monitor endpoint latency and rate limiting effectiveness.

var (
	// HTTPRequestDuration tracks request processing time.
	// Labels: method (GET, POST), route (files, upload, search, monitor,
	// static, health, metrics), status
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "irondrop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestsTotal counts requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irondrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// AdmissionRejectionsTotal counts connections rejected before parsing.
	// Labels: reason (rate_limited, connection_limited)
	AdmissionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "irondrop_admission_rejections_total",
			Help: "Total number of admission-layer rejections",
		},
		[]string{"reason"},
	)

	// ActiveConnections tracks connections currently handled by workers.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "irondrop_active_connections",
			Help: "Connections currently being handled",
		},
	)

	// WorkerQueueDepth tracks jobs waiting in the thread-pool queue.
	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "irondrop_worker_queue_depth",
			Help: "Jobs waiting in the worker queue",
		},
	)

	// WorkerPanicsTotal counts panics recovered inside workers.
	WorkerPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "irondrop_worker_panics_total",
			Help: "Total panics recovered by the worker pool",
		},
	)
)

// RecordAdmissionRejection records a rejected connection by reason.
func RecordAdmissionRejection(reason string) {
	AdmissionRejectionsTotal.WithLabelValues(reason).Inc()
}
