// Package metrics provides Prometheus metrics for monitoring the file
// server.
//
// The metrics package is organized into logical modules:
//
//   - http.go: request volume, latency, and admission rejections
//   - download.go: download performance and throughput metrics
//   - upload.go: upload performance and throughput metrics
//   - search.go: search query latency and index metrics
//   - expose.go: text exposition for the /metrics endpoint
//
// Usage Examples:
//
// Recording an upload:
//
//	start := time.Now()
//	metrics.ActiveUploads.Inc()
//	defer metrics.ActiveUploads.Dec()
//	// ... perform upload ...
//	metrics.UploadDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())
//	metrics.UploadsTotal.WithLabelValues("pdf", "success").Inc()
//
// Recording a request:
//
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "files", "200").Inc()
//
// All metrics are registered with the default Prometheus registry and
// exposed in text format via the /metrics endpoint.
package metrics
