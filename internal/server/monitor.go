package server

import (
	"encoding/json"
	"runtime"

	"github.com/docker/go-units"

	"github.com/dev-harsh1998/irondrop/internal/errors"
	"github.com/dev-harsh1998/irondrop/internal/httpcore"
	"github.com/dev-harsh1998/irondrop/internal/metrics"
)

// monitorSnapshot is the JSON contract of /monitor?json=1. Evolution is
// additive only: fields are never renamed or removed.
type monitorSnapshot struct {
	Requests struct {
		Total       uint64  `json:"total"`
		OK          uint64  `json:"ok"`
		Errors      uint64  `json:"errors"`
		SuccessRate float64 `json:"success_rate"`
		BytesServed uint64  `json:"bytes_served"`
	} `json:"requests"`
	Downloads struct {
		BytesServed uint64 `json:"bytes_served"`
	} `json:"downloads"`
	Uploads struct {
		Total           uint64  `json:"total"`
		OK              uint64  `json:"ok"`
		Errors          uint64  `json:"errors"`
		FilesUploaded   uint64  `json:"files_uploaded"`
		BytesUploaded   uint64  `json:"bytes_uploaded"`
		LargestUpload   uint64  `json:"largest_upload"`
		Concurrent      int64   `json:"concurrent"`
		AvgProcessingMs float64 `json:"avg_processing_ms"`
	} `json:"uploads"`
	Memory struct {
		AllocBytes uint64 `json:"alloc_bytes"`
		SysBytes   uint64 `json:"sys_bytes"`
		NumGC      uint32 `json:"num_gc"`
	} `json:"memory"`
	UptimeSecs uint64 `json:"uptime_secs"`
}

func (s *Server) snapshot() monitorSnapshot {
	snap := s.stats.Snapshot()

	var out monitorSnapshot
	out.Requests.Total = snap.RequestsTotal
	out.Requests.OK = snap.RequestsOK
	out.Requests.Errors = snap.RequestsErr
	out.Requests.SuccessRate = snap.SuccessRate()
	out.Requests.BytesServed = snap.ResponseBodyBytes
	out.Downloads.BytesServed = snap.ResponseBodyBytes
	out.Uploads.Total = snap.UploadsTotal
	out.Uploads.OK = snap.UploadsOK
	out.Uploads.Errors = snap.UploadsErr
	out.Uploads.FilesUploaded = snap.FilesUploaded
	out.Uploads.BytesUploaded = snap.UploadBytesTotal
	out.Uploads.LargestUpload = snap.UploadBytesMax
	out.Uploads.Concurrent = snap.UploadConcurrent
	out.Uploads.AvgProcessingMs = snap.AvgProcessingMs
	out.UptimeSecs = snap.UptimeSecs

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	out.Memory.AllocBytes = mem.Alloc
	out.Memory.SysBytes = mem.Sys
	out.Memory.NumGC = mem.NumGC

	return out
}

// handleMonitor serves the dashboard, or the JSON snapshot with ?json=1.
func (s *Server) handleMonitor(rw *httpcore.ResponseWriter, req *httpcore.Request) error {
	if queryParam(req.RawQuery, "json") == "1" {
		body, err := json.Marshal(s.snapshot())
		if err != nil {
			return errors.Internal("snapshot encode failed", err)
		}
		rw.SetHeader("Cache-Control", "no-store")
		return rw.WriteFull(200, "application/json; charset=utf-8", body)
	}

	page, err := s.renderer.Render("monitor", map[string]string{"VERSION": Version})
	if err != nil {
		return errors.Internal("monitor render failed", err)
	}
	return rw.WriteFull(200, "text/html; charset=utf-8", page)
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(rw *httpcore.ResponseWriter) error {
	snap := s.stats.Snapshot()
	body, _ := json.Marshal(map[string]interface{}{
		"status":      "ok",
		"uptime_secs": snap.UptimeSecs,
		"version":     Version,
	})
	rw.SetHeader("Cache-Control", "no-store")
	return rw.WriteFull(200, "application/json; charset=utf-8", body)
}

// handleStatus is the extended status: configuration echo, counters, search
// index state, memory.
func (s *Server) handleStatus(rw *httpcore.ResponseWriter) error {
	indexed, mode := s.engine.Stats()
	snap := s.snapshot()

	maxUpload := "unlimited"
	if n := s.cfg.MaxUploadBytes(); n > 0 {
		maxUpload = units.BytesSize(float64(n))
	}

	body, err := json.Marshal(map[string]interface{}{
		"server": map[string]interface{}{
			"version":         Version,
			"directory":       s.root,
			"threads":         s.cfg.Threads,
			"chunk_size":      s.cfg.ChunkSize,
			"upload_enabled":  s.cfg.EnableUpload,
			"max_upload_size": maxUpload,
			"auth_enabled":    s.cfg.AuthEnabled(),
		},
		"requests": snap.Requests,
		"uploads":  snap.Uploads,
		"search": map[string]interface{}{
			"indexed_files": indexed,
			"engine_mode":   mode,
		},
		"memory":      snap.Memory,
		"uptime_secs": snap.UptimeSecs,
	})
	if err != nil {
		return errors.Internal("status encode failed", err)
	}
	rw.SetHeader("Cache-Control", "no-store")
	return rw.WriteFull(200, "application/json; charset=utf-8", body)
}

// handleMetrics exposes the Prometheus registry in text format.
func (s *Server) handleMetrics(rw *httpcore.ResponseWriter) error {
	body, err := metrics.Gather()
	if err != nil {
		return errors.Internal("metrics gather failed", err)
	}
	return rw.WriteFull(200, metrics.ContentType, body)
}
