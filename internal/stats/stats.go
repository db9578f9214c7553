// Package stats holds the process-wide cumulative counters. Counters are
// individual atomics; the upload timing ring is the only mutex-guarded
// piece. A Stats value is created once at startup and passed to the
// dispatcher as an explicit collaborator.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

const procRingSize = 100

// Stats aggregates cumulative server counters. All counters are monotonic
// except UploadConcurrency.
type Stats struct {
	requestsTotal     atomic.Uint64
	requestsOK        atomic.Uint64
	requestsErr       atomic.Uint64
	responseBodyBytes atomic.Uint64

	uploadsTotal     atomic.Uint64
	uploadsOK        atomic.Uint64
	uploadsErr       atomic.Uint64
	filesUploaded    atomic.Uint64
	uploadBytesTotal atomic.Uint64
	uploadBytesMax   atomic.Uint64
	uploadConcurrent atomic.Int64

	ringMu   sync.Mutex
	procRing [procRingSize]float64
	ringLen  int
	ringNext int

	start time.Time
}

// New creates a Stats with the start instant stamped.
func New() *Stats {
	return &Stats{start: time.Now()}
}

// RecordRequest counts one dispatched request.
func (s *Stats) RecordRequest() {
	s.requestsTotal.Add(1)
}

// RecordOutcome counts the final status class of a completed request.
func (s *Stats) RecordOutcome(status int) {
	if status < 400 {
		s.requestsOK.Add(1)
	} else {
		s.requestsErr.Add(1)
	}
}

// AddResponseBytes adds delivered body bytes. Called exactly once per
// response, after the final body byte is written.
func (s *Stats) AddResponseBytes(n int64) {
	if n > 0 {
		s.responseBodyBytes.Add(uint64(n))
	}
}

// UploadStarted marks the start of upload handling. The request body has
// already been received by then, so the body read is not counted.
func (s *Stats) UploadStarted() {
	s.uploadsTotal.Add(1)
	s.uploadConcurrent.Add(1)
}

// UploadFinished marks the end of an upload in every exit path.
func (s *Stats) UploadFinished() {
	s.uploadConcurrent.Add(-1)
}

// UploadSucceeded records a committed upload.
func (s *Stats) UploadSucceeded(bytes int64, elapsed time.Duration) {
	s.uploadsOK.Add(1)
	s.filesUploaded.Add(1)
	s.uploadBytesTotal.Add(uint64(bytes))
	for {
		cur := s.uploadBytesMax.Load()
		if uint64(bytes) <= cur || s.uploadBytesMax.CompareAndSwap(cur, uint64(bytes)) {
			break
		}
	}

	ms := float64(elapsed.Microseconds()) / 1000.0
	s.ringMu.Lock()
	s.procRing[s.ringNext] = ms
	s.ringNext = (s.ringNext + 1) % procRingSize
	if s.ringLen < procRingSize {
		s.ringLen++
	}
	s.ringMu.Unlock()
}

// UploadFailed records a failed upload.
func (s *Stats) UploadFailed() {
	s.uploadsErr.Add(1)
}

// Snapshot is a point-in-time copy of the counters, shaped for the monitor
// JSON contract.
type Snapshot struct {
	RequestsTotal     uint64
	RequestsOK        uint64
	RequestsErr       uint64
	ResponseBodyBytes uint64

	UploadsTotal     uint64
	UploadsOK        uint64
	UploadsErr       uint64
	FilesUploaded    uint64
	UploadBytesTotal uint64
	UploadBytesMax   uint64
	UploadConcurrent int64
	AvgProcessingMs  float64

	UptimeSecs uint64
}

// Snapshot reads the counters. Individual loads are atomic; the snapshot as
// a whole is not, which is fine for telemetry.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		RequestsTotal:     s.requestsTotal.Load(),
		RequestsOK:        s.requestsOK.Load(),
		RequestsErr:       s.requestsErr.Load(),
		ResponseBodyBytes: s.responseBodyBytes.Load(),
		UploadsTotal:      s.uploadsTotal.Load(),
		UploadsOK:         s.uploadsOK.Load(),
		UploadsErr:        s.uploadsErr.Load(),
		FilesUploaded:     s.filesUploaded.Load(),
		UploadBytesTotal:  s.uploadBytesTotal.Load(),
		UploadBytesMax:    s.uploadBytesMax.Load(),
		UploadConcurrent:  s.uploadConcurrent.Load(),
		UptimeSecs:        uint64(time.Since(s.start).Seconds()),
	}

	s.ringMu.Lock()
	if s.ringLen > 0 {
		var sum float64
		for i := 0; i < s.ringLen; i++ {
			sum += s.procRing[i]
		}
		snap.AvgProcessingMs = sum / float64(s.ringLen)
	}
	s.ringMu.Unlock()

	return snap
}

// SuccessRate returns 100*ok/total, 0 when no requests have completed.
func (sn Snapshot) SuccessRate() float64 {
	total := sn.RequestsOK + sn.RequestsErr
	if total == 0 {
		return 0
	}
	return 100 * float64(sn.RequestsOK) / float64(total)
}
