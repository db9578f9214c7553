package server

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/blake2b"

	"github.com/dev-harsh1998/irondrop/internal/admission"
	"github.com/dev-harsh1998/irondrop/internal/errors"
	"github.com/dev-harsh1998/irondrop/internal/httpcore"
	"github.com/dev-harsh1998/irondrop/internal/metrics"
)

// Compression threshold: tiny files gain nothing from gzip.
const compressMinSize = 1024

// handleDownload streams a confined regular file, honoring Range and the
// allowed-extension policy.
func (s *Server) handleDownload(rw *httpcore.ResponseWriter, req *httpcore.Request, path string, info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return errors.Forbidden("not a regular file")
	}
	name := filepath.Base(path)
	if !extensionAllowed(name, s.cfg.AllowedExtensions) {
		return errors.Forbidden("file type is not served")
	}

	metrics.ActiveDownloads.Inc()
	defer metrics.ActiveDownloads.Dec()
	start := time.Now()

	size := info.Size()
	rw.SetHeader("Content-Type", mimeByExtension(name))
	rw.SetHeader("Last-Modified", httpcore.FormatHTTPDate(info.ModTime()))
	rw.SetHeader("ETag", etagFor(name, size, info.ModTime()))
	rw.SetHeader("Accept-Ranges", "bytes")

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.KindNotFound, "open failed", err)
	}
	defer f.Close()

	// Per-IP bandwidth throttle wraps the body writer when configured.
	if lim := s.bandwidth.Limiter(req.RemoteIP); lim != nil {
		rw.SetBodyWriter(&admission.ThrottledWriter{W: rw.Raw(), Limiter: lim})
		metrics.ThrottledWritesTotal.WithLabelValues(req.RemoteIP).Inc()
	}

	rangeHeader := req.Header("range")
	if rangeHeader != "" {
		return s.streamRange(rw, f, size, rangeHeader, name, start)
	}

	// Whole-file compression path for small text-like content.
	if size >= compressMinSize && size <= httpcore.SmallBodyThreshold &&
		isCompressible(name) &&
		strings.Contains(req.Header("accept-encoding"), "gzip") {
		return s.streamCompressed(rw, f, name, start, size)
	}

	rw.SetHeader("Content-Length", strconv.FormatInt(size, 10))
	if err := rw.WriteHead(200); err != nil {
		return nil
	}
	if err := s.copyChunks(rw, f, size); err != nil {
		metrics.DownloadsTotal.WithLabelValues(fileExt(name), "error").Inc()
		return nil // headers sent; nothing more to say
	}

	s.recordDownload(name, rw.BodyBytes(), start)
	return nil
}

// streamRange emits a 206 for a valid interval or a 416 with the
// unsatisfiable Content-Range.
func (s *Server) streamRange(rw *httpcore.ResponseWriter, f *os.File, size int64, header, name string, start time.Time) error {
	metrics.RangeRequestsTotal.Inc()

	rng, err := httpcore.ParseRange(header, size)
	if err != nil {
		rw.SetHeader("Content-Range", httpcore.UnsatisfiableContentRange(size))
		return err
	}

	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		return errors.Internal("seek failed", err)
	}

	rw.SetHeader("Content-Range", rng.ContentRange(size))
	rw.SetHeader("Content-Length", strconv.FormatInt(rng.Length(), 10))
	if err := rw.WriteHead(206); err != nil {
		return nil
	}
	if err := s.copyChunks(rw, f, rng.Length()); err != nil {
		metrics.DownloadsTotal.WithLabelValues(fileExt(name), "error").Inc()
		return nil
	}

	s.recordDownload(name, rw.BodyBytes(), start)
	return nil
}

// streamCompressed gzips the body. Content-Length is omitted; the close
// delimits the body.
func (s *Server) streamCompressed(rw *httpcore.ResponseWriter, f *os.File, name string, start time.Time, size int64) error {
	rw.SetHeader("Content-Encoding", "gzip")
	if err := rw.WriteHead(200); err != nil {
		return nil
	}

	gz := gzip.NewWriter(rw)
	if err := s.copyChunks(gz, f, size); err != nil {
		metrics.DownloadsTotal.WithLabelValues(fileExt(name), "error").Inc()
		return nil
	}
	if err := gz.Close(); err != nil {
		metrics.DownloadsTotal.WithLabelValues(fileExt(name), "error").Inc()
		return nil
	}

	s.recordDownload(name, rw.BodyBytes(), start)
	return nil
}

// copyChunks streams exactly length bytes in configured-size chunks.
func (s *Server) copyChunks(dst io.Writer, src io.Reader, length int64) error {
	chunk := s.cfg.ChunkSize
	if chunk <= 0 {
		chunk = 8192
	}
	buf := make([]byte, chunk)
	_, err := io.CopyBuffer(dst, io.LimitReader(src, length), buf)
	return err
}

func (s *Server) recordDownload(name string, bytes int64, start time.Time) {
	ext := fileExt(name)
	metrics.DownloadsTotal.WithLabelValues(ext, "success").Inc()
	metrics.DownloadBytes.WithLabelValues(ext).Observe(float64(bytes))
	metrics.DownloadDuration.WithLabelValues(ext).Observe(time.Since(start).Seconds())
}

// etagFor derives the opaque validator from file metadata. This is not a
// content hash: two files with equal name, size, and mtime share a tag.
func etagFor(name string, size int64, modTime time.Time) string {
	h, _ := blake2b.New(8, nil)
	fmt.Fprintf(h, "%s|%d|%d", name, size, modTime.UnixNano())
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}

