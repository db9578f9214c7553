package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dev-harsh1998/irondrop/internal/errors"
	"github.com/dev-harsh1998/irondrop/internal/httpcore"
	"github.com/dev-harsh1998/irondrop/internal/logging"
	"github.com/dev-harsh1998/irondrop/internal/metrics"
	"github.com/dev-harsh1998/irondrop/internal/pathutil"
	"github.com/dev-harsh1998/irondrop/internal/ui"
)

// uniqueNameAttempts bounds the suffix counter before giving up.
const uniqueNameAttempts = 10000

// handleUploadForm serves the upload page.
func (s *Server) handleUploadForm(rw *httpcore.ResponseWriter) error {
	page, err := s.renderer.Render("upload", nil)
	if err != nil {
		return errors.Internal("upload page render failed", err)
	}
	return rw.WriteFull(200, "text/html; charset=utf-8", page)
}

// handleUpload commits a raw binary request body under a unique, sanitized
// filename.
func (s *Server) handleUpload(rw *httpcore.ResponseWriter, req *httpcore.Request) error {
	if ct := req.Header("content-type"); !strings.HasPrefix(ct, "application/octet-stream") {
		return errors.BadRequest("Content-Type must be application/octet-stream")
	}
	rawName := req.Header("x-filename")
	if rawName == "" {
		return errors.BadRequest("X-Filename header is required")
	}

	name, err := sanitizeFilename(rawName)
	if err != nil {
		return err
	}
	if !extensionAllowed(name, s.cfg.AllowedExtensions) {
		return errors.UnsupportedMediaType("file type is not accepted")
	}

	s.stats.UploadStarted()
	defer s.stats.UploadFinished()
	metrics.ActiveUploads.Inc()
	defer metrics.ActiveUploads.Dec()
	start := time.Now()

	dest := s.cfg.EffectiveUploadDir()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		s.stats.UploadFailed()
		return errors.Internal("upload directory unavailable", err)
	}
	if err := checkDiskSpace(dest, req.Body.Len()); err != nil {
		s.stats.UploadFailed()
		return errors.Internal("insufficient disk space", err)
	}

	finalPath, f, err := createUnique(dest, name)
	if err != nil {
		s.stats.UploadFailed()
		return err
	}

	size, err := s.commitBody(req, finalPath, f)
	if err != nil {
		_ = os.Remove(finalPath)
		s.stats.UploadFailed()
		metrics.UploadsTotal.WithLabelValues(fileExt(name), "error").Inc()
		return err
	}

	elapsed := time.Since(start)
	s.stats.UploadSucceeded(size, elapsed)
	ext := fileExt(name)
	metrics.UploadsTotal.WithLabelValues(ext, "success").Inc()
	metrics.UploadBytes.WithLabelValues(ext).Observe(float64(size))
	metrics.UploadDuration.WithLabelValues(ext).Observe(elapsed.Seconds())

	logging.Info("upload committed",
		zap.String("req", req.ID),
		zap.String("file", filepath.Base(finalPath)),
		zap.String("size", ui.FormatBytes(size)))

	body, _ := json.Marshal(map[string]interface{}{
		"success":  true,
		"filename": filepath.Base(finalPath),
		"size":     size,
	})
	return rw.WriteFull(200, "application/json; charset=utf-8", body)
}

// commitBody moves the request body into the exclusively-created final
// file. In-memory bodies are written through; spooled bodies are renamed
// onto the reserved path, falling back to a copy across filesystems. f is
// always closed.
func (s *Server) commitBody(req *httpcore.Request, finalPath string, f *os.File) (int64, error) {
	if data, ok := req.Body.InMemory(); ok {
		n, err := f.Write(data)
		cerr := f.Close()
		if err != nil || cerr != nil {
			return 0, errors.Internal("upload write failed", firstErr(err, cerr))
		}
		return int64(n), nil
	}

	tempPath, _ := req.Body.OnDisk()
	_ = f.Close()

	if err := os.Rename(tempPath, finalPath); err == nil {
		return req.Body.Len(), nil
	}

	// Rename crossed filesystems; copy then unlink the source.
	src, err := os.Open(tempPath)
	if err != nil {
		return 0, errors.Internal("spool reopen failed", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(finalPath, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, errors.Internal("upload reopen failed", err)
	}
	n, err := io.Copy(dst, src)
	cerr := dst.Close()
	if err != nil || cerr != nil {
		return 0, errors.Internal("upload copy failed", firstErr(err, cerr))
	}
	_ = os.Remove(tempPath)
	return n, nil
}

// createUnique reserves a final path with create-new semantics, suffixing
// `_1`, `_2`, … on collision. Exclusive creation is the race-free
// uniqueness guarantee; a stat-then-create would race concurrent uploads.
func createUnique(dir, name string) (string, *os.File, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < uniqueNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return path, f, nil
		}
		if os.IsExist(err) {
			continue
		}
		return "", nil, errors.Internal("upload create failed", err)
	}
	return "", nil, errors.Internal("could not find a unique filename", nil)
}

// sanitizeFilename validates a client-proposed name for secure filesystem
// use: percent escapes decoded, traversal and control bytes rejected,
// length bounded to 255 bytes.
func sanitizeFilename(raw string) (string, error) {
	name, err := pathutil.PercentDecode(raw)
	if err != nil {
		return "", errors.BadRequest("bad percent encoding in filename")
	}
	if name == "" {
		return "", errors.BadRequest("empty filename")
	}
	if strings.ContainsAny(name, "/\\") {
		return "", errors.BadRequest("filename contains path separators")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return "", errors.BadRequest("filename contains NUL")
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] == 0x7f {
			return "", errors.BadRequest("filename contains control characters")
		}
	}
	name = strings.TrimSpace(name)
	// Windows drive letters would escape a served prefix when copied around.
	if len(name) >= 2 && name[1] == ':' {
		return "", errors.BadRequest("filename contains a drive letter")
	}
	if strings.HasPrefix(name, ".") {
		return "", errors.BadRequest("hidden filenames are not accepted")
	}
	if name == "" || name == "." || name == ".." {
		return "", errors.BadRequest("invalid filename")
	}
	if len(name) > 255 {
		return "", errors.BadRequest("filename too long (max 255 bytes)")
	}
	return name, nil
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
