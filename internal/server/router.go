package server

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dev-harsh1998/irondrop/internal/errors"
	"github.com/dev-harsh1998/irondrop/internal/httpcore"
	"github.com/dev-harsh1998/irondrop/internal/logging"
	"github.com/dev-harsh1998/irondrop/internal/metrics"
	"github.com/dev-harsh1998/irondrop/internal/pathutil"
)

// Route prefixes for the reserved namespace.
const (
	staticPrefix = "/_irondrop/static/"
	searchPath   = "/_irondrop/search"
	uploadPath   = "/_irondrop/upload"
)

// dispatch routes one parsed request. Admission and parsing already happened;
// this is auth → route, with the counters the dispatcher owns.
func (s *Server) dispatch(rw *httpcore.ResponseWriter, req *httpcore.Request) {
	start := time.Now()
	s.stats.RecordRequest()

	var err error
	if s.cfg.AuthEnabled() && !s.authorized(req) {
		rw.SetHeader("WWW-Authenticate", `Basic realm="IronDrop"`)
		err = errors.Unauthorized("credentials required")
	} else {
		err = s.route(rw, req)
	}

	if err != nil {
		s.respondError(rw, req, err)
	}

	status := rw.Status()
	s.stats.RecordOutcome(status)
	s.stats.AddResponseBytes(rw.BodyBytes())

	route := routeLabel(req.Target)
	code := strconv.Itoa(status)
	metrics.HTTPRequestsTotal.WithLabelValues(req.Method, route, code).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(req.Method, route, code).Observe(time.Since(start).Seconds())

	logging.Debug("request",
		zap.String("req", req.ID),
		zap.String("method", req.Method),
		zap.String("target", req.Target),
		zap.Int("status", status),
		zap.Int64("bytes", rw.BodyBytes()),
		zap.String("ip", req.RemoteIP))
}

// route maps method+path to a service.
func (s *Server) route(rw *httpcore.ResponseWriter, req *httpcore.Request) error {
	switch {
	case req.Target == "/_health":
		return s.requireGet(req, func() error { return s.handleHealth(rw) })
	case req.Target == "/_status":
		return s.requireGet(req, func() error { return s.handleStatus(rw) })
	case req.Target == "/monitor":
		return s.requireGet(req, func() error { return s.handleMonitor(rw, req) })
	case req.Target == "/metrics":
		return s.requireGet(req, func() error { return s.handleMetrics(rw) })

	case strings.HasPrefix(req.Target, staticPrefix):
		return s.requireGet(req, func() error {
			return s.handleStatic(rw, strings.TrimPrefix(req.Target, staticPrefix))
		})

	case req.Target == searchPath:
		return s.requireGet(req, func() error { return s.handleSearch(rw, req) })

	case req.Target == uploadPath:
		if !s.cfg.EnableUpload {
			return errors.MethodNotAllowed("uploads are disabled")
		}
		switch req.Method {
		case "GET":
			return s.handleUploadForm(rw)
		case "POST":
			return s.handleUpload(rw, req)
		default:
			return errors.MethodNotAllowed("unsupported method for upload")
		}

	default:
		if req.Method != "GET" {
			return errors.MethodNotAllowed("unsupported method")
		}
		return s.handlePath(rw, req)
	}
}

func (s *Server) requireGet(req *httpcore.Request, fn func() error) error {
	if req.Method != "GET" {
		return errors.MethodNotAllowed("unsupported method")
	}
	return fn()
}

// handlePath confines the target and serves a listing or a download.
func (s *Server) handlePath(rw *httpcore.ResponseWriter, req *httpcore.Request) error {
	resolved, err := pathutil.Confine(s.root, req.Target)
	if err != nil {
		return err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return errors.NotFound("path does not exist")
	}
	if info.IsDir() {
		return s.handleDirectory(rw, req, resolved)
	}
	return s.handleDownload(rw, req, resolved, info)
}

// authorized compares Basic credentials byte-for-byte in constant time.
func (s *Server) authorized(req *httpcore.Request) bool {
	auth := req.Header("authorization")
	encoded, ok := strings.CutPrefix(auth, "Basic ")
	if !ok {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	user, pass, found := strings.Cut(string(raw), ":")
	if !found {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Password)) == 1
	return userOK && passOK
}

// handleStatic serves an embedded asset.
func (s *Server) handleStatic(rw *httpcore.ResponseWriter, key string) error {
	data, mimeType, ok := s.renderer.Static(key)
	if !ok {
		return errors.NotFound("unknown asset")
	}
	rw.SetHeader("Cache-Control", "public, max-age=3600")
	return rw.WriteFull(200, mimeType, data)
}

// respondError converts an error kind into the client-facing page or JSON
// body. Only the kind's status and the error's client-safe Message are sent;
// the wrapped cause never leaves the process.
func (s *Server) respondError(rw *httpcore.ResponseWriter, req *httpcore.Request, err error) {
	if rw.HeaderWritten() {
		// Body already streaming; nothing safe to add.
		return
	}

	kind := errors.KindOf(err)
	status := errors.HTTPStatus(kind)

	reqID := ""
	if req != nil {
		reqID = req.ID
	}
	if kind == errors.KindInternal {
		logging.Error("request failed", zap.String("req", reqID), zap.Error(err))
	} else {
		logging.Debug("request rejected", zap.String("req", reqID), zap.Error(err))
	}

	message := errors.StatusText(kind)
	var e *errors.Error
	if stderrors.As(err, &e) && e.Message != "" && kind != errors.KindInternal {
		message = e.Message
	}

	if req != nil && wantsJSON(req.Target) {
		s.renderJSONError(rw, status, message)
		return
	}
	s.renderError(rw, req, status, message)
}

func wantsJSON(target string) bool {
	return strings.HasPrefix(target, "/_irondrop/search") ||
		strings.HasPrefix(target, "/_irondrop/upload") ||
		target == "/_health" || target == "/_status" || target == "/metrics"
}

func (s *Server) renderJSONError(rw *httpcore.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]interface{}{
		"status":  "error",
		"code":    status,
		"message": message,
	})
	_ = rw.WriteFull(status, "application/json; charset=utf-8", body)
}

// renderError emits the rendered HTML error page.
func (s *Server) renderError(rw *httpcore.ResponseWriter, req *httpcore.Request, status int, message string) {
	page, err := s.renderer.Render("error", map[string]string{
		"STATUS":      strconv.Itoa(status),
		"STATUS_TEXT": httpcore.StatusText(status),
		"MESSAGE":     pathutil.HTMLEscape(message),
	})
	if err != nil {
		page = []byte(fmt.Sprintf("%d %s", status, httpcore.StatusText(status)))
		_ = rw.WriteFull(status, "text/plain; charset=utf-8", page)
		return
	}
	_ = rw.WriteFull(status, "text/html; charset=utf-8", page)
}

// routeLabel buckets targets for metric labels so client paths do not
// explode the cardinality.
func routeLabel(target string) string {
	switch {
	case target == "/_health" || target == "/_status":
		return "health"
	case target == "/monitor":
		return "monitor"
	case target == "/metrics":
		return "metrics"
	case strings.HasPrefix(target, staticPrefix):
		return "static"
	case target == searchPath:
		return "search"
	case target == uploadPath:
		return "upload"
	default:
		return "files"
	}
}
