package httpcore

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dev-harsh1998/irondrop/internal/errors"
	"github.com/dev-harsh1998/irondrop/internal/metrics"
	"github.com/dev-harsh1998/irondrop/internal/pathutil"
)

// ParseOptions carries the per-server knobs for request parsing.
type ParseOptions struct {
	// SpoolDir receives bodies larger than SmallBodyThreshold. Empty means
	// the OS temp dir.
	SpoolDir string

	// MaxBodyBytes rejects declared lengths above this with 413. Zero means
	// unbounded.
	MaxBodyBytes int64

	// ReadTimeout bounds each socket read. Zero means the package default.
	ReadTimeout time.Duration
}

// ParseRequest reads one request from the connection: request line, headers,
// and body per the ingestion policy. The caller owns the returned Request
// and must Close it.
func ParseRequest(conn net.Conn, br *bufio.Reader, opts ParseOptions) (*Request, error) {
	timeout := opts.ReadTimeout
	if timeout <= 0 {
		timeout = ReadTimeout
	}

	head, err := readHeaderRegion(conn, br, timeout)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(head, "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, errors.BadRequest("empty request line")
	}

	req := &Request{
		Headers: make(map[string][]string, 8),
		ID:      uuid.NewString(),
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		req.RemoteIP = addr.IP.String()
	}

	if err := parseRequestLine(req, lines[0]); err != nil {
		return nil, err
	}
	if err := parseHeaders(req, lines[1:]); err != nil {
		return nil, err
	}

	if err := ingestBody(req, conn, br, timeout, opts); err != nil {
		return nil, err
	}

	return req, nil
}

// readHeaderRegion reads up to and including CRLF CRLF, capped at
// MaxHeaderBytes, and returns the region without the trailing blank line.
func readHeaderRegion(conn net.Conn, br *bufio.Reader, timeout time.Duration) (string, error) {
	var buf []byte
	for {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		b, err := br.ReadByte()
		if err != nil {
			if isTimeout(err) {
				return "", errors.RequestTimeout("header read timed out")
			}
			return "", errors.Wrap(errors.KindBadRequest, "connection closed before headers", err)
		}
		buf = append(buf, b)
		if len(buf) > MaxHeaderBytes {
			return "", errors.BadRequest("header region exceeds limit")
		}
		if len(buf) >= 4 && string(buf[len(buf)-4:]) == "\r\n\r\n" {
			return string(buf[:len(buf)-4]), nil
		}
	}
}

// parseRequestLine parses `METHOD SP TARGET SP HTTP/1.x`. The version space
// is located by scanning backwards for the last " HTTP/", which permits raw
// spaces inside the target.
func parseRequestLine(req *Request, line string) error {
	methodEnd := strings.IndexByte(line, ' ')
	if methodEnd <= 0 {
		return errors.BadRequest("malformed request line")
	}
	req.Method = line[:methodEnd]

	rest := line[methodEnd+1:]
	verIdx := strings.LastIndex(rest, " HTTP/")
	if verIdx < 0 {
		return errors.BadRequest("missing HTTP version")
	}
	rawTarget := rest[:verIdx]
	req.Version = rest[verIdx+1:]

	if req.Version != "HTTP/1.0" && req.Version != "HTTP/1.1" {
		return errors.BadRequest("unsupported HTTP version")
	}
	if rawTarget == "" {
		return errors.BadRequest("empty request target")
	}

	rawPath := rawTarget
	if q := strings.IndexByte(rawTarget, '?'); q >= 0 {
		rawPath = rawTarget[:q]
		req.RawQuery = rawTarget[q+1:]
	}

	decoded, err := pathutil.PercentDecode(rawPath)
	if err != nil {
		return errors.Wrap(errors.KindBadRequest, "bad percent encoding in target", err)
	}
	req.Target = decoded
	return nil
}

func parseHeaders(req *Request, lines []string) error {
	for _, line := range lines {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return errors.BadRequest("malformed header line")
		}
		name := lower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])
		req.Headers[name] = append(req.Headers[name], value)
	}

	if _, ok := req.Headers["transfer-encoding"]; ok {
		return errors.BadRequest("chunked transfer encoding is not supported")
	}
	return nil
}

// ingestBody applies the body ingestion policy: absent or zero length is an
// empty in-memory body; small bodies are read fully into memory; large ones
// stream to a spool file in fixed chunks.
func ingestBody(req *Request, conn net.Conn, br *bufio.Reader, timeout time.Duration, opts ParseOptions) error {
	length := req.ContentLength()
	if v := req.Header("content-length"); v != "" && length < 0 {
		return errors.BadRequest("bad Content-Length")
	}
	if length <= 0 {
		req.Body = &Body{kind: bodyInMemory}
		return nil
	}

	if opts.MaxBodyBytes > 0 && length > opts.MaxBodyBytes {
		return errors.PayloadTooLarge("declared body exceeds configured maximum")
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	if length <= SmallBodyThreshold {
		data := make([]byte, length)
		if _, err := io.ReadFull(br, data); err != nil {
			if isTimeout(err) {
				return errors.RequestTimeout("body read timed out")
			}
			return errors.Wrap(errors.KindBadRequest, "short body read", err)
		}
		req.Body = &Body{kind: bodyInMemory, data: data, size: length}
		return nil
	}

	metrics.SpooledBodiesTotal.Inc()
	path, err := spoolToDisk(conn, br, length, timeout, opts.SpoolDir)
	if err != nil {
		return err
	}
	req.Body = &Body{kind: bodyOnDisk, path: path, size: length}
	return nil
}

// spoolToDisk streams exactly length bytes to a fresh temp file. The file is
// unlinked on any failure.
func spoolToDisk(conn net.Conn, br *bufio.Reader, length int64, timeout time.Duration, dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, tempFileName())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", errors.Internal("create spool file", err)
	}

	fail := func(e error) (string, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return "", e
	}

	buf := make([]byte, SpoolChunkSize)
	remaining := length
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		read, err := io.ReadFull(br, buf[:n])
		if err != nil {
			if isTimeout(err) {
				return fail(errors.RequestTimeout("body read timed out"))
			}
			return fail(errors.Wrap(errors.KindBadRequest, "short body read", err))
		}
		if _, err := f.Write(buf[:read]); err != nil {
			return fail(errors.Internal("spool write failed", err))
		}
		remaining -= int64(read)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Internal("spool close failed", err)
	}
	return path, nil
}

// tempFileName composes `upload_{pid}_{nanos}_{rand32}.tmp`.
func tempFileName() string {
	var r [4]byte
	_, _ = rand.Read(r[:])
	return fmt.Sprintf("upload_%d_%d_%08x.tmp",
		os.Getpid(), time.Now().UnixNano(), binary.BigEndian.Uint32(r[:]))
}

func isTimeout(err error) bool {
	var ne net.Error
	if stderrors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
