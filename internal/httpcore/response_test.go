package httpcore

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-harsh1998/irondrop/internal/errors"
)

func TestResponseWriterBasicShape(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf, "HTTP/1.1")
	require.NoError(t, rw.WriteFull(200, "text/plain", []byte("hello")))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.Contains(t, out, "Content-Type: text/plain\r\n")
	assert.Contains(t, out, "Content-Length: 5\r\n")
	assert.Contains(t, out, "Server: irondrop\r\n")
	assert.Contains(t, out, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nhello"), out)
	assert.Equal(t, int64(5), rw.BodyBytes())
	assert.Equal(t, 200, rw.Status())
}

func TestResponseWriterHeadersKeepInsertionOrder(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf, "")
	rw.SetHeader("Content-Type", "application/octet-stream")
	rw.SetHeader("Accept-Ranges", "bytes")
	rw.SetHeader("Content-Type", "text/plain") // replaced in place
	require.NoError(t, rw.WriteHead(200))

	out := buf.String()
	ct := strings.Index(out, "Content-Type: text/plain")
	ar := strings.Index(out, "Accept-Ranges: bytes")
	require.Greater(t, ct, 0)
	require.Greater(t, ar, 0)
	assert.Less(t, ct, ar, "replaced header keeps its position")
}

func TestResponseWriterHeadIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf, "")
	require.NoError(t, rw.WriteHead(404))
	require.NoError(t, rw.WriteHead(200))
	assert.Equal(t, 1, strings.Count(buf.String(), "HTTP/1.1"))
	assert.Contains(t, buf.String(), "404 Not Found")
}

func TestResponseWriterImplicit200(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf, "")
	_, err := rw.Write([]byte("x"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "HTTP/1.1 200 OK")
}

func TestFormatHTTPDate(t *testing.T) {
	ts := time.Date(2025, 3, 9, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, "Sun, 09 Mar 2025 12:30:45 GMT", FormatHTTPDate(ts))
}

func TestParseRangeForms(t *testing.T) {
	const size = 1000
	cases := []struct {
		header     string
		start, end int64
	}{
		{"bytes=0-0", 0, 1},
		{"bytes=0-499", 0, 500},
		{"bytes=500-", 500, 1000},
		{"bytes=-200", 800, 1000},
		{"bytes=-1000", 0, 1000},
		{"bytes=-5000", 0, 1000},
		{"bytes=990-2000", 990, 1000},
	}
	for _, c := range cases {
		r, err := ParseRange(c.header, size)
		require.NoError(t, err, c.header)
		assert.Equal(t, c.start, r.Start, c.header)
		assert.Equal(t, c.end, r.End, c.header)
	}
}

func TestParseRangeRejections(t *testing.T) {
	const size = 1000
	for _, h := range []string{
		"bytes=1000-",     // start at EOF
		"bytes=2000-3000", // fully past EOF
		"bytes=5-2",       // inverted
		"bytes=0-10,20-30", // multi-range
		"bytes=-",
		"bytes=abc-def",
		"items=0-5",
	} {
		_, err := ParseRange(h, size)
		require.Error(t, err, h)
		assert.Equal(t, errors.KindRangeNotSatisfiable, errors.KindOf(err), h)
	}
}

func TestContentRangeRendering(t *testing.T) {
	r := Range{Start: 1048576, End: 2097152}
	assert.Equal(t, "bytes 1048576-2097151/10485760", r.ContentRange(10485760))
	assert.Equal(t, int64(1048576), r.Length())
	assert.Equal(t, "bytes */10485760", UnsatisfiableContentRange(10485760))
}
