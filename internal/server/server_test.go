package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-harsh1998/irondrop/internal/config"
)

// startServer boots a full server on an ephemeral port over a populated
// temp root.
func startServer(t *testing.T, mutate func(*config.Config)) (*Server, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello world\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "report.pdf"), bytes.Repeat([]byte("r"), 4096), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".secret"), []byte("x"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Directory = root
	cfg.Port = 0
	cfg.Threads = 4
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := New(cfg)
	require.NoError(t, err)
	url, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })

	return srv, strings.TrimSuffix(url, "/")
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

// rawRequest sends literal bytes and returns the raw response, bypassing
// client-side path normalization.
func rawRequest(t *testing.T, baseURL string, raw string) string {
	t.Helper()
	addr := strings.TrimPrefix(baseURL, "http://")
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	out, err := io.ReadAll(bufio.NewReader(conn))
	require.NoError(t, err)
	return string(out)
}

func TestDirectoryListing(t *testing.T) {
	_, base := startServer(t, nil)

	resp, body := httpGet(t, base+"/")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	// net/http's client consumes Connection: close into resp.Close.
	assert.True(t, resp.Close)
	assert.Equal(t, "irondrop", resp.Header.Get("Server"))

	html := string(body)
	assert.Contains(t, html, "hello.txt")
	assert.Contains(t, html, "docs/")
	assert.NotContains(t, html, ".secret", "hidden entries are filtered")
}

func TestDirectoriesSortBeforeFiles(t *testing.T) {
	_, base := startServer(t, nil)
	_, body := httpGet(t, base+"/")
	html := string(body)
	assert.Less(t, strings.Index(html, "docs/"), strings.Index(html, "hello.txt"))
}

func TestDownloadFull(t *testing.T) {
	_, base := startServer(t, nil)

	resp, body := httpGet(t, base+"/hello.txt")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello world\n", string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Equal(t, "12", resp.Header.Get("Content-Length"))
	assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
	assert.NotEmpty(t, resp.Header.Get("ETag"))
	assert.NotEmpty(t, resp.Header.Get("Last-Modified"))
}

func TestDownloadNestedFile(t *testing.T) {
	_, base := startServer(t, nil)
	resp, body := httpGet(t, base+"/docs/report.pdf")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Len(t, body, 4096)
}

func TestDownloadRange(t *testing.T) {
	srv, base := startServer(t, nil)

	// A 1MiB file with position-dependent bytes.
	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(srv.root, "big.bin"), payload, 0o644))

	req, _ := http.NewRequest("GET", base+"/big.bin", nil)
	req.Header.Set("Range", "bytes=1024-2047")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, 206, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("bytes 1024-2047/%d", len(payload)), resp.Header.Get("Content-Range"))
	assert.Equal(t, "1024", resp.Header.Get("Content-Length"))
	assert.Equal(t, payload[1024:2048], body)
}

func TestDownloadRangeSingleByte(t *testing.T) {
	_, base := startServer(t, nil)

	req, _ := http.NewRequest("GET", base+"/hello.txt", nil)
	req.Header.Set("Range", "bytes=0-0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, 206, resp.StatusCode)
	assert.Equal(t, "h", string(body))
	assert.Equal(t, "bytes 0-0/12", resp.Header.Get("Content-Range"))
}

func TestDownloadSuffixRangeWholeFile(t *testing.T) {
	_, base := startServer(t, nil)

	req, _ := http.NewRequest("GET", base+"/hello.txt", nil)
	req.Header.Set("Range", "bytes=-12")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, 206, resp.StatusCode)
	assert.Equal(t, "hello world\n", string(body))
}

func TestDownloadRangeUnsatisfiable(t *testing.T) {
	_, base := startServer(t, nil)

	req, _ := http.NewRequest("GET", base+"/hello.txt", nil)
	req.Header.Set("Range", "bytes=12-")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, 416, resp.StatusCode)
	assert.Equal(t, "bytes */12", resp.Header.Get("Content-Range"))
}

func TestTraversalBlocked(t *testing.T) {
	_, base := startServer(t, nil)

	out := rawRequest(t, base, "GET /%2e%2e/%2e%2e/etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Contains(t, out, "403 Forbidden")
}

func TestTargetWithRawSpaces(t *testing.T) {
	srv, base := startServer(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(srv.root, "my file.txt"), []byte("spaced"), 0o644))

	out := rawRequest(t, base, "GET /my file.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "spaced")
}

func TestMalformedRequestLine(t *testing.T) {
	_, base := startServer(t, nil)
	out := rawRequest(t, base, "GARBAGE\r\n\r\n")
	assert.Contains(t, out, "400 Bad Request")
}

func TestNotFound(t *testing.T) {
	_, base := startServer(t, nil)
	resp, _ := httpGet(t, base+"/absent.txt")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	_, base := startServer(t, nil)
	req, _ := http.NewRequest("DELETE", base+"/hello.txt", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, 405, resp.StatusCode)
}

func TestExtensionPolicy(t *testing.T) {
	_, base := startServer(t, func(cfg *config.Config) {
		cfg.AllowedExtensions = []string{"*.txt"}
	})

	resp, _ := httpGet(t, base+"/hello.txt")
	assert.Equal(t, 200, resp.StatusCode)

	resp, _ = httpGet(t, base+"/docs/report.pdf")
	assert.Equal(t, 403, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	_, base := startServer(t, nil)

	resp, body := httpGet(t, base+"/_health")
	assert.Equal(t, 200, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, Version, health["version"])
	assert.Contains(t, health, "uptime_secs")
}

func TestStatusEndpoint(t *testing.T) {
	_, base := startServer(t, nil)

	resp, body := httpGet(t, base+"/_status")
	assert.Equal(t, 200, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Contains(t, status, "server")
	assert.Contains(t, status, "requests")
	assert.Contains(t, status, "search")
	assert.Contains(t, status, "memory")
}

func TestMonitorJSONAndCounters(t *testing.T) {
	_, base := startServer(t, nil)

	// Generate one download first.
	_, body := httpGet(t, base+"/hello.txt")
	require.Len(t, body, 12)

	resp, raw := httpGet(t, base+"/monitor?json=1")
	assert.Equal(t, 200, resp.StatusCode)

	var mon struct {
		Requests struct {
			Total       uint64  `json:"total"`
			OK          uint64  `json:"ok"`
			SuccessRate float64 `json:"success_rate"`
			BytesServed uint64  `json:"bytes_served"`
		} `json:"requests"`
		Uploads struct {
			Total uint64 `json:"total"`
		} `json:"uploads"`
		UptimeSecs *uint64 `json:"uptime_secs"`
	}
	require.NoError(t, json.Unmarshal(raw, &mon))
	assert.GreaterOrEqual(t, mon.Requests.Total, uint64(1))
	assert.GreaterOrEqual(t, mon.Requests.BytesServed, uint64(12))
	assert.NotNil(t, mon.UptimeSecs)
}

func TestMonitorDashboardHTML(t *testing.T) {
	_, base := startServer(t, nil)
	resp, body := httpGet(t, base+"/monitor")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "monitor/app.js")
}

func TestMetricsEndpoint(t *testing.T) {
	_, base := startServer(t, nil)
	resp, body := httpGet(t, base+"/metrics")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "irondrop_http_requests_total")
}

func TestStaticAssets(t *testing.T) {
	_, base := startServer(t, nil)

	resp, body := httpGet(t, base+"/_irondrop/static/directory/styles.css")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.NotEmpty(t, body)

	resp, _ = httpGet(t, base+"/_irondrop/static/absent.css")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	_, base := startServer(t, func(cfg *config.Config) {
		cfg.Username = "admin"
		cfg.Password = "hunter2"
	})

	resp, _ := httpGet(t, base+"/hello.txt")
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, `Basic realm="IronDrop"`, resp.Header.Get("WWW-Authenticate"))

	req, _ := http.NewRequest("GET", base+"/hello.txt", nil)
	req.SetBasicAuth("admin", "hunter2")
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = ok.Body.Close()
	assert.Equal(t, 200, ok.StatusCode)

	req, _ = http.NewRequest("GET", base+"/hello.txt", nil)
	req.SetBasicAuth("admin", "wrong")
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = bad.Body.Close()
	assert.Equal(t, 401, bad.StatusCode)
}

func TestRateLimit(t *testing.T) {
	_, base := startServer(t, func(cfg *config.Config) {
		cfg.RequestsPerMinute = 5
	})

	var last *http.Response
	for i := 0; i < 6; i++ {
		resp, _ := httpGet(t, base+"/_health")
		last = resp
	}
	assert.Equal(t, 429, last.StatusCode)
	retry := last.Header.Get("Retry-After")
	require.NotEmpty(t, retry)
	assert.Regexp(t, `^[1-9][0-9]?$|^60$`, retry)
}

func waitForIndex(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, _ := httpGet(t, base+"/_irondrop/search?q=probe")
		if resp.StatusCode != 503 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("index never became ready")
}

func TestSearchEndpoint(t *testing.T) {
	_, base := startServer(t, nil)
	waitForIndex(t, base)

	resp, body := httpGet(t, base+"/_irondrop/search?q=report")
	assert.Equal(t, 200, resp.StatusCode)

	var out struct {
		Status     string `json:"status"`
		Query      string `json:"query"`
		Results    []map[string]interface{} `json:"results"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
		SearchStats struct {
			EngineMode   string `json:"engine_mode"`
			IndexedFiles int    `json:"indexed_files"`
			CacheHit     bool   `json:"cache_hit"`
		} `json:"search_stats"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "report", out.Query)
	assert.Equal(t, "standard", out.SearchStats.EngineMode)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "report.pdf", out.Results[0]["name"])
	assert.Equal(t, "/docs/report.pdf", out.Results[0]["path"])

	// Second identical query hits the cache.
	_, body = httpGet(t, base+"/_irondrop/search?q=report")
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.SearchStats.CacheHit)
}

func TestSearchMissingQuery(t *testing.T) {
	_, base := startServer(t, nil)
	resp, _ := httpGet(t, base+"/_irondrop/search")
	assert.Equal(t, 400, resp.StatusCode)
}

func uploadRequest(t *testing.T, base, filename string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", base+"/_irondrop/upload", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", filename)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestUploadDisabled(t *testing.T) {
	srv, base := startServer(t, nil)

	resp := uploadRequest(t, base, "data.bin", []byte("payload"))
	_ = resp.Body.Close()
	assert.Equal(t, 405, resp.StatusCode)

	assert.Equal(t, uint64(0), srv.stats.Snapshot().UploadsTotal)
	entries, err := os.ReadDir(srv.root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "data.bin")
	}
}

func TestUploadCommit(t *testing.T) {
	srv, base := startServer(t, func(cfg *config.Config) {
		cfg.EnableUpload = true
	})

	payload := bytes.Repeat([]byte("u"), 1024)
	resp := uploadRequest(t, base, "data.bin", payload)
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode, string(raw))

	var out struct {
		Success  bool   `json:"success"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.Success)
	assert.Equal(t, "data.bin", out.Filename)
	assert.Equal(t, int64(1024), out.Size)

	got, err := os.ReadFile(filepath.Join(srv.root, "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	snap := srv.stats.Snapshot()
	assert.Equal(t, uint64(1), snap.FilesUploaded)
	assert.Equal(t, uint64(1024), snap.UploadBytesTotal)
}

func TestUploadsGetUniqueNames(t *testing.T) {
	srv, base := startServer(t, func(cfg *config.Config) {
		cfg.EnableUpload = true
	})

	const clients = 20
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := uploadRequest(t, base, "data.bin", bytes.Repeat([]byte("x"), 1024))
			_, _ = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			assert.Equal(t, 200, resp.StatusCode)
		}()
	}
	wg.Wait()

	names := map[string]bool{}
	entries, err := os.ReadDir(srv.root)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "data") {
			names[e.Name()] = true
		}
	}
	require.Len(t, names, clients, "every upload gets a distinct file")
	assert.True(t, names["data.bin"])
	assert.True(t, names["data_1.bin"])
	assert.True(t, names["data_19.bin"])

	assert.Equal(t, uint64(clients), srv.stats.Snapshot().FilesUploaded)
}

func TestUploadRejectsBadFilenames(t *testing.T) {
	_, base := startServer(t, func(cfg *config.Config) {
		cfg.EnableUpload = true
	})

	for _, name := range []string{"", "../evil.txt", "a/b.txt", ".hidden", "%2e%2e%2fup.txt"} {
		resp := uploadRequest(t, base, name, []byte("x"))
		_ = resp.Body.Close()
		assert.Equal(t, 400, resp.StatusCode, "filename %q", name)
	}
}

func TestUploadExtensionRejected(t *testing.T) {
	_, base := startServer(t, func(cfg *config.Config) {
		cfg.EnableUpload = true
		cfg.AllowedExtensions = []string{"*.txt"}
	})

	resp := uploadRequest(t, base, "malware.exe", []byte("x"))
	_ = resp.Body.Close()
	assert.Equal(t, 415, resp.StatusCode)
}

func TestUploadTooLarge(t *testing.T) {
	_, base := startServer(t, func(cfg *config.Config) {
		cfg.EnableUpload = true
		cfg.MaxUploadSizeMiB = 1
	})

	resp := uploadRequest(t, base, "big.bin", bytes.Repeat([]byte("x"), 2<<20))
	_ = resp.Body.Close()
	assert.Equal(t, 413, resp.StatusCode)
}

func TestUploadFormPage(t *testing.T) {
	_, base := startServer(t, func(cfg *config.Config) {
		cfg.EnableUpload = true
	})
	resp, body := httpGet(t, base+"/_irondrop/upload")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "X-Filename")
}

func TestLargeUploadSpoolsAndCommits(t *testing.T) {
	srv, base := startServer(t, func(cfg *config.Config) {
		cfg.EnableUpload = true
	})

	// 3MiB crosses the in-memory threshold; the body spools to disk and
	// commits by rename.
	payload := bytes.Repeat([]byte("L"), 3<<20)
	resp := uploadRequest(t, base, "large.bin", payload)
	_, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	got, err := os.ReadFile(filepath.Join(srv.root, "large.bin"))
	require.NoError(t, err)
	require.Equal(t, len(payload), len(got))

	// No spool leftovers.
	entries, err := os.ReadDir(srv.root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}
