package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherContainsRegisteredFamilies(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "download", "200").Inc()
	UploadsTotal.WithLabelValues("bin", "success").Inc()
	IndexedEntries.Set(42)

	out, err := Gather()
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "irondrop_http_requests_total")
	assert.Contains(t, text, "irondrop_uploads_total")
	assert.Contains(t, text, "irondrop_indexed_entries 42")
}

func TestGatherIsTextExposition(t *testing.T) {
	out, err := Gather()
	require.NoError(t, err)
	// Every family carries HELP and TYPE comment lines.
	assert.True(t, strings.Contains(string(out), "# HELP"))
	assert.True(t, strings.Contains(string(out), "# TYPE"))
	assert.Contains(t, ContentType, "version=0.0.4")
}
