package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMapping(t *testing.T) {
	cases := []struct {
		kind   Kind
		status int
		text   string
	}{
		{KindBadRequest, 400, "Bad Request"},
		{KindUnauthorized, 401, "Unauthorized"},
		{KindForbidden, 403, "Forbidden"},
		{KindNotFound, 404, "Not Found"},
		{KindMethodNotAllowed, 405, "Method Not Allowed"},
		{KindRequestTimeout, 408, "Request Timeout"},
		{KindPayloadTooLarge, 413, "Payload Too Large"},
		{KindUnsupportedMediaType, 415, "Unsupported Media Type"},
		{KindRangeNotSatisfiable, 416, "Range Not Satisfiable"},
		{KindTooManyRequests, 429, "Too Many Requests"},
		{KindInternal, 500, "Internal Server Error"},
		{KindServiceUnavailable, 503, "Service Unavailable"},
	}
	for _, c := range cases {
		assert.Equal(t, c.status, HTTPStatus(c.kind))
		assert.Equal(t, c.text, StatusText(c.kind))
	}
}

func TestKindOfUnwrapsChains(t *testing.T) {
	inner := Forbidden("path escapes root")
	wrapped := fmt.Errorf("dispatch: %w", inner)
	require.Equal(t, KindForbidden, KindOf(wrapped))
}

func TestKindOfUnknownErrorIsInternal(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(fmt.Errorf("plain failure")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Internal("upload commit failed", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upload commit failed")
	assert.Contains(t, err.Error(), "disk full")
}
