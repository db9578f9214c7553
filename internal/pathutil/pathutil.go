// Package pathutil holds the byte-level codecs and the path confinement
// check. Everything that touches a client-supplied path goes through
// Confine before the filesystem sees it.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dev-harsh1998/irondrop/internal/errors"
)

const hexDigits = "0123456789ABCDEF"

// PercentDecode decodes %XX escapes in s. '+' is left untouched since the
// input is a path component, not a query string.
func PercentDecode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated percent escape at offset %d", i)
		}
		hi := unhex(s[i+1])
		lo := unhex(s[i+2])
		if hi < 0 || lo < 0 {
			return "", fmt.Errorf("invalid percent escape %q", s[i:i+3])
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), nil
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// PercentEncodePathComponent encodes a single path component for use in a
// URL. Space, the double and single quotes, '<', '>', '%', '?', '#', control
// bytes, and any non-ASCII byte are escaped; '&' is left as is.
func PercentEncodePathComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	switch c {
	case ' ', '"', '\'', '#', '%', '<', '>', '?':
		return true
	}
	return c < 0x20 || c > 0x7e
}

// HTMLEscape replaces the five HTML-significant characters with entities.
// Not idempotent: escaping already-escaped text escapes the ampersands
// again. Callers must escape exactly once.
func HTMLEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#39;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GlobMatch reports whether name matches pattern. Only '*' and '?' are
// special; matching is case-insensitive.
func GlobMatch(pattern, name string) bool {
	p := strings.ToLower(pattern)
	n := strings.ToLower(name)

	// Iterative matcher with single-star backtracking.
	pi, ni := 0, 0
	star, mark := -1, 0
	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = ni
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ni = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// CanonicalRoot resolves a served root to its canonical absolute form.
// Called once at startup; the result is the prefix every confined path must
// carry.
func CanonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	return resolved, nil
}

// Confine maps a decoded request path onto the filesystem beneath root and
// verifies the result cannot escape it. root must already be canonical
// (CanonicalRoot). The returned path is absolute and symlink-resolved.
func Confine(root, requestPath string) (string, error) {
	if strings.IndexByte(requestPath, 0) >= 0 {
		return "", errors.Forbidden("path contains NUL byte")
	}

	segments := strings.Split(requestPath, "/")
	clean := make([]string, 0, len(segments))
	depth := 0
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", errors.Forbidden("path escapes served root")
			}
			clean = clean[:len(clean)-1]
		default:
			clean = append(clean, seg)
			depth++
		}
	}

	joined := filepath.Join(append([]string{root}, clean...)...)

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("path does not exist")
		}
		return "", errors.Wrap(errors.KindForbidden, "path resolution failed", err)
	}

	if resolved != root && !strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
		return "", errors.Forbidden("resolved path escapes served root")
	}
	return resolved, nil
}
