package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-harsh1998/irondrop/internal/errors"
)

func TestPercentRoundTrip(t *testing.T) {
	inputs := []string{
		"plain.txt",
		"with space.bin",
		"quotes\"and'hash#.log",
		"per%cent?.dat",
		"unicode-éü.txt",
		"<angle>.html",
	}
	for _, s := range inputs {
		decoded, err := PercentDecode(PercentEncodePathComponent(s))
		require.NoError(t, err, s)
		assert.Equal(t, s, decoded)
	}
}

func TestPercentDecodeRejectsBadEscapes(t *testing.T) {
	for _, s := range []string{"%", "%2", "%zz", "abc%g1"} {
		_, err := PercentDecode(s)
		assert.Error(t, err, s)
	}
}

func TestPercentDecodeLeavesPlus(t *testing.T) {
	got, err := PercentDecode("a+b")
	require.NoError(t, err)
	assert.Equal(t, "a+b", got)
}

func TestHTMLEscapeSinglePass(t *testing.T) {
	in := `<a href="x">Tom & Jerry's</a>`
	want := "&lt;a href=&quot;x&quot;&gt;Tom &amp; Jerry&#39;s&lt;/a&gt;"
	assert.Equal(t, want, HTMLEscape(in))

	// Not idempotent: a second pass re-escapes the ampersands.
	assert.NotEqual(t, want, HTMLEscape(want))
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*", "anything.txt", true},
		{"*.txt", "notes.TXT", true},
		{"*.txt", "notes.txt.bak", false},
		{"report_?.csv", "report_1.csv", true},
		{"report_?.csv", "report_12.csv", false},
		{"*.tar.*", "backup.tar.gz", true},
		{"", "", true},
		{"", "x", false},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "ac", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, GlobMatch(c.pattern, c.name), "%s vs %s", c.pattern, c.name)
	}
}

func confinedRoot(t *testing.T) string {
	t.Helper()
	root, err := CanonicalRoot(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestConfineAcceptsDescendants(t *testing.T) {
	root := confinedRoot(t)
	sub := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	file := filepath.Join(sub, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	got, err := Confine(root, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, file, got)

	got, err = Confine(root, "/")
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestConfineNormalizesDotSegments(t *testing.T) {
	root := confinedRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))

	got, err := Confine(root, "/a/./b/../b/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "b"), got)
}

func TestConfineRejectsEscapes(t *testing.T) {
	root := confinedRoot(t)
	for _, p := range []string{"/../etc/passwd", "/a/../../x", "/.."} {
		_, err := Confine(root, p)
		require.Error(t, err, p)
		assert.Equal(t, errors.KindForbidden, errors.KindOf(err), p)
	}
}

func TestConfineRejectsNUL(t *testing.T) {
	root := confinedRoot(t)
	_, err := Confine(root, "/a\x00b")
	require.Error(t, err)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))
}

func TestConfineMissingPathIsNotFound(t *testing.T) {
	root := confinedRoot(t)
	_, err := Confine(root, "/no/such/file")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestConfineRejectsSymlinkEscape(t *testing.T) {
	root := confinedRoot(t)
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("s"), 0o644))
	link := filepath.Join(root, "leak")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := Confine(root, "/leak/secret.txt")
	require.Error(t, err)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))
}
