package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-harsh1998/irondrop/internal/errors"
)

func TestSanitizeFilename(t *testing.T) {
	good := []string{"a.txt", "report (1).pdf", "UPPER.ZIP", "no-extension"}
	for _, name := range good {
		got, err := sanitizeFilename(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, got)
	}

	bad := []string{
		"",
		"a/b.txt",
		`a\b.txt`,
		"..",
		".",
		".bashrc",
		"c:autoexec.bat",
		"C:\\boot.ini",
		"nul\x00byte",
		"ctrl\x01char",
		"%2e%2e%2fescape",
		string(make([]byte, 300)),
	}
	for _, name := range bad {
		_, err := sanitizeFilename(name)
		require.Error(t, err, "%q", name)
		assert.Equal(t, errors.KindBadRequest, errors.KindOf(err), "%q", name)
	}
}

func TestSanitizeFilenameDecodesPercent(t *testing.T) {
	got, err := sanitizeFilename("my%20file.txt")
	require.NoError(t, err)
	assert.Equal(t, "my file.txt", got)
}

func TestCreateUniqueSequence(t *testing.T) {
	dir := t.TempDir()

	var paths []string
	for i := 0; i < 3; i++ {
		path, f, err := createUnique(dir, "data.bin")
		require.NoError(t, err)
		require.NoError(t, f.Close())
		paths = append(paths, filepath.Base(path))
	}
	assert.Equal(t, []string{"data.bin", "data_1.bin", "data_2.bin"}, paths)
}

func TestCreateUniqueKeepsExistingContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), []byte("original"), 0o644))

	path, f, err := createUnique(dir, "data.bin")
	require.NoError(t, err)
	_ = f.Close()
	assert.Equal(t, "data_1.bin", filepath.Base(path))

	original, err := os.ReadFile(filepath.Join(dir, "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(original))
}

func TestMimeByExtension(t *testing.T) {
	assert.Equal(t, "text/plain; charset=utf-8", mimeByExtension("a.txt"))
	assert.Equal(t, "application/pdf", mimeByExtension("b.PDF"))
	assert.Equal(t, "video/mp4", mimeByExtension("c.mp4"))
	assert.Equal(t, "application/zip", mimeByExtension("d.zip"))
	assert.Equal(t, "application/octet-stream", mimeByExtension("e.unknown"))
	assert.Equal(t, "application/octet-stream", mimeByExtension("no-ext"))
}

func TestExtensionAllowed(t *testing.T) {
	assert.True(t, extensionAllowed("a.txt", []string{"*"}))
	assert.True(t, extensionAllowed("a.TXT", []string{"*.txt"}))
	assert.True(t, extensionAllowed("a.pdf", []string{"*.txt", "*.pdf"}))
	assert.False(t, extensionAllowed("a.exe", []string{"*.txt", "*.pdf"}))
	assert.True(t, extensionAllowed("anything", nil))
}

func TestEtagIsStableAndMetadataSensitive(t *testing.T) {
	f := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(f, []byte("abc"), 0o644))
	info, err := os.Stat(f)
	require.NoError(t, err)

	a := etagFor("x.txt", info.Size(), info.ModTime())
	b := etagFor("x.txt", info.Size(), info.ModTime())
	assert.Equal(t, a, b, "same metadata, same tag")

	c := etagFor("x.txt", info.Size()+1, info.ModTime())
	assert.NotEqual(t, a, c, "size participates in the tag")

	assert.True(t, len(a) > 2 && a[0] == '"' && a[len(a)-1] == '"', "quoted opaque string")
}
