package server

import (
	"path/filepath"
	"strings"

	"github.com/dev-harsh1998/irondrop/internal/pathutil"
)

// mimeTypes maps lower-cased extensions to Content-Type values. Unknown
// extensions fall back to application/octet-stream.
var mimeTypes = map[string]string{
	// text
	"txt":  "text/plain; charset=utf-8",
	"md":   "text/markdown; charset=utf-8",
	"html": "text/html; charset=utf-8",
	"htm":  "text/html; charset=utf-8",
	"css":  "text/css; charset=utf-8",
	"csv":  "text/csv; charset=utf-8",
	"log":  "text/plain; charset=utf-8",
	"xml":  "application/xml",
	"json": "application/json",
	"js":   "application/javascript",
	"yaml": "application/yaml",
	"yml":  "application/yaml",

	// images
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"bmp":  "image/bmp",
	"ico":  "image/x-icon",

	// audio
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
	"m4a":  "audio/mp4",

	// video
	"mp4":  "video/mp4",
	"mkv":  "video/x-matroska",
	"webm": "video/webm",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",

	// archives
	"zip": "application/zip",
	"tar": "application/x-tar",
	"gz":  "application/gzip",
	"bz2": "application/x-bzip2",
	"xz":  "application/x-xz",
	"7z":  "application/x-7z-compressed",
	"rar": "application/vnd.rar",

	// application
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"wasm": "application/wasm",
	"bin":  "application/octet-stream",
	"iso":  "application/octet-stream",
}

// mimeByExtension resolves the Content-Type for a filename.
func mimeByExtension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if m, ok := mimeTypes[ext]; ok {
		return m
	}
	return "application/octet-stream"
}

// fileExt returns the lower-cased extension for metric labels, "no_ext"
// when absent.
func fileExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return "no_ext"
	}
	return ext
}

// compressible extensions get gzip when the client accepts it.
var compressibleExts = map[string]bool{
	"txt": true, "json": true, "xml": true, "html": true, "htm": true,
	"css": true, "js": true, "csv": true, "log": true, "md": true,
	"yaml": true, "yml": true, "svg": true,
}

func isCompressible(name string) bool {
	return compressibleExts[strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))]
}

// extensionAllowed checks a name against the configured glob list,
// case-insensitively.
func extensionAllowed(name string, globs []string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if g == "*" {
			return true
		}
		// Globs may target the extension ("*.txt") or the whole name.
		if pathutil.GlobMatch(g, name) {
			return true
		}
	}
	return false
}
