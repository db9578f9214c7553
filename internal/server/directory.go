package server

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dev-harsh1998/irondrop/internal/errors"
	"github.com/dev-harsh1998/irondrop/internal/httpcore"
	"github.com/dev-harsh1998/irondrop/internal/pathutil"
	"github.com/dev-harsh1998/irondrop/internal/ui"
)

// listEntry is one row of a directory listing.
type listEntry struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

// handleDirectory renders the listing for a confined directory path.
func (s *Server) handleDirectory(rw *httpcore.ResponseWriter, req *httpcore.Request, dir string) error {
	entries, err := listDirectory(dir)
	if err != nil {
		return errors.Internal("directory enumeration failed", err)
	}

	urlPath := req.Target
	if !strings.HasSuffix(urlPath, "/") {
		urlPath += "/"
	}

	uploadLink := ""
	uploadEnabled := "false"
	if s.cfg.EnableUpload {
		uploadLink = `<a href="/_irondrop/upload">Upload</a>`
		uploadEnabled = "true"
	}

	page, err := s.renderer.Render("directory", map[string]string{
		"PATH":           pathutil.HTMLEscape(urlPath),
		"ENTRY_COUNT":    strconv.Itoa(len(entries)),
		"ENTRIES":        buildRows(urlPath, entries),
		"UPLOAD_ENABLED": uploadEnabled,
		"UPLOAD_LINK":    uploadLink,
		"CURRENT_PATH":   pathutil.HTMLEscape(urlPath),
	})
	if err != nil {
		return errors.Internal("listing render failed", err)
	}

	return rw.WriteFull(200, "text/html; charset=utf-8", page)
}

// listDirectory enumerates direct children, filtering hidden entries, and
// sorts directories first, then files, case-insensitively by name.
func listDirectory(dir string) ([]listEntry, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]listEntry, 0, len(children))
	for _, child := range children {
		name := child.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		info, err := child.Info()
		if err != nil {
			continue
		}
		e := listEntry{
			name:    name,
			modTime: info.ModTime(),
			isDir:   child.IsDir(),
		}
		if !child.IsDir() {
			e.size = info.Size()
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return strings.ToLower(entries[i].name) < strings.ToLower(entries[j].name)
	})
	return entries, nil
}

// buildRows pre-builds the table rows handed to the template.
func buildRows(urlPath string, entries []listEntry) string {
	var b strings.Builder
	if urlPath != "/" {
		b.WriteString(`      <tr><td><a href="../">../</a></td><td class="size"></td><td class="mtime"></td></tr>` + "\n")
	}
	for _, e := range entries {
		href := pathutil.PercentEncodePathComponent(e.name)
		display := pathutil.HTMLEscape(e.name)
		size := ui.FormatBytes(e.size)
		if e.isDir {
			href += "/"
			display += "/"
			size = "–"
		}
		b.WriteString(`      <tr><td><a href="` + href + `">` + display + `</a></td>`)
		b.WriteString(`<td class="size">` + size + `</td>`)
		b.WriteString(`<td class="mtime">` + e.modTime.Format("2006-01-02 15:04") + `</td></tr>` + "\n")
	}
	return b.String()
}
