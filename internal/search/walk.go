// Package search maintains the in-memory file-name index and answers
// substring, token-prefix, and fuzzy queries against it. Two index layouts
// exist: a fully materialized one for small trees and an 11-byte-per-entry
// compact one for large trees. The published index is swapped atomically;
// readers keep whatever generation they loaded.
package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Walk bounds.
const (
	DefaultMaxIndexedEntries = 10_000_000
	DefaultMaxDepth          = 20
)

// walkEntry is the mode-independent output of a tree walk. Parent is the
// index of the containing directory in the emitted slice; the root is entry
// 0 and is its own parent.
type walkEntry struct {
	name    string
	parent  uint32
	size    int64
	modTime time.Time
	isDir   bool
}

// walkTree enumerates root breadth-first, skipping hidden entries, bounded
// by maxEntries and maxDepth. Entry 0 is the root itself with an empty
// name.
func walkTree(ctx context.Context, root string, maxEntries, maxDepth int) ([]walkEntry, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxIndexedEntries
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	entries := []walkEntry{{name: "", parent: 0, isDir: true}}

	type dirItem struct {
		path  string
		id    uint32
		depth int
	}
	queue := []dirItem{{path: root, id: 0, depth: 0}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := queue[0]
		queue = queue[1:]
		if item.depth >= maxDepth {
			continue
		}

		children, err := os.ReadDir(item.path)
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			continue
		}

		for _, child := range children {
			name := child.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			if len(entries) >= maxEntries {
				return entries, nil
			}

			info, err := child.Info()
			if err != nil {
				continue
			}

			id := uint32(len(entries))
			we := walkEntry{
				name:    name,
				parent:  item.id,
				modTime: info.ModTime(),
				isDir:   child.IsDir(),
			}
			if !child.IsDir() {
				we.size = info.Size()
			}
			entries = append(entries, we)

			if child.IsDir() {
				queue = append(queue, dirItem{
					path:  filepath.Join(item.path, name),
					id:    id,
					depth: item.depth + 1,
				})
			}
		}
	}

	return entries, nil
}
