//go:build linux

package server

import (
	"fmt"
	"syscall"

	"github.com/dev-harsh1998/irondrop/internal/ui"
)

// checkDiskSpace verifies sufficient space before committing an upload.
// Best effort: an unreadable statfs allows the operation.
func checkDiskSpace(path string, required int64) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	available := int64(stat.Bavail) * int64(stat.Bsize)
	// Keep 1GB headroom for the rest of the system.
	if available-required < 1<<30 {
		return fmt.Errorf("need %s, have %s available",
			ui.FormatBytes(required), ui.FormatBytes(available))
	}
	return nil
}
