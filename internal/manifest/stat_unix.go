//go:build unix

package manifest

import (
	"os"
	"syscall"
)

func inodeOf(info os.FileInfo) (uint64, bool) {
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		return sys.Ino, true
	}
	return 0, false
}
