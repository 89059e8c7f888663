package logingest

import (
	"os"
	"syscall"
)

// inodeOf extracts the inode number from a FileInfo's platform-specific
// Sys() value, used to detect log rotation (spec §4.8 "re-opening on inode
// change").
func inodeOf(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
