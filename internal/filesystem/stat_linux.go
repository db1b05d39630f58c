//go:build linux

package filesystem

import (
	"os"
	"syscall"
	"time"
)

// CreationTime returns the inode change time of a file, the closest to a
// creation time that Linux file systems expose through stat. It falls back
// to the modification time.
func CreationTime(info os.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
}
