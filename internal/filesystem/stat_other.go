//go:build !linux

package filesystem

import (
	"os"
	"time"
)

// CreationTime returns the modification time of a file.
func CreationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
