package filesystem

import (
	"errors"
	"os"
	"time"
)

// FS is the file-system surface used by the catalog engine.
type FS interface {
	ReadDir(path string) ([]os.DirEntry, error)
	ReadFile(path string) ([]byte, error)
	Stat(path string) (os.FileInfo, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Remove(path string) error
	MkdirAll(path string, perm os.FileMode) error
	Exists(path string) bool
	SetModTime(path string, modTime time.Time) error
}

// OS implements FS on the local file system.
type OS struct {
	retry RetryConfig
}

// NewOS returns an OS file system using config for stale handle retries.
func NewOS(config RetryConfig) *OS {
	return &OS{retry: config}
}

// ReadDir lists a directory sorted by name.
func (o *OS) ReadDir(path string) ([]os.DirEntry, error) {
	return withRetry("readdir", path, o.retry, func() ([]os.DirEntry, error) {
		return os.ReadDir(path)
	})
}

// ReadFile reads a whole file.
func (o *OS) ReadFile(path string) ([]byte, error) {
	return withRetry("read", path, o.retry, func() ([]byte, error) {
		return os.ReadFile(path)
	})
}

// Stat returns file info.
func (o *OS) Stat(path string) (os.FileInfo, error) {
	return withRetry("stat", path, o.retry, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// WriteFile writes data to path, creating or truncating it.
func (o *OS) WriteFile(path string, data []byte, perm os.FileMode) error {
	_, err := withRetry("write", path, o.retry, func() (struct{}, error) {
		return struct{}{}, os.WriteFile(path, data, perm)
	})
	return err
}

// Remove deletes a file. A missing file is not an error.
func (o *OS) Remove(path string) error {
	_, err := withRetry("remove", path, o.retry, func() (struct{}, error) {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		return struct{}{}, err
	})
	return err
}

// MkdirAll creates a directory and its parents.
func (o *OS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Exists reports whether path exists.
func (o *OS) Exists(path string) bool {
	_, err := o.Stat(path)
	return err == nil
}

// SetModTime sets the modification time of a file. Used to carry the
// source timestamp over to synchronised copies.
func (o *OS) SetModTime(path string, modTime time.Time) error {
	return os.Chtimes(path, modTime, modTime)
}
