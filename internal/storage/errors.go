package storage

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema marks a malformed table schema. It is a configuration
// error and is never retried.
var ErrInvalidSchema = errors.New("invalid table schema")

// ErrNotInitialized is returned when an operation runs before Initialize.
var ErrNotInitialized = errors.New("storage not initialized")

// ErrUnstorableValue marks a value that cannot be written to a table with
// the configured separator.
var ErrUnstorableValue = errors.New("value cannot be stored")

// maxRawContext bounds the payload copied into an Error.
const maxRawContext = 256

// Error wraps a storage failure with the context needed to diagnose it.
type Error struct {
	Op        string
	Directory string
	Separator string
	Path      string
	Raw       string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("storage %s failed (directory=%q, separator=%q", e.Op, e.Directory, e.Separator)
	if e.Path != "" {
		msg += fmt.Sprintf(", path=%q", e.Path)
	}
	if e.Raw != "" {
		msg += fmt.Sprintf(", raw=%q", e.Raw)
	}
	return msg + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func truncateRaw(raw string) string {
	if len(raw) <= maxRawContext {
		return raw
	}
	return raw[:maxRawContext] + "..."
}
