// Package logging provides a simple leveled logging interface for the
// media catalog.
//
// It supports the following log levels:
//   - DEBUG: Verbose per-file detail
//   - INFO: Catalog passes, backups, configuration
//   - WARN: Per-file failures that do not stop a pass
//   - ERROR: Storage failures and failed passes
//   - FATAL: Configuration errors that terminate the process
//
// The log level is read from the LOG_LEVEL (or DEBUG) environment variable
// on first use and can be overridden with SetLevel once the configuration
// file has been loaded.
package logging
