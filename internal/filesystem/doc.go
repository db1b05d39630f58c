/*
Package filesystem is the file-system surface consumed by the catalog
engine, with automatic retry for NFS stale file handle errors.

# Purpose

Photo libraries often live on network mounts. Reads that hit ESTALE
(stale file handle) during server-side changes are retried with
exponential backoff instead of marking a perfectly good file as
unreadable.

# Key Features

  - FS interface (list, read, write, delete, stat, exists) so the indexer,
    the asset builder and the sync executor can run against fakes in tests
  - OS implementation with retry on ESTALE (errno 116) for every call
  - Configurable retry attempts (default: 3) and backoff timings
  - Retry counters exported through the metrics package

# Usage

	fsys := filesystem.NewOS(filesystem.DefaultRetryConfig())

	entries, err := fsys.ReadDir("/nfs/photos/2024")
	if err != nil {
	    return err
	}
	data, err := fsys.ReadFile("/nfs/photos/2024/IMG_0001.jpg")
*/
package filesystem
