// Package metrics provides Prometheus instrumentation for the media catalog.
//
// All metrics are prefixed with "media_catalog_" to avoid naming collisions
// with other applications. They are registered on the default registry via
// promauto and exposed by the daemon on /metrics.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight requests of the JSON API
//   - Storage: flat-file table, blob and backup operation counts and durations
//   - Indexer: catalog passes, asset changes, folders inspected, corrupted assets
//   - Thumbnail: generation counts and durations, folder blob cache hits/misses
//   - Catalog: gauges refreshed by the Collector from the repository
//   - Sync: files copied or deleted by sync-folder definitions
//   - Filesystem: stale file handle retries
//
// The Collector polls a StatsProvider on a fixed interval and updates the
// catalog gauges, so scrapes never touch the repository directly.
package metrics
