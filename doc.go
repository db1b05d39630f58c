// Package main provides the entry point for the media catalog service.
//
// The service keeps a catalog of the photos and videos below a set of root
// folders: content hashes, optional perceptual hashes and a thumbnail per
// file, stored as flat files under the data directory.
//
// # Application Lifecycle
//
//  1. Configuration Loading: defaults, TOML file, .env and environment
//  2. Catalog Loading: opens the tables and blobs under DATA_DIR
//  3. Component Initialization:
//     - Asset builder, with FFmpeg frame extraction when available
//     - Indexer and its scheduler, one pass every cooldown
//     - Metrics collector
//  4. HTTP Server Setup: routes, request metrics and access logging
//  5. Graceful Shutdown: SIGINT/SIGTERM cancels the running pass, whose
//     current batch is still saved, then stops the server
//
// # HTTP API
//
//   - GET /health, GET /api/status, GET /api/version
//   - POST /api/catalog, GET /api/events
//   - GET /api/assets?dir=, POST /api/assets, GET /api/thumbnail
//   - GET /api/duplicates, GET /api/duplicates/similar
//   - GET|PUT /api/sync-definitions, POST /api/sync-definitions/run
//   - GET|POST /api/recent-paths
//   - GET /metrics
//
// One-shot operations are available from the catalogctl command.
//
// # Related Packages
//
//   - [media-catalog/internal/storage]: Flat-file tables, blobs and backups
//   - [media-catalog/internal/catalog]: Folders, assets and settings
//   - [media-catalog/internal/indexer]: Catalog passes and scheduling
//   - [media-catalog/internal/handlers]: HTTP request handlers
//   - [media-catalog/internal/startup]: Configuration and initialization
package main
