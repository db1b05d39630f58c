// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [Load] layers the configuration, later sources winning:
//
//  1. built-in defaults ([DefaultConfig])
//  2. the TOML file named by CATALOG_CONFIG
//  3. a .env file in the working directory
//  4. the process environment
//
// Supported environment variables:
//
//   - CATALOG_DATA_DIR: Catalog storage directory (default: ./data)
//   - CATALOG_TABLES_FOLDER, CATALOG_BLOBS_FOLDER: Storage sub-folder names
//   - CATALOG_SEPARATOR: Table field separator (default: |)
//   - CATALOG_ROOTS: Folders to catalog, separated like PATH
//   - CATALOG_EXEMPTED_FOLDER: Folder subtree never catalogued
//   - CATALOG_BATCH_SIZE: Assets built before each save (default: 100)
//   - CATALOG_COOLDOWN: Time between catalog passes, a Go duration or minutes (default: 2m)
//   - CATALOG_BACKUPS_TO_KEEP: Daily backups kept (default: 2)
//   - CATALOG_THUMBNAIL_MAX_WIDTH, CATALOG_THUMBNAIL_MAX_HEIGHT: Thumbnail bounds (default: 200x150)
//   - CATALOG_SKIP_THUMBNAILS, CATALOG_USE_PHASH, CATALOG_USE_DHASH, CATALOG_USE_MD5
//   - CATALOG_ANALYSE_VIDEOS: Extract a frame from videos with FFmpeg (default: true)
//   - CATALOG_THUMBNAIL_CACHE_SIZE, CATALOG_RECENT_PATHS_MAX, CATALOG_SIMILARITY_THRESHOLD
//   - CATALOG_FFMPEG_PATH, CATALOG_FFPROBE_PATH
//   - CATALOG_PORT: HTTP server port (default: 8080)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Invalid values are reported as [*ConfigError].
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LoadConfig]: Settings summary, data directory and root checks
//   - [LogStorageInit], [LogVideoInit], [LogSchedulerStarted]: Component startup
//   - [LogRoutes]: Served routes grouped by API area
//   - [LogListening]: Listen address and startup duration
//   - [BeginShutdown]: Graceful shutdown steps
package startup
