package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Storage metrics
var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_storage_operations_total",
			Help: "Total number of flat-file storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_storage_operation_duration_seconds",
			Help:    "Flat-file storage operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	BackupsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_backups_written_total",
			Help: "Total number of catalog backups written",
		},
	)

	BackupsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_backups_deleted_total",
			Help: "Total number of old catalog backups removed by retention",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_indexer_runs_total",
			Help: "Total number of catalog passes",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_indexer_last_run_timestamp",
			Help: "Timestamp of the last catalog pass",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_indexer_last_run_duration_seconds",
			Help: "Duration of the last catalog pass in seconds",
		},
	)

	IndexerAssetChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_indexer_asset_changes_total",
			Help: "Total number of asset changes applied by the indexer",
		},
		[]string{"change"}, // "added", "updated", "deleted", "touched"
	)

	IndexerFoldersInspected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_indexer_folders_inspected_total",
			Help: "Total number of folders inspected by the indexer",
		},
	)

	IndexerCorruptedAssets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_indexer_corrupted_assets_total",
			Help: "Total number of assets catalogued as corrupted",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_indexer_errors_total",
			Help: "Total number of catalog passes that ended with an error",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_indexer_running",
			Help: "Whether a catalog pass is currently running (1 = running, 0 = idle)",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"type", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_thumbnail_cache_hits_total",
			Help: "Total number of folder thumbnail blob cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_thumbnail_cache_misses_total",
			Help: "Total number of folder thumbnail blob cache misses",
		},
	)

	VideoFrameExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_video_frame_extractions_total",
			Help: "Total number of first-frame extractions from videos",
		},
		[]string{"status"},
	)
)

// Catalog metrics
var (
	CatalogAssetsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_assets_total",
			Help: "Number of catalogued assets",
		},
	)

	CatalogFoldersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_folders_total",
			Help: "Number of catalogued folders",
		},
	)

	CatalogCorruptedTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_corrupted_assets",
			Help: "Number of catalogued assets flagged as corrupted",
		},
	)

	CatalogDuplicateSets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_duplicate_sets",
			Help: "Number of duplicate sets (assets sharing a content hash)",
		},
	)
)

// Sync-folders metrics
var (
	SyncFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_sync_files_total",
			Help: "Total number of files copied or deleted by sync definitions",
		},
		[]string{"action"}, // "copied", "deleted", "failed"
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries after stale file handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors observed",
		},
		[]string{"operation"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// ObserveStorage records the outcome and duration of a storage operation.
func ObserveStorage(operation string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(seconds)
}
