package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/duplicates"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/handlers"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
	"media-catalog/internal/middleware"
	"media-catalog/internal/startup"
	"media-catalog/internal/storage"
	"media-catalog/internal/syncassets"

	"github.com/gorilla/mux"
)

// statsInterval is how often the catalog gauges are refreshed.
const statsInterval = time.Minute

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Load the catalog
	storageStart := time.Now()
	store := storage.New()
	if err := store.Initialize(config.DataDir, config.SeparatorRune(), config.TablesFolderName, config.BlobsFolderName); err != nil {
		startup.LogFatal("Failed to initialize storage: %v", err)
	}
	repo, err := catalog.NewRepository(store, config.RepositoryOptions())
	if err != nil {
		startup.LogFatal("Failed to load catalog: %v", err)
	}
	startup.LogStorageInit(time.Since(storageStart), repo.GetAssetsCounter())

	seedSyncDefinitions(repo, config)

	fsys := filesystem.NewOS(filesystem.DefaultRetryConfig())

	// Video frames
	var frames media.FrameExtractor
	if startup.LogVideoInit(config) {
		frames = media.NewFFmpegExtractor(config.FFmpegPath, config.FFprobePath)
	}
	builder := media.NewAssetBuilder(fsys, frames, config.BuilderOptions(), nil)

	idx := indexer.New(repo, fsys, builder, config.IndexerOptions())

	events := handlers.NewEventFeed(handlers.DefaultEventFeedSize)
	scheduler := indexer.NewScheduler(idx, config.Cooldown, events.Add)
	if err := scheduler.Start(); err != nil {
		startup.LogFatal("Failed to start catalog scheduler: %v", err)
	}
	startup.LogSchedulerStarted(config)

	// Metrics
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	collector := metrics.NewCollector(duplicates.NewFinder(repo), statsInterval)
	collector.Start()

	// Initialize handlers
	h := handlers.New(repo, idx, scheduler, syncassets.New(fsys), events, config)

	// Setup router
	router := setupRouter(h)
	startup.LogRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, scheduler, collector)

	startup.LogListening(config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// seedSyncDefinitions stores the configured sync definitions when the
// catalog has none yet.
func seedSyncDefinitions(repo *catalog.Repository, config *startup.Config) {
	if len(config.SyncDefinitions) == 0 || len(repo.GetSyncAssetsConfiguration()) > 0 {
		return
	}
	if err := repo.SaveSyncAssetsConfiguration(config.SyncDefinitions); err != nil {
		logging.Warn("Failed to store configured sync definitions: %v", err)
		return
	}
	logging.Info("  [OK] Stored %d sync definition(s) from configuration", len(config.SyncDefinitions))
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.GetVersion).Methods("GET")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/events", h.GetEvents).Methods("GET")
	api.HandleFunc("/catalog", h.TriggerCatalog).Methods("POST")

	// Assets
	api.HandleFunc("/assets", h.GetAssets).Methods("GET")
	api.HandleFunc("/assets", h.CreateAsset).Methods("POST")
	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods("GET")

	// Duplicates
	api.HandleFunc("/duplicates", h.GetDuplicates).Methods("GET")
	api.HandleFunc("/duplicates/similar", h.GetSimilar).Methods("GET")

	// Settings
	api.HandleFunc("/sync-definitions", h.GetSyncDefinitions).Methods("GET")
	api.HandleFunc("/sync-definitions", h.PutSyncDefinitions).Methods("PUT")
	api.HandleFunc("/sync-definitions/run", h.RunSyncDefinitions).Methods("POST")
	api.HandleFunc("/recent-paths", h.GetRecentPaths).Methods("GET")
	api.HandleFunc("/recent-paths", h.AddRecentPath).Methods("POST")

	return r
}

func handleShutdown(srv *http.Server, scheduler *indexer.Scheduler, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	shutdown := startup.BeginShutdown(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdown.Step("Stop catalog scheduler", func() error {
		scheduler.Stop()
		return nil
	})
	shutdown.Step("Stop stats collector", func() error {
		collector.Stop()
		return nil
	})
	shutdown.Step("Stop HTTP server", func() error {
		return srv.Shutdown(ctx)
	})
	shutdown.Done()
}
