package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-catalog/internal/indexer"
	"media-catalog/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Ready       bool   `json:"ready"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Indexing    bool   `json:"indexing"`
	LastIndexed string `json:"lastIndexed,omitempty"`
	LastError   string `json:"lastError,omitempty"`

	// Progress info
	FoldersInspected int64 `json:"foldersInspected"`
	AssetsProcessed  int64 `json:"assetsProcessed"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalAssets    int `json:"totalAssets"`
	TotalFolders   int `json:"totalFolders"`
	TotalCorrupted int `json:"totalCorrupted"`
}

// HealthCheck returns the health status of the service. It answers 503
// until the first catalog pass has finished.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	healthStatus := h.indexer.GetHealthStatus()
	stats := h.repo.GetStats()

	response := HealthResponse{
		Ready:            healthStatus.Ready,
		Version:          startup.Version,
		Uptime:           healthStatus.Uptime,
		Indexing:         healthStatus.Indexing,
		FoldersInspected: healthStatus.FoldersInspected,
		AssetsProcessed:  healthStatus.AssetsProcessed,
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
		TotalAssets:      stats.TotalAssets,
		TotalFolders:     stats.TotalFolders,
		TotalCorrupted:   stats.TotalCorrupted,
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if !healthStatus.LastIndexed.IsZero() {
		response.LastIndexed = healthStatus.LastIndexed.Format(time.RFC3339)
	}

	if healthStatus.LastError != "" {
		response.LastError = healthStatus.LastError
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthStatus.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// StatusResponse describes the catalog and the running pass.
type StatusResponse struct {
	Progress    indexer.IndexProgress `json:"progress"`
	Indexing    bool                  `json:"indexing"`
	LastIndexed string                `json:"lastIndexed,omitempty"`
	Stats       map[string]int        `json:"stats"`
	Build       startup.BuildInfo     `json:"build"`
}

// GetStatus returns pass progress and catalog statistics
func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	stats := h.finder.GetStats()

	response := StatusResponse{
		Progress: h.indexer.GetProgress(),
		Indexing: h.indexer.IsIndexing(),
		Stats: map[string]int{
			"assets":        stats.TotalAssets,
			"folders":       stats.TotalFolders,
			"corrupted":     stats.TotalCorrupted,
			"duplicateSets": stats.DuplicateSets,
		},
		Build: startup.GetBuildInfo(),
	}
	if last := h.indexer.LastIndexTime(); !last.IsZero() {
		response.LastIndexed = last.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}

// GetVersion returns the build information of the running service
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
