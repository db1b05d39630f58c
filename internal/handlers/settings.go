package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"media-catalog/internal/catalog"
	"media-catalog/internal/logging"
)

// GetSyncDefinitions returns the stored sync definitions
func (h *Handlers) GetSyncDefinitions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.repo.GetSyncAssetsConfiguration())
}

// PutSyncDefinitions replaces the stored sync definitions
func (h *Handlers) PutSyncDefinitions(w http.ResponseWriter, r *http.Request) {
	var defs []catalog.SyncAssetsDirectoriesDefinition
	if !readJSON(w, r, &defs) {
		return
	}
	for _, def := range defs {
		if strings.TrimSpace(def.SourceDirectory) == "" || strings.TrimSpace(def.DestinationDirectory) == "" {
			writeJSONError(w, "sourceDirectory and destinationDirectory are required", http.StatusBadRequest)
			return
		}
	}

	if err := h.repo.SaveSyncAssetsConfiguration(defs); err != nil {
		logging.Error("Failed to save sync definitions: %v", err)
		writeJSONError(w, "failed to save sync definitions", http.StatusInternalServerError)
		return
	}
	h.GetSyncDefinitions(w, r)
}

// RunSyncDefinitions applies every stored sync definition and returns the
// per-definition results
func (h *Handlers) RunSyncDefinitions(w http.ResponseWriter, r *http.Request) {
	results, err := h.syncer.Execute(r.Context(), h.repo.GetSyncAssetsConfiguration())
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("Sync definitions failed: %v", err)
		writeJSONError(w, "failed to run sync definitions", http.StatusInternalServerError)
		return
	}
	if err != nil {
		logging.Info("Sync definitions cancelled by client")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, results)
}

// RecentPathRequest adds a target path to the recent list.
type RecentPathRequest struct {
	Path string `json:"path"`
}

// GetRecentPaths returns the recently used target paths, newest first
func (h *Handlers) GetRecentPaths(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.repo.GetRecentTargetPaths())
}

// AddRecentPath moves a path to the front of the recent list
func (h *Handlers) AddRecentPath(w http.ResponseWriter, r *http.Request) {
	var req RecentPathRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}
	if err := h.repo.UpdateTargetPathToRecent(req.Path); err != nil {
		logging.Error("Failed to update recent paths: %v", err)
		writeJSONError(w, "failed to update recent paths", http.StatusInternalServerError)
		return
	}
	h.GetRecentPaths(w, r)
}
