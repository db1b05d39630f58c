package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"

	"media-catalog/internal/catalog"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
)

// TriggerCatalog starts a catalog pass in the background
func (h *Handlers) TriggerCatalog(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsIndexing() {
		writeJSONStatus(w, "already_running", http.StatusConflict)
		return
	}
	h.trigger.TriggerIndex()
	writeJSONStatus(w, "started", http.StatusAccepted)
}

// GetAssets returns the catalogued assets of the folder given by ?dir=
func (h *Handlers) GetAssets(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		writeJSONError(w, "dir is required", http.StatusBadRequest)
		return
	}

	assets := h.repo.GetCataloguedAssetsByPath(dir)
	if assets == nil {
		assets = []catalog.Asset{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, assets)
}

// CreateAssetRequest names a file to catalogue.
type CreateAssetRequest struct {
	Directory string `json:"directory"`
	FileName  string `json:"fileName"`
}

// CreateAsset catalogues a single file
func (h *Handlers) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Directory == "" || req.FileName == "" {
		writeJSONError(w, "directory and fileName are required", http.StatusBadRequest)
		return
	}
	if req.FileName != filepath.Base(req.FileName) {
		writeJSONError(w, "fileName must not contain a path", http.StatusBadRequest)
		return
	}

	fileType := mediatypes.FileTypeOf(req.FileName)
	if fileType == mediatypes.FileTypeOther {
		writeJSONError(w, "unsupported file type", http.StatusBadRequest)
		return
	}

	asset, err := h.indexer.CreateAsset(r.Context(), req.Directory, req.FileName, fileType == mediatypes.FileTypeVideo)
	switch {
	case errors.Is(err, indexer.ErrIndexInProgress):
		writeJSONStatus(w, "already_running", http.StatusConflict)
		return
	case errors.Is(err, indexer.ErrInvalidName):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		logging.Error("CreateAsset %s/%s failed: %v", req.Directory, req.FileName, err)
		writeJSONError(w, "failed to catalog asset", http.StatusInternalServerError)
		return
	}
	if asset == nil {
		writeJSONError(w, "file not found or unreadable", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, asset)
}

// GetThumbnail serves the stored thumbnail of ?dir=&file= as it was
// encoded. With width or height it is rescaled and re-encoded as JPEG.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, file := q.Get("dir"), q.Get("file")
	if dir == "" || file == "" {
		writeJSONError(w, "dir and file are required", http.StatusBadRequest)
		return
	}

	width, err := optionalInt(q.Get("width"))
	if err != nil {
		writeJSONError(w, "width must be a non-negative integer", http.StatusBadRequest)
		return
	}
	height, err := optionalInt(q.Get("height"))
	if err != nil {
		writeJSONError(w, "height must be a non-negative integer", http.StatusBadRequest)
		return
	}

	if width == 0 && height == 0 {
		data, ok, err := h.repo.GetThumbnailBytes(dir, file)
		if err != nil {
			logging.Error("Thumbnail %s/%s: %v", dir, file, err)
			writeJSONError(w, "failed to read thumbnail", http.StatusInternalServerError)
			return
		}
		if !ok || len(data) == 0 {
			writeJSONError(w, "thumbnail not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
		return
	}

	img, err := h.repo.LoadThumbnail(dir, file, width, height)
	if err != nil {
		logging.Error("Thumbnail %s/%s: %v", dir, file, err)
		writeJSONError(w, "failed to load thumbnail", http.StatusInternalServerError)
		return
	}
	if img == nil {
		writeJSONError(w, "thumbnail not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		logging.Warn("Thumbnail %s/%s: encode failed: %v", dir, file, err)
	}
}

func optionalInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
