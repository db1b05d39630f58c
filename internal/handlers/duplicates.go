package handlers

import (
	"net/http"
	"strconv"

	"media-catalog/internal/catalog"
)

// DuplicateSet is one group of assets sharing content.
type DuplicateSet struct {
	Hash   string          `json:"hash,omitempty"`
	Assets []catalog.Asset `json:"assets"`
}

// GetDuplicates returns groups of assets with identical content hashes
func (h *Handlers) GetDuplicates(w http.ResponseWriter, _ *http.Request) {
	groups := h.finder.GetDuplicatedAssets()

	sets := make([]DuplicateSet, 0, len(groups))
	for _, g := range groups {
		sets = append(sets, DuplicateSet{Hash: g[0].Hash, Assets: g})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, sets)
}

// GetSimilar returns groups of visually similar assets. ?distance=
// overrides the configured similarity threshold.
func (h *Handlers) GetSimilar(w http.ResponseWriter, r *http.Request) {
	distance := h.similarity
	if v := r.URL.Query().Get("distance"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "distance must be a non-negative integer", http.StatusBadRequest)
			return
		}
		distance = n
	}

	groups := h.finder.GetSimilarAssets(distance)

	sets := make([]DuplicateSet, 0, len(groups))
	for _, g := range groups {
		sets = append(sets, DuplicateSet{Assets: g})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, sets)
}
