package catalog

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"media-catalog/internal/metrics"
)

func lookupThumbnail(blob map[string][]byte, fileName string) ([]byte, bool) {
	if data, ok := blob[fileName]; ok {
		return data, true
	}
	for k, v := range blob {
		if strings.EqualFold(k, fileName) {
			return v, true
		}
	}
	return nil, false
}

func removeThumbnail(blob map[string][]byte, fileName string) {
	for k := range blob {
		if strings.EqualFold(k, fileName) {
			delete(blob, k)
		}
	}
}

// readThumbnailsForEdit reads a folder blob from storage unless it is
// already held in memory. A nil map with a nil error means the in-memory
// copy is authoritative.
func (r *Repository) readThumbnailsForEdit(folderID string) (map[string][]byte, error) {
	r.mu.RLock()
	_, isPending := r.pending[folderID]
	isCached := r.thumbs.Contains(folderID)
	r.mu.RUnlock()
	if isPending || isCached {
		return nil, nil
	}

	blob, _, err := r.store.ReadBlob(blobName(folderID))
	if err != nil {
		return nil, fmt.Errorf("failed to load thumbnails for folder %s: %w", folderID, err)
	}
	if blob == nil {
		blob = make(map[string][]byte)
	}
	return blob, nil
}

// editableThumbnails returns the pending blob of a folder, promoting it from
// the cache or from fromStore. Callers hold r.mu.
func (r *Repository) editableThumbnails(folderID string, fromStore map[string][]byte) map[string][]byte {
	if blob, ok := r.pending[folderID]; ok {
		return blob
	}

	var blob map[string][]byte
	if cached, ok := r.thumbs.Peek(folderID); ok {
		blob = make(map[string][]byte, len(cached))
		for k, v := range cached {
			blob[k] = v
		}
		r.thumbs.Remove(folderID)
	} else if fromStore != nil {
		blob = fromStore
	} else {
		// Evicted between the read and the lock.
		stored, _, err := r.store.ReadBlob(blobName(folderID))
		if err != nil || stored == nil {
			stored = make(map[string][]byte)
		}
		blob = stored
	}

	r.pending[folderID] = blob
	return blob
}

// thumbnailBlob returns a read-only view of a folder blob, loading it into
// the cache on a miss. found is false when the folder has no blob.
func (r *Repository) thumbnailBlob(folderID string) (blob map[string][]byte, found bool, err error) {
	r.mu.RLock()
	if p, ok := r.pending[folderID]; ok {
		view := make(map[string][]byte, len(p))
		for k, v := range p {
			view[k] = v
		}
		r.mu.RUnlock()
		metrics.ThumbnailCacheHits.Inc()
		return view, true, nil
	}
	if cached, ok := r.thumbs.Get(folderID); ok {
		r.mu.RUnlock()
		metrics.ThumbnailCacheHits.Inc()
		return cached, true, nil
	}
	r.mu.RUnlock()

	metrics.ThumbnailCacheMisses.Inc()
	blob, found, err = r.store.ReadBlob(blobName(folderID))
	if err != nil || !found {
		return nil, false, err
	}

	r.mu.Lock()
	if _, ok := r.pending[folderID]; !ok {
		if _, ok := r.foldersByID[folderID]; ok {
			r.thumbs.Add(folderID, blob)
		}
	}
	r.mu.Unlock()
	return blob, true, nil
}

// GetThumbnailBytes returns the encoded thumbnail of an asset.
func (r *Repository) GetThumbnailBytes(directory, fileName string) ([]byte, bool, error) {
	folder, ok := r.GetFolderByPath(directory)
	if !ok {
		return nil, false, nil
	}
	blob, found, err := r.thumbnailBlob(folder.ID)
	if err != nil || !found {
		return nil, false, err
	}
	data, ok := lookupThumbnail(blob, fileName)
	return data, ok, nil
}

// LoadThumbnail decodes the thumbnail of an asset, scaled to fit within
// width x height when both are positive. It returns nil when the folder or
// the entry has no thumbnail.
func (r *Repository) LoadThumbnail(directory, fileName string, width, height int) (image.Image, error) {
	data, ok, err := r.GetThumbnailBytes(directory, fileName)
	if err != nil || !ok || len(data) == 0 {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode thumbnail of %s: %w", fileName, err)
	}

	b := img.Bounds()
	switch {
	case width > 0 && height > 0 && (b.Dx() != width || b.Dy() != height):
		img = imaging.Fit(img, width, height, imaging.Lanczos)
	case width > 0 && height <= 0 && b.Dx() != width:
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	case height > 0 && width <= 0 && b.Dy() != height:
		img = imaging.Resize(img, 0, height, imaging.Lanczos)
	}
	return img, nil
}

// FolderHasThumbnails reports whether a non-empty thumbnail blob exists for
// folder.
func (r *Repository) FolderHasThumbnails(folder Folder) bool {
	blob, found, err := r.thumbnailBlob(folder.ID)
	return err == nil && found && len(blob) > 0
}
