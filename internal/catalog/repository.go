package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
	"media-catalog/internal/storage"
)

const (
	defaultThumbnailCacheSize = 16
	defaultRecentPathsMax     = 20
	blobExtension             = ".bin"
)

// ErrFolderNotFound is returned when an operation names a folder that is
// not catalogued.
var ErrFolderNotFound = errors.New("folder not found")

// Options tunes a Repository.
type Options struct {
	// ThumbnailCacheSize is the number of clean folder thumbnail blobs kept
	// in memory.
	ThumbnailCacheSize int
	// RecentPathsMax caps the recent target paths list.
	RecentPathsMax int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// NewID returns a new folder id. Defaults to a random UUID.
	NewID func() string
}

// Repository is the authoritative in-memory catalog with write-through
// persistence.
type Repository struct {
	store *storage.Storage
	opts  Options

	mu            sync.RWMutex
	foldersByID   map[string]*Folder
	foldersByPath map[string]*Folder
	assets        map[string][]Asset

	// pending holds thumbnail blobs with unsaved changes, keyed by folder id.
	pending    map[string]map[string][]byte
	pendingGen map[string]uint64
	thumbs     *lru.Cache[string, map[string][]byte]

	syncDefinitions []SyncAssetsDirectoriesDefinition
	recentPaths     []string
	settingsDirty   bool

	dirty      bool
	generation uint64

	// saveMu serialises writers of the persisted state.
	saveMu sync.Mutex
}

// NewRepository registers the catalog tables on store and loads the
// persisted catalog.
func NewRepository(store *storage.Storage, opts Options) (*Repository, error) {
	if opts.ThumbnailCacheSize <= 0 {
		opts.ThumbnailCacheSize = defaultThumbnailCacheSize
	}
	if opts.RecentPathsMax <= 0 {
		opts.RecentPathsMax = defaultRecentPathsMax
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	cache, err := lru.New[string, map[string][]byte](opts.ThumbnailCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache: %w", err)
	}

	r := &Repository{
		store:         store,
		opts:          opts,
		foldersByID:   make(map[string]*Folder),
		foldersByPath: make(map[string]*Folder),
		assets:        make(map[string][]Asset),
		pending:       make(map[string]map[string][]byte),
		pendingGen:    make(map[string]uint64),
		thumbs:        cache,
	}

	if err := registerSchemas(store); err != nil {
		return nil, err
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) load() error {
	folders, err := storage.ReadTable(r.store, FoldersTable, decodeFolder)
	if err != nil {
		return fmt.Errorf("failed to load folders: %w", err)
	}
	for i := range folders {
		f := folders[i]
		f.Path = filepath.Clean(f.Path)
		r.foldersByID[f.ID] = &f
		r.foldersByPath[f.Path] = &f
	}

	assets, err := storage.ReadTable(r.store, AssetsTable, decodeAsset)
	if err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}
	orphans := 0
	for _, a := range assets {
		if _, ok := r.foldersByID[a.FolderID]; !ok {
			orphans++
			continue
		}
		r.assets[a.FolderID] = append(r.assets[a.FolderID], a)
	}
	if orphans > 0 {
		logging.Warn("Ignored %d assets referencing unknown folders", orphans)
	}

	defs, err := storage.ReadTable(r.store, SyncDefinitionsTable, decodeSyncDefinition)
	if err != nil {
		return fmt.Errorf("failed to load sync definitions: %w", err)
	}
	r.syncDefinitions = defs

	paths, err := storage.ReadTable(r.store, RecentPathsTable, decodeRecentPath)
	if err != nil {
		return fmt.Errorf("failed to load recent target paths: %w", err)
	}
	r.recentPaths = paths

	logging.Info("Catalog loaded: %d folders, %d assets, %d sync definitions",
		len(folders), len(assets)-orphans, len(defs))
	return nil
}

func (r *Repository) markDirty() {
	r.dirty = true
	r.generation++
}

func blobName(folderID string) string {
	return folderID + blobExtension
}

func cleanPath(path string) string {
	return filepath.Clean(path)
}

// CheckName reports whether a folder path or file name can be persisted.
// Names containing line breaks, or a quote followed by the field
// separator, cannot.
func (r *Repository) CheckName(name string) error {
	return r.store.CheckEscapedValue(name)
}

// AddFolder returns the folder for path, creating it if needed.
func (r *Repository) AddFolder(path string) Folder {
	path = cleanPath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.foldersByPath[path]; ok {
		return *f
	}

	f := &Folder{ID: r.opts.NewID(), Path: path}
	r.foldersByID[f.ID] = f
	r.foldersByPath[f.Path] = f
	r.markDirty()
	logging.Debug("Folder added to catalog: %s (%s)", f.Path, f.ID)
	return *f
}

// FolderExists reports whether path is catalogued.
func (r *Repository) FolderExists(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.foldersByPath[cleanPath(path)]
	return ok
}

// GetFolderByPath returns the folder catalogued at path.
func (r *Repository) GetFolderByPath(path string) (Folder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.foldersByPath[cleanPath(path)]
	if !ok {
		return Folder{}, false
	}
	return *f, true
}

// GetFolders returns every catalogued folder sorted by path.
func (r *Repository) GetFolders() []Folder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedFolders()
}

func (r *Repository) sortedFolders() []Folder {
	folders := make([]Folder, 0, len(r.foldersByID))
	for _, f := range r.foldersByID {
		folders = append(folders, *f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Path < folders[j].Path })
	return folders
}

// GetSubFolders returns the catalogued direct children of parent.
func (r *Repository) GetSubFolders(parent Folder) []Folder {
	parentPath := cleanPath(parent.Path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var children []Folder
	for _, f := range r.foldersByID {
		if f.Path != parentPath && filepath.Dir(f.Path) == parentPath {
			children = append(children, *f)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Path < children[j].Path })
	return children
}

// DeleteFolder removes a folder, its assets and its thumbnail blob.
func (r *Repository) DeleteFolder(folder Folder) error {
	r.mu.Lock()
	f, ok := r.foldersByID[folder.ID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.foldersByID, f.ID)
	delete(r.foldersByPath, f.Path)
	delete(r.assets, f.ID)
	delete(r.pending, f.ID)
	delete(r.pendingGen, f.ID)
	r.thumbs.Remove(f.ID)
	r.markDirty()
	r.mu.Unlock()

	logging.Debug("Folder removed from catalog: %s", f.Path)

	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if err := r.store.DeleteBlob(blobName(f.ID)); err != nil {
		return fmt.Errorf("failed to delete thumbnails of %s: %w", f.Path, err)
	}
	return nil
}

func findAsset(assets []Asset, fileName string) int {
	for i := range assets {
		if strings.EqualFold(assets[i].FileName, fileName) {
			return i
		}
	}
	return -1
}

// AddAsset inserts an asset or replaces the one with the same file name.
// thumbnail is stored in the folder's blob; a nil thumbnail removes any
// previous entry.
func (r *Repository) AddAsset(asset Asset, thumbnail []byte) error {
	if err := r.CheckName(asset.FileName); err != nil {
		return err
	}
	fromStore, err := r.readThumbnailsForEdit(asset.FolderID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.foldersByID[asset.FolderID]; !ok {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, asset.FolderID)
	}

	asset.ImageData = nil
	list := r.assets[asset.FolderID]
	if i := findAsset(list, asset.FileName); i >= 0 {
		list[i] = asset
	} else {
		r.assets[asset.FolderID] = append(list, asset)
	}

	blob := r.editableThumbnails(asset.FolderID, fromStore)
	removeThumbnail(blob, asset.FileName)
	if thumbnail != nil {
		blob[asset.FileName] = thumbnail
	}

	r.markDirty()
	r.pendingGen[asset.FolderID] = r.generation
	return nil
}

// UpdateAsset replaces the record of an already catalogued asset and keeps
// its thumbnail.
func (r *Repository) UpdateAsset(asset Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.assets[asset.FolderID]
	i := findAsset(list, asset.FileName)
	if i < 0 {
		return fmt.Errorf("asset %s is not catalogued in folder %s", asset.FileName, asset.FolderID)
	}
	asset.ImageData = nil
	list[i] = asset
	r.markDirty()
	return nil
}

// DeleteAsset removes an asset and its thumbnail. It returns nil when
// nothing matched.
func (r *Repository) DeleteAsset(directory, fileName string) (*Asset, error) {
	folder, ok := r.GetFolderByPath(directory)
	if !ok {
		return nil, nil
	}
	fromStore, err := r.readThumbnailsForEdit(folder.ID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.assets[folder.ID]
	i := findAsset(list, fileName)
	if i < 0 {
		return nil, nil
	}

	removed := list[i]
	r.assets[folder.ID] = append(list[:i:i], list[i+1:]...)

	blob := r.editableThumbnails(folder.ID, fromStore)
	removeThumbnail(blob, fileName)

	r.markDirty()
	r.pendingGen[folder.ID] = r.generation
	return &removed, nil
}

// GetCataloguedAssetsByPath returns a copy of the assets of a folder.
func (r *Repository) GetCataloguedAssetsByPath(directory string) []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.foldersByPath[cleanPath(directory)]
	if !ok {
		return []Asset{}
	}
	return append([]Asset{}, r.assets[f.ID]...)
}

// GetCataloguedAssets returns every asset, grouped by folder path order.
func (r *Repository) GetCataloguedAssets() []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := []Asset{}
	for _, f := range r.sortedFolders() {
		all = append(all, r.assets[f.ID]...)
	}
	return all
}

// IsAssetCatalogued reports whether directory/fileName is catalogued.
func (r *Repository) IsAssetCatalogued(directory, fileName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.foldersByPath[cleanPath(directory)]
	if !ok {
		return false
	}
	return findAsset(r.assets[f.ID], fileName) >= 0
}

// GetAssetsCounter returns the number of catalogued assets.
func (r *Repository) GetAssetsCounter() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, list := range r.assets {
		n += len(list)
	}
	return n
}

// GetStats summarises the catalog for the metrics collector. Duplicate
// sets are not counted here.
func (r *Repository) GetStats() metrics.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := metrics.Stats{TotalFolders: len(r.foldersByID)}
	for _, list := range r.assets {
		stats.TotalAssets += len(list)
		for _, a := range list {
			if a.IsCorrupted {
				stats.TotalCorrupted++
			}
		}
	}
	return stats
}

// HasChanges reports whether anything changed since the last successful
// save.
func (r *Repository) HasChanges() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty || r.settingsDirty
}

// SaveCatalog persists the catalog. With a folder only that folder's
// thumbnails are written, otherwise every pending blob is. The Assets and
// Folders tables are always rewritten. The dirty flag is cleared only when
// everything changed so far has reached the disk.
func (r *Repository) SaveCatalog(folder *Folder) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.RLock()
	gen := r.generation
	folders := r.sortedFolders()
	var assets []Asset
	for _, f := range folders {
		assets = append(assets, r.assets[f.ID]...)
	}
	blobs := make(map[string]map[string][]byte)
	blobGens := make(map[string]uint64)
	for id, blob := range r.pending {
		if folder != nil && id != folder.ID {
			continue
		}
		snapshot := make(map[string][]byte, len(blob))
		for k, v := range blob {
			snapshot[k] = v
		}
		blobs[id] = snapshot
		blobGens[id] = r.pendingGen[id]
	}
	settingsDirty := r.settingsDirty
	defs := append([]SyncAssetsDirectoriesDefinition(nil), r.syncDefinitions...)
	recent := append([]string(nil), r.recentPaths...)
	r.mu.RUnlock()

	if err := storage.WriteTable(r.store, FoldersTable, folders, encodeFolder); err != nil {
		return fmt.Errorf("failed to save folders: %w", err)
	}
	if err := storage.WriteTable(r.store, AssetsTable, assets, encodeAsset); err != nil {
		return fmt.Errorf("failed to save assets: %w", err)
	}

	saved := make([]string, 0, len(blobs))
	for id, blob := range blobs {
		if err := r.store.WriteBlob(blobName(id), blob); err != nil {
			r.commitBlobs(saved, blobs, blobGens)
			return fmt.Errorf("failed to save thumbnails for folder %s: %w", id, err)
		}
		saved = append(saved, id)
	}

	if settingsDirty {
		if err := r.writeSettings(defs, recent); err != nil {
			r.commitBlobs(saved, blobs, blobGens)
			return err
		}
	}

	r.commitBlobs(saved, blobs, blobGens)

	r.mu.Lock()
	defer r.mu.Unlock()
	if settingsDirty {
		r.settingsDirty = false
	}
	if r.generation == gen && len(r.pending) == 0 && !r.settingsDirty {
		r.dirty = false
	}
	logging.Debug("Catalog saved: %d folders, %d assets, %d thumbnail blobs", len(folders), len(assets), len(saved))
	return nil
}

// commitBlobs moves saved blobs from the pending set to the clean cache,
// unless they were modified again while being written.
func (r *Repository) commitBlobs(saved []string, blobs map[string]map[string][]byte, gens map[string]uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range saved {
		if _, ok := r.pending[id]; !ok || r.pendingGen[id] != gens[id] {
			continue
		}
		delete(r.pending, id)
		delete(r.pendingGen, id)
		if _, ok := r.foldersByID[id]; ok {
			r.thumbs.Add(id, blobs[id])
		}
	}
}

// BackupExists reports whether today's backup exists.
func (r *Repository) BackupExists() bool {
	return r.store.BackupExists(r.opts.Now())
}

// WriteBackup writes today's backup.
func (r *Repository) WriteBackup() (bool, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	return r.store.WriteBackup(r.opts.Now())
}

// DeleteOldBackups prunes backups beyond keepCount.
func (r *Repository) DeleteOldBackups(keepCount int) ([]string, error) {
	return r.store.DeleteOldBackups(keepCount)
}
