package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"media-catalog/internal/catalog"
	"media-catalog/internal/comparator"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
	"media-catalog/internal/workers"
)

const (
	// Number of new assets built before the folder is saved
	defaultBatchSize = 100

	defaultBackupsToKeep = 2
)

// ErrIndexInProgress is returned when a pass is requested while another one
// is still running.
var ErrIndexInProgress = errors.New("catalog pass already in progress")

// ErrInvalidName is returned for a folder or file whose name cannot be
// stored in the catalog.
var ErrInvalidName = errors.New("name cannot be catalogued")

// AssetCreator turns a file into an asset and its encoded thumbnail.
type AssetCreator interface {
	Build(ctx context.Context, folder catalog.Folder, fileName string, isVideo bool) (*catalog.Asset, []byte, error)
}

// Options configures the Indexer.
type Options struct {
	Roots              []string
	ExemptedFolderPath string
	BatchSize          int
	BackupsToKeep      int
	Now                func() time.Time
}

// Indexer keeps the catalog in step with the folders on disk.
type Indexer struct {
	repo    *catalog.Repository
	fs      filesystem.FS
	creator AssetCreator
	opts    Options

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	lastError            error
	initialIndexComplete bool
	startTime            time.Time

	// Progress tracking
	foldersInspected atomic.Int64
	assetsProcessed  atomic.Int64
	indexProgress    atomic.Value
}

// IndexProgress tracks the progress of the running pass.
type IndexProgress struct {
	FoldersInspected int64     `json:"foldersInspected"`
	AssetsProcessed  int64     `json:"assetsProcessed"`
	IsIndexing       bool      `json:"isIndexing"`
	StartedAt        time.Time `json:"startedAt,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready            bool           `json:"ready"`
	Indexing         bool           `json:"indexing"`
	StartTime        time.Time      `json:"startTime"`
	Uptime           string         `json:"uptime"`
	LastIndexed      time.Time      `json:"lastIndexed,omitempty"`
	LastError        string         `json:"lastError,omitempty"`
	CataloguedAssets int            `json:"cataloguedAssets"`
	FoldersInspected int64          `json:"foldersInspected"`
	AssetsProcessed  int64          `json:"assetsProcessed"`
	IndexProgress    *IndexProgress `json:"indexProgress,omitempty"`
}

// New creates an Indexer.
func New(repo *catalog.Repository, fsys filesystem.FS, creator AssetCreator, opts Options) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BackupsToKeep <= 0 {
		opts.BackupsToKeep = defaultBackupsToKeep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExemptedFolderPath != "" {
		opts.ExemptedFolderPath = filepath.Clean(opts.ExemptedFolderPath)
	}
	idx := &Indexer{
		repo:      repo,
		fs:        fsys,
		creator:   creator,
		opts:      opts,
		startTime: opts.Now(),
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// CatalogAssets runs one pass over every root. Events are sent on events,
// which may be nil; a non-nil channel must be drained until CatalogAssets
// returns. A cancelled context ends the pass early and is not an error.
func (idx *Indexer) CatalogAssets(ctx context.Context, events chan<- Event) (err error) {
	if !idx.tryStartIndexing() {
		return ErrIndexInProgress
	}
	defer idx.finishIndexing()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting catalog pass over %d root(s)...", len(idx.opts.Roots))
	idx.resetCounters(startTime)

	p := &pass{ctx: ctx, events: events, now: idx.opts.Now}
	defer func() {
		idx.finalizeIndex(p, startTime, err)
	}()

	for _, root := range idx.opts.Roots {
		if p.cancelled() {
			break
		}
		if err := idx.catalogFolder(p, filepath.Clean(root)); err != nil {
			return err
		}
	}

	if p.changed() || idx.repo.HasChanges() {
		if err := idx.repo.SaveCatalog(nil); err != nil {
			return fmt.Errorf("failed to save catalog: %w", err)
		}
		if err := idx.backup(p); err != nil {
			return err
		}
	}
	return nil
}

// backup writes today's backup and prunes older ones.
func (idx *Indexer) backup(p *pass) error {
	if idx.repo.BackupExists() {
		p.emit(Event{Reason: BackupUpdated, Message: UpdatingBackupMessage})
	} else {
		p.emit(Event{Reason: BackupCreated, Message: CreatingBackupMessage})
	}

	if _, err := idx.repo.WriteBackup(); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	deleted, err := idx.repo.DeleteOldBackups(idx.opts.BackupsToKeep)
	if err != nil {
		return fmt.Errorf("failed to delete old backups: %w", err)
	}
	if len(deleted) > 0 {
		logging.Info("Deleted %d old backup(s): %s", len(deleted), strings.Join(deleted, ", "))
	}
	return nil
}

func (idx *Indexer) isExempted(dir string) bool {
	exempted := idx.opts.ExemptedFolderPath
	if exempted == "" {
		return false
	}
	return dir == exempted || strings.HasPrefix(dir, exempted+string(filepath.Separator))
}

// catalogFolder brings one directory up to date, then descends into its
// sub-directories.
func (idx *Indexer) catalogFolder(p *pass, dir string) error {
	if p.cancelled() || idx.isExempted(dir) {
		return nil
	}
	if err := idx.repo.CheckName(dir); err != nil {
		logging.Warn("Skipping folder %s: %v", dir, err)
		return nil
	}

	entries, err := idx.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Folder %s no longer exists", dir)
			return idx.removeFolders(p, idx.foldersUnder(dir, nil))
		}
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	p.emit(Event{Reason: FolderInspectionStarted, Message: dir})

	var fileNames, subDirs []string
	diskFiles := make([]comparator.DiskFile, 0, len(entries))
	present := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			present[name] = true
			if !strings.HasPrefix(name, ".") {
				subDirs = append(subDirs, name)
			}
			continue
		}
		if strings.HasPrefix(name, ".") || !mediatypes.IsMediaFile(name) {
			continue
		}
		if err := idx.repo.CheckName(name); err != nil {
			logging.Warn("Skipping %s: %v", filepath.Join(dir, name), err)
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logging.Warn("Error accessing %s: %v", filepath.Join(dir, name), err)
			continue
		}
		fileNames = append(fileNames, name)
		diskFiles = append(diskFiles, comparator.DiskFile{Name: name, Size: info.Size(), ModTime: info.ModTime()})
	}

	folder, exists := idx.repo.GetFolderByPath(dir)
	if !exists && len(fileNames) > 0 {
		folder = idx.repo.AddFolder(dir)
		exists = true
		created := folder
		p.emit(Event{Reason: FolderCreated, Message: dir, Folder: &created})
	}

	var inspected *catalog.Folder
	if exists {
		emptied, err := idx.syncFolder(p, folder, fileNames, diskFiles)
		if err != nil {
			return err
		}
		if !emptied {
			inspected = &folder
		}
	}

	idx.foldersInspected.Add(1)
	metrics.IndexerFoldersInspected.Inc()
	idx.updateProgress()
	p.emit(Event{Reason: FolderInspected, Message: dir, Folder: inspected})

	if p.cancelled() {
		return nil
	}

	if err := idx.removeFolders(p, idx.foldersUnder(dir, present)); err != nil {
		return err
	}

	for _, name := range subDirs {
		if p.cancelled() {
			return nil
		}
		if err := idx.catalogFolder(p, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// syncFolder applies the difference between the disk and the catalog for
// one folder. A folder whose last asset was deleted and that has no
// catalogued folders below it is removed, and emptied is true.
func (idx *Indexer) syncFolder(p *pass, folder catalog.Folder, fileNames []string, diskFiles []comparator.DiskFile) (emptied bool, err error) {
	catalogued := idx.repo.GetCataloguedAssetsByPath(folder.Path)
	before := p.added + p.updated + p.deleted

	if err := idx.addAssets(p, folder, comparator.GetNewFileNames(fileNames, catalogued)); err != nil {
		return false, err
	}
	if p.cancelled() {
		return false, nil
	}

	idx.updateAssets(p, folder, catalogued, comparator.GetUpdatedFileNames(catalogued, diskFiles))

	deletedHere := 0
	for _, name := range comparator.GetDeletedFileNames(fileNames, catalogued) {
		if p.cancelled() {
			break
		}
		removed, err := idx.repo.DeleteAsset(folder.Path, name)
		if err != nil {
			return false, fmt.Errorf("failed to delete asset %s: %w", name, err)
		}
		if removed == nil {
			continue
		}
		deletedHere++
		p.deleted++
		metrics.IndexerAssetChanges.WithLabelValues("deleted").Inc()
		logging.Debug("Asset deleted: %s", filepath.Join(folder.Path, name))
		p.emit(Event{Reason: AssetDeleted, Message: name, Asset: removed, Folder: &folder})
	}

	if deletedHere > 0 && len(idx.repo.GetCataloguedAssetsByPath(folder.Path)) == 0 &&
		len(idx.foldersUnder(folder.Path, nil)) == 1 {
		if err := idx.repo.DeleteFolder(folder); err != nil {
			return false, err
		}
		emptied = true
		logging.Info("Removed emptied folder %s from catalog", folder.Path)
		p.emit(Event{Reason: FolderDeleted, Message: folder.Path, Folder: &folder})
	}

	if p.added+p.updated+p.deleted > before || idx.repo.HasChanges() {
		if err := idx.repo.SaveCatalog(&folder); err != nil {
			return emptied, fmt.Errorf("failed to save folder %s: %w", folder.Path, err)
		}
	}
	return emptied, nil
}

type builtAsset struct {
	asset     *catalog.Asset
	thumbnail []byte
}

// addAssets builds the new files of a folder in batches and saves the folder
// after every batch. A cancelled pass still commits the batch in progress.
func (idx *Indexer) addAssets(p *pass, folder catalog.Folder, names []string) error {
	batchSize := idx.opts.BatchSize

	for start := 0; start < len(names); start += batchSize {
		if p.cancelled() {
			return nil
		}
		end := min(start+batchSize, len(names))
		batch := names[start:end]

		results := idx.buildBatch(p.ctx, folder, batch)

		committed := 0
		for _, r := range results {
			if r.asset == nil {
				continue
			}
			if err := idx.repo.AddAsset(*r.asset, r.thumbnail); err != nil {
				return fmt.Errorf("failed to add asset %s: %w", r.asset.FileName, err)
			}
			committed++
			p.added++
			idx.assetsProcessed.Add(1)
			metrics.IndexerAssetChanges.WithLabelValues("added").Inc()
			p.emit(Event{Reason: AssetAdded, Message: r.asset.FileName, Asset: r.asset, Folder: &folder})
		}
		idx.updateProgress()

		if committed > 0 {
			if err := idx.repo.SaveCatalog(&folder); err != nil {
				return fmt.Errorf("failed to save folder %s: %w", folder.Path, err)
			}
		}
		logging.Debug("Catalogued %d/%d new assets in %s", end, len(names), folder.Path)
	}
	return nil
}

// buildBatch builds assets in parallel and returns them in input order.
// Files that cannot be read come back empty.
func (idx *Indexer) buildBatch(ctx context.Context, folder catalog.Folder, names []string) []builtAsset {
	results := make([]builtAsset, len(names))

	var g errgroup.Group
	g.SetLimit(workers.ForMixed(len(names)))
	for i, name := range names {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			isVideo := mediatypes.FileTypeOf(name) == mediatypes.FileTypeVideo
			asset, thumbnail, err := idx.creator.Build(ctx, folder, name, isVideo)
			if err != nil {
				logging.Warn("Skipping %s: %v", filepath.Join(folder.Path, name), err)
				return nil
			}
			results[i] = builtAsset{asset: asset, thumbnail: thumbnail}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// updateAssets rebuilds files modified since their thumbnail was made. When
// the content hash is unchanged only the file metadata is refreshed.
func (idx *Indexer) updateAssets(p *pass, folder catalog.Folder, catalogued []catalog.Asset, names []string) {
	for _, name := range names {
		if p.cancelled() {
			return
		}

		var previous *catalog.Asset
		for i := range catalogued {
			if strings.EqualFold(catalogued[i].FileName, name) {
				previous = &catalogued[i]
				break
			}
		}
		if previous == nil {
			continue
		}

		isVideo := mediatypes.FileTypeOf(name) == mediatypes.FileTypeVideo
		asset, thumbnail, err := idx.creator.Build(p.ctx, folder, name, isVideo)
		if err != nil {
			logging.Warn("Skipping update of %s: %v", filepath.Join(folder.Path, name), err)
			continue
		}
		idx.assetsProcessed.Add(1)

		if asset.Hash == previous.Hash {
			touched := *previous
			touched.FileSize = asset.FileSize
			touched.FileCreationDateTime = asset.FileCreationDateTime
			touched.FileModificationDateTime = asset.FileModificationDateTime
			touched.ThumbnailCreationDateTime = asset.ThumbnailCreationDateTime
			if err := idx.repo.UpdateAsset(touched); err != nil {
				logging.Warn("Failed to refresh %s: %v", filepath.Join(folder.Path, name), err)
				continue
			}
			metrics.IndexerAssetChanges.WithLabelValues("touched").Inc()
			logging.Debug("Asset touched without content change: %s", filepath.Join(folder.Path, name))
			continue
		}

		if err := idx.repo.AddAsset(*asset, thumbnail); err != nil {
			logging.Warn("Failed to update %s: %v", filepath.Join(folder.Path, name), err)
			continue
		}
		p.updated++
		metrics.IndexerAssetChanges.WithLabelValues("updated").Inc()
		p.emit(Event{Reason: AssetUpdated, Message: asset.FileName, Asset: asset, Folder: &folder})
	}
}

// foldersUnder returns the catalogued folders at or below dir. With a
// non-nil present set, only folders below dir whose first path element is
// missing from present are returned.
func (idx *Indexer) foldersUnder(dir string, present map[string]bool) []catalog.Folder {
	var result []catalog.Folder
	for _, f := range idx.repo.GetFolders() {
		rel, err := filepath.Rel(dir, f.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if present == nil {
			result = append(result, f)
			continue
		}
		if rel == "." {
			continue
		}
		first := strings.SplitN(rel, string(filepath.Separator), 2)[0]
		if !present[first] {
			result = append(result, f)
		}
	}
	return result
}

// removeFolders deletes vanished folders, deepest first, announcing every
// asset before the folder itself.
func (idx *Indexer) removeFolders(p *pass, folders []catalog.Folder) error {
	if len(folders) == 0 {
		return nil
	}
	sort.Slice(folders, func(i, j int) bool {
		di := strings.Count(folders[i].Path, string(filepath.Separator))
		dj := strings.Count(folders[j].Path, string(filepath.Separator))
		if di != dj {
			return di > dj
		}
		return folders[i].Path < folders[j].Path
	})

	for _, folder := range folders {
		if p.cancelled() {
			return nil
		}
		for _, asset := range idx.repo.GetCataloguedAssetsByPath(folder.Path) {
			removed, err := idx.repo.DeleteAsset(folder.Path, asset.FileName)
			if err != nil {
				return fmt.Errorf("failed to delete asset %s: %w", asset.FileName, err)
			}
			if removed == nil {
				continue
			}
			p.deleted++
			metrics.IndexerAssetChanges.WithLabelValues("deleted").Inc()
			p.emit(Event{Reason: AssetDeleted, Message: asset.FileName, Asset: removed, Folder: &folder})
		}
		if err := idx.repo.DeleteFolder(folder); err != nil {
			return err
		}
		logging.Info("Removed vanished folder %s from catalog", folder.Path)
		p.emit(Event{Reason: FolderDeleted, Message: folder.Path, Folder: &folder})
	}
	return nil
}

// CreateAsset catalogues a single file and saves its folder. It returns nil
// without error when the file cannot be read, and ErrIndexInProgress while a
// pass is running.
func (idx *Indexer) CreateAsset(ctx context.Context, directory, fileName string, isVideo bool) (*catalog.Asset, error) {
	directory = filepath.Clean(directory)
	path := filepath.Join(directory, fileName)
	for _, name := range []string{directory, fileName} {
		if err := idx.repo.CheckName(name); err != nil {
			logging.Warn("Cannot catalog %s: %v", path, err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
		}
	}

	if !idx.tryStartIndexing() {
		return nil, ErrIndexInProgress
	}
	defer idx.releaseIndexing()

	if _, err := idx.fs.Stat(path); err != nil {
		logging.Warn("Cannot catalog %s: %v", path, err)
		return nil, nil
	}

	folder := idx.repo.AddFolder(directory)
	asset, thumbnail, err := idx.creator.Build(ctx, folder, fileName, isVideo)
	if err != nil {
		logging.Warn("Cannot catalog %s: %v", path, err)
		return nil, nil
	}
	if err := idx.repo.AddAsset(*asset, thumbnail); err != nil {
		return nil, fmt.Errorf("failed to add asset %s: %w", path, err)
	}
	if err := idx.repo.SaveCatalog(&folder); err != nil {
		return nil, fmt.Errorf("failed to save folder %s: %w", folder.Path, err)
	}
	metrics.IndexerAssetChanges.WithLabelValues("added").Inc()
	return asset, nil
}

// tryStartIndexing attempts to start indexing, returns false if already in progress.
func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

// finishIndexing marks indexing as complete.
func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
}

// releaseIndexing ends a single-file change without completing a pass.
func (idx *Indexer) releaseIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	idx.isIndexing = false
}

func (idx *Indexer) resetCounters(startTime time.Time) {
	idx.foldersInspected.Store(0)
	idx.assetsProcessed.Store(0)
	idx.indexProgress.Store(IndexProgress{
		IsIndexing: true,
		StartedAt:  startTime,
	})
}

func (idx *Indexer) updateProgress() {
	progress := idx.getProgress()
	idx.indexProgress.Store(IndexProgress{
		FoldersInspected: idx.foldersInspected.Load(),
		AssetsProcessed:  idx.assetsProcessed.Load(),
		IsIndexing:       true,
		StartedAt:        progress.StartedAt,
	})
}

// finalizeIndex records the outcome of a pass and sends the Completed event.
func (idx *Indexer) finalizeIndex(p *pass, startTime time.Time, err error) {
	duration := time.Since(startTime)

	idx.indexMu.Lock()
	idx.lastIndexTime = idx.opts.Now()
	idx.lastError = err
	idx.indexMu.Unlock()

	idx.indexProgress.Store(IndexProgress{
		FoldersInspected: idx.foldersInspected.Load(),
		AssetsProcessed:  idx.assetsProcessed.Load(),
		IsIndexing:       false,
	})

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(duration.Seconds())

	var message string
	switch {
	case err != nil:
		metrics.IndexerErrors.Inc()
		message = "failed: " + err.Error()
		logging.Error("Catalog pass failed after %v: %v", duration, err)
	case p.cancelled():
		message = "cancelled"
		logging.Info("Catalog pass cancelled after %v: %d added, %d updated, %d deleted",
			duration, p.added, p.updated, p.deleted)
	default:
		message = "completed"
		logging.Info("Catalog pass complete: %d folders, %d added, %d updated, %d deleted in %v",
			idx.foldersInspected.Load(), p.added, p.updated, p.deleted, duration)
	}
	p.emit(Event{Reason: Completed, Message: message})
}

func (idx *Indexer) getProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetProgress returns the current indexing progress.
func (idx *Indexer) GetProgress() IndexProgress {
	return idx.getProgress()
}

// IsIndexing returns whether a pass is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time the last pass ended.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	progress := idx.getProgress()

	status := HealthStatus{
		Ready:            idx.initialIndexComplete,
		Indexing:         idx.isIndexing,
		StartTime:        idx.startTime,
		Uptime:           time.Since(idx.startTime).String(),
		LastIndexed:      idx.lastIndexTime,
		CataloguedAssets: idx.repo.GetAssetsCounter(),
		FoldersInspected: idx.foldersInspected.Load(),
		AssetsProcessed:  idx.assetsProcessed.Load(),
	}
	if idx.isIndexing {
		status.IndexProgress = &progress
	}
	if idx.lastError != nil {
		status.LastError = idx.lastError.Error()
	}
	return status
}
