package indexer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
	"media-catalog/internal/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixture struct {
	root  string
	store *storage.Storage
	repo  *catalog.Repository
	idx   *Indexer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	root := t.TempDir()
	store := storage.New()
	if err := store.Initialize(filepath.Join(t.TempDir(), "data"), '|', "Tables", "Blobs"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	repo, err := catalog.NewRepository(store, catalog.Options{})
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}

	fsys := filesystem.NewOS(filesystem.DefaultRetryConfig())
	builder := media.NewAssetBuilder(fsys, nil, media.BuilderOptions{
		ThumbnailMaxWidth:  200,
		ThumbnailMaxHeight: 150,
	}, nil)

	if opts.Roots == nil {
		opts.Roots = []string{root}
	}
	return &fixture{
		root:  root,
		store: store,
		repo:  repo,
		idx:   New(repo, fsys, builder, opts),
	}
}

func encodeJPEG(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: shade, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func runPass(t *testing.T, ctx context.Context, idx *Indexer) []Event {
	t.Helper()
	events := make(chan Event)
	errc := make(chan error, 1)
	go func() {
		errc <- idx.CatalogAssets(ctx, events)
		close(events)
	}()

	var got []Event
	for e := range events {
		got = append(got, e)
	}
	if err := <-errc; err != nil {
		t.Fatalf("CatalogAssets failed: %v", err)
	}
	return got
}

func countReason(events []Event, reason Reason) int {
	n := 0
	for _, e := range events {
		if e.Reason == reason {
			n++
		}
	}
	return n
}

func TestCatalogAssetsValidAndCorrupted(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, "good.jpg"), encodeJPEG(t, 64, 48, 10))
	writeFile(t, filepath.Join(f.root, "broken.jpg"), []byte("definitely not a jpeg"))
	writeFile(t, filepath.Join(f.root, "notes.txt"), []byte("ignored"))

	corruptedBefore := testutil.ToFloat64(metrics.IndexerCorruptedAssets)
	events := runPass(t, context.Background(), f.idx)
	if got := testutil.ToFloat64(metrics.IndexerCorruptedAssets) - corruptedBefore; got != 1 {
		t.Errorf("corrupted assets counter grew by %v, want 1", got)
	}

	assets := f.repo.GetCataloguedAssetsByPath(f.root)
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	for _, a := range assets {
		switch a.FileName {
		case "good.jpg":
			if a.IsCorrupted || a.Hash == "" {
				t.Errorf("good.jpg: corrupted=%v hash=%q", a.IsCorrupted, a.Hash)
			}
			thumb, ok, err := f.repo.GetThumbnailBytes(f.root, "good.jpg")
			if err != nil || !ok || len(thumb) == 0 {
				t.Errorf("good.jpg has no thumbnail (ok=%v, err=%v)", ok, err)
			}
		case "broken.jpg":
			if !a.IsCorrupted || a.CorruptedMessage == "" {
				t.Errorf("broken.jpg: corrupted=%v message=%q", a.IsCorrupted, a.CorruptedMessage)
			}
		default:
			t.Errorf("unexpected asset %s", a.FileName)
		}
	}

	if n := countReason(events, AssetAdded); n != 2 {
		t.Errorf("expected 2 AssetAdded events, got %d", n)
	}
	if n := countReason(events, FolderInspectionStarted); n != 1 {
		t.Errorf("expected 1 FolderInspectionStarted event, got %d", n)
	}
	if n := countReason(events, FolderInspected); n != 1 {
		t.Errorf("expected 1 FolderInspected event, got %d", n)
	}
	if n := countReason(events, BackupCreated); n != 1 {
		t.Errorf("expected 1 BackupCreated event, got %d", n)
	}
	if last := events[len(events)-1]; last.Reason != Completed || last.Message != "completed" {
		t.Errorf("last event = %+v, want Completed", last)
	}
	if !f.store.BackupExists(time.Now()) {
		t.Error("expected today's backup to exist")
	}
	if f.repo.HasChanges() {
		t.Error("catalog should be saved after the pass")
	}
}

func TestCatalogAssetsEventOrder(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, "a.jpg"), encodeJPEG(t, 16, 16, 1))
	writeFile(t, filepath.Join(f.root, "sub", "b.jpg"), encodeJPEG(t, 16, 16, 2))

	events := runPass(t, context.Background(), f.idx)

	var sequence []string
	for _, e := range events {
		switch e.Reason {
		case FolderInspectionStarted, FolderInspected:
			rel, _ := filepath.Rel(f.root, e.Message)
			sequence = append(sequence, string(e.Reason)+":"+rel)
		case AssetAdded:
			sequence = append(sequence, "added:"+e.Asset.FileName)
		}
	}

	want := []string{
		"FolderInspectionStarted:.",
		"added:a.jpg",
		"FolderInspected:.",
		"FolderInspectionStarted:sub",
		"added:b.jpg",
		"FolderInspected:sub",
	}
	if len(sequence) != len(want) {
		t.Fatalf("sequence = %v, want %v", sequence, want)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Errorf("sequence[%d] = %q, want %q", i, sequence[i], want[i])
		}
	}
}

func TestCatalogAssetsDeletedFile(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, "one.jpg"), encodeJPEG(t, 16, 16, 1))
	writeFile(t, filepath.Join(f.root, "two.jpg"), encodeJPEG(t, 16, 16, 2))

	runPass(t, context.Background(), f.idx)
	before := f.repo.GetAssetsCounter()

	if err := os.Remove(filepath.Join(f.root, "two.jpg")); err != nil {
		t.Fatal(err)
	}
	events := runPass(t, context.Background(), f.idx)

	if n := countReason(events, AssetDeleted); n != 1 {
		t.Fatalf("expected 1 AssetDeleted event, got %d", n)
	}
	for _, e := range events {
		if e.Reason == AssetDeleted && e.Asset.FileName != "two.jpg" {
			t.Errorf("AssetDeleted names %s, want two.jpg", e.Asset.FileName)
		}
	}
	if after := f.repo.GetAssetsCounter(); after != before-1 {
		t.Errorf("asset count = %d, want %d", after, before-1)
	}
	if n := countReason(events, BackupUpdated); n != 1 {
		t.Errorf("expected the second backup of the day to be an update, got %d BackupUpdated", n)
	}
}

func TestCatalogAssetsRerunWithoutChanges(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, "one.jpg"), encodeJPEG(t, 16, 16, 1))
	writeFile(t, filepath.Join(f.root, "nested", "two.jpg"), encodeJPEG(t, 16, 16, 2))

	runPass(t, context.Background(), f.idx)
	events := runPass(t, context.Background(), f.idx)

	for _, reason := range []Reason{AssetAdded, AssetUpdated, AssetDeleted, FolderCreated, FolderDeleted, BackupCreated, BackupUpdated} {
		if n := countReason(events, reason); n != 0 {
			t.Errorf("expected no %s events, got %d", reason, n)
		}
	}
	if f.repo.HasChanges() {
		t.Error("HasChanges should be false after an unchanged pass")
	}
}

func TestCatalogAssetsTouchedAndModifiedFiles(t *testing.T) {
	f := newFixture(t, Options{})
	touched := filepath.Join(f.root, "touched.jpg")
	modified := filepath.Join(f.root, "modified.jpg")
	writeFile(t, touched, encodeJPEG(t, 16, 16, 1))
	writeFile(t, modified, encodeJPEG(t, 16, 16, 2))

	runPass(t, context.Background(), f.idx)
	originalHash := ""
	for _, a := range f.repo.GetCataloguedAssetsByPath(f.root) {
		if a.FileName == "modified.jpg" {
			originalHash = a.Hash
		}
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(touched, future, future); err != nil {
		t.Fatal(err)
	}
	writeFile(t, modified, encodeJPEG(t, 32, 32, 3))
	if err := os.Chtimes(modified, future, future); err != nil {
		t.Fatal(err)
	}

	events := runPass(t, context.Background(), f.idx)

	if n := countReason(events, AssetUpdated); n != 1 {
		t.Fatalf("expected 1 AssetUpdated event, got %d", n)
	}
	for _, e := range events {
		if e.Reason == AssetUpdated && e.Asset.FileName != "modified.jpg" {
			t.Errorf("AssetUpdated names %s, want modified.jpg", e.Asset.FileName)
		}
	}

	for _, a := range f.repo.GetCataloguedAssetsByPath(f.root) {
		switch a.FileName {
		case "touched.jpg":
			if a.ThumbnailCreationDateTime.Before(future.Add(-time.Second)) {
				t.Errorf("touched asset kept a stale ThumbnailCreationDateTime %v", a.ThumbnailCreationDateTime)
			}
		case "modified.jpg":
			if a.Hash == originalHash {
				t.Error("modified asset kept its old hash")
			}
		}
	}

	// Both files are now current.
	events = runPass(t, context.Background(), f.idx)
	if n := countReason(events, AssetUpdated); n != 0 {
		t.Errorf("expected no AssetUpdated events on the next pass, got %d", n)
	}
}

func TestCatalogAssetsBatches(t *testing.T) {
	f := newFixture(t, Options{BatchSize: 2})
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(f.root, string(rune('a'+i))+".jpg"), encodeJPEG(t, 8, 8, uint8(i)))
	}

	events := runPass(t, context.Background(), f.idx)

	if n := countReason(events, AssetAdded); n != 5 {
		t.Errorf("expected 5 AssetAdded events, got %d", n)
	}
	var names []string
	for _, e := range events {
		if e.Reason == AssetAdded {
			names = append(names, e.Asset.FileName)
		}
	}
	for i, name := range names {
		if want := string(rune('a'+i)) + ".jpg"; name != want {
			t.Errorf("added[%d] = %s, want %s", i, name, want)
		}
	}
}

func TestCatalogAssetsCancelled(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, "one.jpg"), encodeJPEG(t, 16, 16, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := runPass(t, ctx, f.idx)

	if len(events) != 1 || events[0].Reason != Completed || events[0].Message != "cancelled" {
		t.Fatalf("events = %+v, want a single cancelled Completed event", events)
	}
	if f.repo.GetAssetsCounter() != 0 {
		t.Error("a cancelled pass should not catalog anything")
	}
}

type cancellingCreator struct {
	inner  AssetCreator
	cancel context.CancelFunc
	calls  atomic.Int32
}

func (c *cancellingCreator) Build(ctx context.Context, folder catalog.Folder, fileName string, isVideo bool) (*catalog.Asset, []byte, error) {
	c.calls.Add(1)
	asset, thumb, err := c.inner.Build(ctx, folder, fileName, isVideo)
	c.cancel()
	return asset, thumb, err
}

func TestCatalogAssetsCancelledMidPassKeepsBatch(t *testing.T) {
	f := newFixture(t, Options{BatchSize: 1})
	writeFile(t, filepath.Join(f.root, "a.jpg"), encodeJPEG(t, 8, 8, 1))
	writeFile(t, filepath.Join(f.root, "b.jpg"), encodeJPEG(t, 8, 8, 2))
	writeFile(t, filepath.Join(f.root, "sub", "c.jpg"), encodeJPEG(t, 8, 8, 3))

	ctx, cancel := context.WithCancel(context.Background())
	creator := &cancellingCreator{inner: f.idx.creator, cancel: cancel}
	f.idx.creator = creator

	events := runPass(t, ctx, f.idx)

	if got := creator.calls.Load(); got != 1 {
		t.Errorf("expected 1 build before cancellation, got %d", got)
	}
	if f.repo.GetAssetsCounter() != 1 {
		t.Errorf("expected the batch in progress to be kept, got %d assets", f.repo.GetAssetsCounter())
	}
	if f.repo.FolderExists(filepath.Join(f.root, "sub")) {
		t.Error("no folder should be visited after cancellation")
	}
	if last := events[len(events)-1]; last.Message != "cancelled" {
		t.Errorf("last event message = %q, want cancelled", last.Message)
	}
	if f.repo.HasChanges() {
		t.Error("the committed batch should be persisted")
	}
}

func TestCatalogAssetsSkipsExemptedAndHiddenFolders(t *testing.T) {
	root := t.TempDir()
	f := newFixture(t, Options{Roots: []string{root}, ExemptedFolderPath: filepath.Join(root, "exempt")})
	f.root = root
	writeFile(t, filepath.Join(root, "exempt", "x.jpg"), encodeJPEG(t, 8, 8, 1))
	writeFile(t, filepath.Join(root, "exempt", "deeper", "y.jpg"), encodeJPEG(t, 8, 8, 2))
	writeFile(t, filepath.Join(root, ".hidden", "z.jpg"), encodeJPEG(t, 8, 8, 3))
	writeFile(t, filepath.Join(root, "kept", "k.jpg"), encodeJPEG(t, 8, 8, 4))

	runPass(t, context.Background(), f.idx)

	folders := f.repo.GetFolders()
	if len(folders) != 1 || folders[0].Path != filepath.Join(root, "kept") {
		t.Errorf("folders = %+v, want only %s", folders, filepath.Join(root, "kept"))
	}
}

func TestCatalogAssetsVanishedFolder(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, "keep.jpg"), encodeJPEG(t, 8, 8, 1))
	writeFile(t, filepath.Join(f.root, "gone", "a.jpg"), encodeJPEG(t, 8, 8, 2))
	writeFile(t, filepath.Join(f.root, "gone", "deep", "b.jpg"), encodeJPEG(t, 8, 8, 3))

	runPass(t, context.Background(), f.idx)
	if len(f.repo.GetFolders()) != 3 {
		t.Fatalf("expected 3 folders, got %d", len(f.repo.GetFolders()))
	}

	if err := os.RemoveAll(filepath.Join(f.root, "gone")); err != nil {
		t.Fatal(err)
	}
	events := runPass(t, context.Background(), f.idx)

	var sequence []string
	for _, e := range events {
		switch e.Reason {
		case AssetDeleted:
			sequence = append(sequence, "asset:"+e.Asset.FileName)
		case FolderDeleted:
			rel, _ := filepath.Rel(f.root, e.Folder.Path)
			sequence = append(sequence, "folder:"+rel)
		}
	}
	want := []string{"asset:b.jpg", "folder:" + filepath.Join("gone", "deep"), "asset:a.jpg", "folder:gone"}
	if len(sequence) != len(want) {
		t.Fatalf("sequence = %v, want %v", sequence, want)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Errorf("sequence[%d] = %q, want %q", i, sequence[i], want[i])
		}
	}
	if folders := f.repo.GetFolders(); len(folders) != 1 {
		t.Errorf("expected only the root folder to remain, got %+v", folders)
	}
	if f.repo.GetAssetsCounter() != 1 {
		t.Errorf("expected 1 asset, got %d", f.repo.GetAssetsCounter())
	}
}

func TestCatalogAssetsSkipsUnstorableNames(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, "good.jpg"), encodeJPEG(t, 8, 8, 1))
	writeFile(t, filepath.Join(f.root, `odd"|name.jpg`), encodeJPEG(t, 8, 8, 2))
	writeFile(t, filepath.Join(f.root, "line\nbreak.jpg"), encodeJPEG(t, 8, 8, 3))
	writeFile(t, filepath.Join(f.root, `odd"|dir`, "inside.jpg"), encodeJPEG(t, 8, 8, 4))

	events := runPass(t, context.Background(), f.idx)

	if n := countReason(events, AssetAdded); n != 1 {
		t.Errorf("expected 1 AssetAdded event, got %d", n)
	}
	if f.repo.HasChanges() {
		t.Error("catalog should be saved after the pass")
	}

	writeFile(t, filepath.Join(f.root, "later", "x.jpg"), encodeJPEG(t, 8, 8, 5))
	runPass(t, context.Background(), f.idx)

	reloaded, err := catalog.NewRepository(f.store, catalog.Options{})
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	if n := reloaded.GetAssetsCounter(); n != 2 {
		t.Errorf("expected 2 persisted assets, got %d", n)
	}
	if !reloaded.IsAssetCatalogued(filepath.Join(f.root, "later"), "x.jpg") {
		t.Error("later/x.jpg should be persisted")
	}
}

func TestCatalogAssetsRemovesEmptiedFolder(t *testing.T) {
	f := newFixture(t, Options{})
	sub := filepath.Join(f.root, "sub")
	parent := filepath.Join(f.root, "parent")
	writeFile(t, filepath.Join(sub, "a.jpg"), encodeJPEG(t, 8, 8, 1))
	writeFile(t, filepath.Join(parent, "p.jpg"), encodeJPEG(t, 8, 8, 2))
	writeFile(t, filepath.Join(parent, "child", "c.jpg"), encodeJPEG(t, 8, 8, 3))

	runPass(t, context.Background(), f.idx)

	for _, path := range []string{filepath.Join(sub, "a.jpg"), filepath.Join(parent, "p.jpg")} {
		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
	}
	events := runPass(t, context.Background(), f.idx)

	var sequence []string
	for _, e := range events {
		switch e.Reason {
		case AssetDeleted:
			sequence = append(sequence, "asset:"+e.Asset.FileName)
		case FolderDeleted:
			rel, _ := filepath.Rel(f.root, e.Folder.Path)
			sequence = append(sequence, "folder:"+rel)
		case FolderInspected:
			if e.Message == sub && e.Folder != nil {
				t.Error("FolderInspected of a removed folder should carry no folder")
			}
		}
	}
	want := []string{"asset:p.jpg", "asset:a.jpg", "folder:sub"}
	if len(sequence) != len(want) {
		t.Fatalf("sequence = %v, want %v", sequence, want)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Errorf("sequence[%d] = %q, want %q", i, sequence[i], want[i])
		}
	}

	if f.repo.FolderExists(sub) {
		t.Error("emptied folder should be removed")
	}
	if !f.repo.FolderExists(parent) {
		t.Error("folder with a catalogued sub-folder should be kept")
	}
	if f.repo.HasChanges() {
		t.Error("catalog should be saved after the pass")
	}
}

func TestCatalogAssetsInProgress(t *testing.T) {
	f := newFixture(t, Options{})
	if !f.idx.tryStartIndexing() {
		t.Fatal("tryStartIndexing should succeed on an idle indexer")
	}
	defer f.idx.finishIndexing()

	if !f.idx.IsIndexing() {
		t.Error("IsIndexing should report the running pass")
	}
	err := f.idx.CatalogAssets(context.Background(), nil)
	if !errors.Is(err, ErrIndexInProgress) {
		t.Errorf("expected ErrIndexInProgress, got %v", err)
	}
}

func TestCreateAsset(t *testing.T) {
	f := newFixture(t, Options{})
	dir := filepath.Join(f.root, "single")
	writeFile(t, filepath.Join(dir, "photo.jpg"), encodeJPEG(t, 40, 30, 9))

	asset, err := f.idx.CreateAsset(context.Background(), dir, "photo.jpg", false)
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	if asset == nil || asset.IsCorrupted {
		t.Fatalf("unexpected asset %+v", asset)
	}
	if !f.repo.IsAssetCatalogued(dir, "photo.jpg") {
		t.Error("asset should be catalogued")
	}
	if !f.repo.FolderHasThumbnails(catalog.Folder{ID: asset.FolderID, Path: dir}) {
		t.Error("folder thumbnails should be saved")
	}

	missing, err := f.idx.CreateAsset(context.Background(), dir, "missing.jpg", false)
	if err != nil || missing != nil {
		t.Errorf("missing file: asset=%v err=%v, want nil, nil", missing, err)
	}
	if f.idx.IsIndexing() || f.idx.GetHealthStatus().Ready {
		t.Error("a single asset should neither hold the indexer nor complete a pass")
	}
}

func TestCreateAssetRejected(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, `odd"|name.jpg`), encodeJPEG(t, 8, 8, 1))
	writeFile(t, filepath.Join(f.root, "photo.jpg"), encodeJPEG(t, 8, 8, 2))

	tests := []struct {
		name     string
		fileName string
		running  bool
		want     error
	}{
		{"unstorable name", `odd"|name.jpg`, false, ErrInvalidName},
		{"pass running", "photo.jpg", true, ErrIndexInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.running {
				if !f.idx.tryStartIndexing() {
					t.Fatal("tryStartIndexing should succeed on an idle indexer")
				}
				defer f.idx.releaseIndexing()
			}
			asset, err := f.idx.CreateAsset(context.Background(), f.root, tt.fileName, false)
			if !errors.Is(err, tt.want) || asset != nil {
				t.Errorf("CreateAsset = %v, %v; want nil, %v", asset, err, tt.want)
			}
		})
	}
	if f.repo.GetAssetsCounter() != 0 {
		t.Errorf("expected nothing catalogued, got %d assets", f.repo.GetAssetsCounter())
	}
}

func TestProgressAndHealth(t *testing.T) {
	f := newFixture(t, Options{})
	writeFile(t, filepath.Join(f.root, "one.jpg"), encodeJPEG(t, 8, 8, 1))
	writeFile(t, filepath.Join(f.root, "sub", "two.jpg"), encodeJPEG(t, 8, 8, 2))

	if f.idx.GetHealthStatus().Ready {
		t.Error("indexer should not be ready before the first pass")
	}

	runPass(t, context.Background(), f.idx)

	progress := f.idx.GetProgress()
	if progress.IsIndexing || progress.FoldersInspected != 2 || progress.AssetsProcessed != 2 {
		t.Errorf("unexpected progress %+v", progress)
	}

	health := f.idx.GetHealthStatus()
	if !health.Ready || health.Indexing || health.CataloguedAssets != 2 {
		t.Errorf("unexpected health %+v", health)
	}
	if health.LastIndexed.IsZero() || f.idx.LastIndexTime().IsZero() {
		t.Error("last index time should be set")
	}
}
