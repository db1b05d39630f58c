package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"media-catalog/internal/catalog"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/indexer"
	"media-catalog/internal/media"
	"media-catalog/internal/startup"
	"media-catalog/internal/storage"
	"media-catalog/internal/syncassets"
)

type fakeTrigger struct {
	calls atomic.Int32
}

func (f *fakeTrigger) TriggerIndex() { f.calls.Add(1) }

type fixture struct {
	root    string
	repo    *catalog.Repository
	idx     *indexer.Indexer
	trigger *fakeTrigger
	events  *EventFeed
	h       *Handlers
}

func newFixture(t *testing.T) *fixture {
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
		UsePHash:           true,
	}, nil)
	idx := indexer.New(repo, fsys, builder, indexer.Options{Roots: []string{root}})

	f := &fixture{
		root:    root,
		repo:    repo,
		idx:     idx,
		trigger: &fakeTrigger{},
		events:  NewEventFeed(10),
	}
	f.h = New(repo, idx, f.trigger, syncassets.New(fsys), f.events, startup.DefaultConfig())
	return f
}

// catalog runs one pass, feeding its events to the fixture's feed.
func (f *fixture) catalog(t *testing.T) {
	t.Helper()
	events := make(chan indexer.Event)
	errc := make(chan error, 1)
	go func() {
		errc <- f.idx.CatalogAssets(context.Background(), events)
		close(events)
	}()
	for e := range events {
		f.events.Add(e)
	}
	if err := <-errc; err != nil {
		t.Fatalf("CatalogAssets failed: %v", err)
	}
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 4)
			if x < w/2 {
				v = uint8(y)
			}
			img.Set(x, y, color.RGBA{R: v, G: uint8(255 - y*2), B: uint8(x), A: 255})
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

func serve(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.root, "a.jpg"), encodeJPEG(t, 64, 48))

	w := serve(f.h.HealthCheck, "GET", "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before the first pass: status %d, want 503", w.Code)
	}
	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != statusStarting || resp.Ready {
		t.Errorf("before the first pass: %+v", resp)
	}

	f.catalog(t)

	w = serve(f.h.HealthCheck, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("after a pass: status %d, want 200", w.Code)
	}
	resp = HealthResponse{}
	decode(t, w, &resp)
	if resp.Status != statusHealthy || resp.TotalAssets != 1 || resp.TotalFolders != 1 || resp.LastIndexed == "" {
		t.Errorf("after a pass: %+v", resp)
	}
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	data := encodeJPEG(t, 64, 48)
	writeFile(t, filepath.Join(f.root, "a.jpg"), data)
	writeFile(t, filepath.Join(f.root, "b.jpg"), data)
	f.catalog(t)

	w := serve(f.h.GetStatus, "GET", "/api/status", "")
	var resp StatusResponse
	decode(t, w, &resp)

	if resp.Indexing {
		t.Error("expected no pass running")
	}
	if resp.Stats["assets"] != 2 || resp.Stats["duplicateSets"] != 1 {
		t.Errorf("stats = %v", resp.Stats)
	}
	if resp.Build.Version != startup.Version {
		t.Errorf("build version = %q", resp.Build.Version)
	}
}

func TestTriggerCatalog(t *testing.T) {
	f := newFixture(t)

	w := serve(f.h.TriggerCatalog, "POST", "/api/catalog", "")
	if w.Code != http.StatusAccepted {
		t.Errorf("status %d, want 202", w.Code)
	}
	if f.trigger.calls.Load() != 1 {
		t.Errorf("trigger called %d times", f.trigger.calls.Load())
	}
}

func TestEventFeed(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		added int
		limit int
		want  []string
	}{
		{"empty", 3, 0, 0, []string{}},
		{"partial", 3, 2, 0, []string{"0", "1"}},
		{"wrapped", 3, 5, 0, []string{"2", "3", "4"}},
		{"limited", 3, 5, 2, []string{"3", "4"}},
		{"limit above count", 3, 1, 10, []string{"0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := NewEventFeed(tt.size)
			for i := 0; i < tt.added; i++ {
				feed.Add(indexer.Event{Reason: indexer.AssetAdded, Message: string(rune('0' + i))})
			}
			got := feed.Recent(tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.Message != tt.want[i] {
					t.Errorf("event %d = %q, want %q", i, e.Message, tt.want[i])
				}
			}
		})
	}
}

func TestGetEvents(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.root, "a.jpg"), encodeJPEG(t, 64, 48))
	f.catalog(t)

	w := serve(f.h.GetEvents, "GET", "/api/events?limit=1", "")
	var events []indexer.Event
	decode(t, w, &events)
	if len(events) != 1 || events[0].Reason != indexer.Completed {
		t.Errorf("expected the Completed event, got %+v", events)
	}

	if w := serve(f.h.GetEvents, "GET", "/api/events?limit=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: status %d, want 400", w.Code)
	}
}

func TestGetAssets(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.root, "a.jpg"), encodeJPEG(t, 64, 48))
	writeFile(t, filepath.Join(f.root, "b.jpg"), []byte("broken"))
	f.catalog(t)

	if w := serve(f.h.GetAssets, "GET", "/api/assets", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing dir: status %d, want 400", w.Code)
	}

	w := serve(f.h.GetAssets, "GET", "/api/assets?dir="+f.root, "")
	var assets []catalog.Asset
	decode(t, w, &assets)
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}

	w = serve(f.h.GetAssets, "GET", "/api/assets?dir=/not/catalogued", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("unknown folder: body %q, want []", w.Body.String())
	}
}

func TestCreateAsset(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.root, "new.jpg"), encodeJPEG(t, 64, 48))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid body", `{"directory":`, http.StatusBadRequest},
		{"unknown field", `{"dir":"x"}`, http.StatusBadRequest},
		{"missing file name", `{"directory":"` + f.root + `"}`, http.StatusBadRequest},
		{"path in file name", `{"directory":"` + f.root + `","fileName":"../new.jpg"}`, http.StatusBadRequest},
		{"unsupported type", `{"directory":"` + f.root + `","fileName":"notes.txt"}`, http.StatusBadRequest},
		{"missing file", `{"directory":"` + f.root + `","fileName":"gone.jpg"}`, http.StatusNotFound},
		{"unstorable name", `{"directory":"` + f.root + `","fileName":"odd\"|name.jpg"}`, http.StatusBadRequest},
		{"created", `{"directory":"` + f.root + `","fileName":"new.jpg"}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(f.h.CreateAsset, "POST", "/api/assets", tt.body)
			if w.Code != tt.want {
				t.Errorf("status %d, want %d (body %q)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	if !f.repo.IsAssetCatalogued(f.root, "new.jpg") {
		t.Error("new.jpg should be catalogued")
	}
}

func TestCreateAssetDuringPass(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.root, "new.jpg"), encodeJPEG(t, 16, 16))

	events := make(chan indexer.Event)
	errc := make(chan error, 1)
	go func() {
		errc <- f.idx.CatalogAssets(context.Background(), events)
		close(events)
	}()
	// The pass holds the indexer until its events are drained.
	<-events

	body := `{"directory":"` + f.root + `","fileName":"new.jpg"}`
	w := serve(f.h.CreateAsset, "POST", "/api/assets", body)
	if w.Code != http.StatusConflict {
		t.Errorf("status %d, want 409 (body %q)", w.Code, w.Body.String())
	}

	for range events {
	}
	if err := <-errc; err != nil {
		t.Fatalf("CatalogAssets failed: %v", err)
	}

	w = serve(f.h.CreateAsset, "POST", "/api/assets", body)
	if w.Code != http.StatusCreated {
		t.Errorf("after the pass: status %d, want 201", w.Code)
	}
}

func TestGetThumbnail(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.root, "a.jpg"), encodeJPEG(t, 400, 300))
	f.catalog(t)

	q := "?dir=" + f.root + "&file=a.jpg"

	w := serve(f.h.GetThumbnail, "GET", "/api/thumbnail"+q, "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("status %d, content type %q", w.Code, w.Header().Get("Content-Type"))
	}
	img, err := jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("stored thumbnail is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Errorf("stored thumbnail is %dx%d, want 200x150", b.Dx(), b.Dy())
	}

	w = serve(f.h.GetThumbnail, "GET", "/api/thumbnail"+q+"&width=100&height=100", "")
	img, err = jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("resized thumbnail is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 75 {
		t.Errorf("resized thumbnail is %dx%d, want 100x75", b.Dx(), b.Dy())
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing file", "/api/thumbnail?dir=" + f.root, http.StatusBadRequest},
		{"bad width", "/api/thumbnail" + q + "&width=-1", http.StatusBadRequest},
		{"unknown asset", "/api/thumbnail?dir=" + f.root + "&file=none.jpg", http.StatusNotFound},
		{"unknown asset resized", "/api/thumbnail?dir=" + f.root + "&file=none.jpg&width=10", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(f.h.GetThumbnail, "GET", tt.target, ""); w.Code != tt.want {
				t.Errorf("status %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestGetDuplicatesAndSimilar(t *testing.T) {
	f := newFixture(t)
	data := encodeJPEG(t, 64, 48)
	writeFile(t, filepath.Join(f.root, "a.jpg"), data)
	writeFile(t, filepath.Join(f.root, "copy", "a.jpg"), data)
	f.catalog(t)

	w := serve(f.h.GetDuplicates, "GET", "/api/duplicates", "")
	var sets []DuplicateSet
	decode(t, w, &sets)
	if len(sets) != 1 || len(sets[0].Assets) != 2 || sets[0].Hash == "" {
		t.Fatalf("duplicates = %+v", sets)
	}

	w = serve(f.h.GetSimilar, "GET", "/api/duplicates/similar?distance=0", "")
	sets = nil
	decode(t, w, &sets)
	if len(sets) != 1 || len(sets[0].Assets) != 2 {
		t.Errorf("similar = %+v", sets)
	}

	if w := serve(f.h.GetSimilar, "GET", "/api/duplicates/similar?distance=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid distance: status %d, want 400", w.Code)
	}
}

func TestSyncDefinitions(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.root, "in")
	dst := filepath.Join(f.root, "out")
	writeFile(t, filepath.Join(src, "a.jpg"), encodeJPEG(t, 16, 16))

	if w := serve(f.h.PutSyncDefinitions, "PUT", "/api/sync-definitions", `[{"sourceDirectory":""}]`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid definition: status %d, want 400", w.Code)
	}

	body := `[{"sourceDirectory":"` + src + `","destinationDirectory":"` + dst + `"}]`
	w := serve(f.h.PutSyncDefinitions, "PUT", "/api/sync-definitions", body)
	var defs []catalog.SyncAssetsDirectoriesDefinition
	decode(t, w, &defs)
	if len(defs) != 1 || defs[0].SourceDirectory != src {
		t.Fatalf("stored definitions = %+v", defs)
	}

	w = serve(f.h.RunSyncDefinitions, "POST", "/api/sync-definitions/run", "")
	var results []syncassets.Result
	decode(t, w, &results)
	if len(results) != 1 || len(results[0].Copied) != 1 {
		t.Fatalf("results = %+v", results)
	}
	if _, err := os.Stat(filepath.Join(dst, "a.jpg")); err != nil {
		t.Errorf("a.jpg was not copied: %v", err)
	}
}

func TestRecentPaths(t *testing.T) {
	f := newFixture(t)

	for _, p := range []string{"/a", "/b", "/a"} {
		if w := serve(f.h.AddRecentPath, "POST", "/api/recent-paths", `{"path":"`+p+`"}`); w.Code != http.StatusOK {
			t.Fatalf("add %s: status %d", p, w.Code)
		}
	}
	if w := serve(f.h.AddRecentPath, "POST", "/api/recent-paths", `{"path":" "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank path: status %d, want 400", w.Code)
	}

	w := serve(f.h.GetRecentPaths, "GET", "/api/recent-paths", "")
	var paths []string
	decode(t, w, &paths)
	if len(paths) != 2 || paths[0] != "/a" || paths[1] != "/b" {
		t.Errorf("recent paths = %v, want [/a /b]", paths)
	}
}

func TestGetVersion(t *testing.T) {
	f := newFixture(t)

	w := serve(f.h.GetVersion, "GET", "/api/version", "")
	var info startup.BuildInfo
	decode(t, w, &info)
	if info.Version != startup.Version || w.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("version = %+v", info)
	}
}

func TestMetricsHandler(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.h.MetricsHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", http.NoBody))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "media_catalog_") {
		t.Errorf("metrics: status %d", w.Code)
	}
}
