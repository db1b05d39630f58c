package comparator

import (
	"fmt"
	"testing"
	"time"

	"media-catalog/internal/catalog"
)

func assets(names ...string) []catalog.Asset {
	out := make([]catalog.Asset, 0, len(names))
	for _, n := range names {
		out = append(out, catalog.Asset{FileName: n})
	}
	return out
}

func TestGetNewAndDeletedFileNames(t *testing.T) {
	tests := []struct {
		name        string
		disk        []string
		catalogued  []catalog.Asset
		wantNew     []string
		wantDeleted []string
	}{
		{
			name:        "identical sets",
			disk:        []string{"a.jpg", "b.jpg"},
			catalogued:  assets("a.jpg", "b.jpg"),
			wantNew:     []string{},
			wantDeleted: []string{},
		},
		{
			name:        "case differences are ignored",
			disk:        []string{"A.JPG"},
			catalogued:  assets("a.jpg"),
			wantNew:     []string{},
			wantDeleted: []string{},
		},
		{
			name:        "new and deleted",
			disk:        []string{"a.jpg", "c.jpg", "d.png"},
			catalogued:  assets("a.jpg", "b.jpg"),
			wantNew:     []string{"c.jpg", "d.png"},
			wantDeleted: []string{"b.jpg"},
		},
		{
			name:        "empty catalog",
			disk:        []string{"a.jpg"},
			catalogued:  nil,
			wantNew:     []string{"a.jpg"},
			wantDeleted: []string{},
		},
		{
			name:        "empty disk",
			disk:        nil,
			catalogued:  assets("a.jpg"),
			wantNew:     []string{},
			wantDeleted: []string{"a.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotNew := GetNewFileNames(tt.disk, tt.catalogued)
			gotDeleted := GetDeletedFileNames(tt.disk, tt.catalogued)

			if fmt.Sprint(gotNew) != fmt.Sprint(tt.wantNew) {
				t.Errorf("GetNewFileNames = %v, want %v", gotNew, tt.wantNew)
			}
			if fmt.Sprint(gotDeleted) != fmt.Sprint(tt.wantDeleted) {
				t.Errorf("GetDeletedFileNames = %v, want %v", gotDeleted, tt.wantDeleted)
			}

			// New names are never catalogued and deleted names are never on disk.
			deleted := map[string]bool{}
			for _, n := range gotDeleted {
				deleted[n] = true
			}
			for _, n := range gotNew {
				if deleted[n] {
					t.Errorf("%s reported as both new and deleted", n)
				}
			}
		})
	}
}

func TestGetUpdatedFileNames(t *testing.T) {
	thumbTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	catalogued := []catalog.Asset{
		{FileName: "old.jpg", ThumbnailCreationDateTime: thumbTime},
		{FileName: "Touched.jpg", ThumbnailCreationDateTime: thumbTime},
		{FileName: "same.jpg", ThumbnailCreationDateTime: thumbTime},
		{FileName: "gone.jpg", ThumbnailCreationDateTime: thumbTime},
	}
	disk := []DiskFile{
		{Name: "old.jpg", ModTime: thumbTime.Add(-time.Hour)},
		{Name: "touched.JPG", ModTime: thumbTime.Add(time.Second)},
		{Name: "same.jpg", ModTime: thumbTime},
	}

	got := GetUpdatedFileNames(catalogued, disk)
	if fmt.Sprint(got) != "[Touched.jpg]" {
		t.Errorf("GetUpdatedFileNames = %v, want [Touched.jpg]", got)
	}
}

func TestGetImageAndVideoNames(t *testing.T) {
	images, videos := GetImageAndVideoNames([]string{"a.jpg", "b.MP4", "c.txt", "d.PNG", "e.mov", "noext"})

	if fmt.Sprint(images) != "[a.jpg d.PNG]" {
		t.Errorf("images = %v", images)
	}
	if fmt.Sprint(videos) != "[b.MP4 e.mov]" {
		t.Errorf("videos = %v", videos)
	}
}

func TestSyncVariants(t *testing.T) {
	source := []string{"a.jpg", "b.jpg", "C.jpg"}
	destination := []string{"b.jpg", "c.JPG", "z.jpg"}

	if got := GetNewFileNamesToSync(source, destination); fmt.Sprint(got) != "[a.jpg]" {
		t.Errorf("GetNewFileNamesToSync = %v", got)
	}
	if got := GetDeletedFileNamesToSync(source, destination); fmt.Sprint(got) != "[z.jpg]" {
		t.Errorf("GetDeletedFileNamesToSync = %v", got)
	}
	if got := GetNewFileNamesToSync(source, source); len(got) != 0 {
		t.Errorf("identical directories should need no copies, got %v", got)
	}
}
