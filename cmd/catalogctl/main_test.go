package main

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliEnv struct {
	root    string
	dataDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{root: t.TempDir(), dataDir: filepath.Join(t.TempDir(), "data")}
	t.Setenv("CATALOG_CONFIG", "")
	t.Setenv("CATALOG_DATA_DIR", env.dataDir)
	t.Setenv("CATALOG_ROOTS", env.root)
	t.Setenv("CATALOG_ANALYSE_VIDEOS", "false")
	t.Setenv("LOG_LEVEL", "error")
	return env
}

// run executes catalogctl with args and returns its output.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(e.root, "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("catalogctl %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCatalogAndDuplicates(t *testing.T) {
	env := newCLIEnv(t)
	writeJPEG(t, filepath.Join(env.root, "a.jpg"))
	writeJPEG(t, filepath.Join(env.root, "nested", "a-copy.jpg"))

	out := env.mustRun(t, "catalog")
	if !strings.Contains(out, "AssetAdded") || !strings.Contains(out, "2 assets in 2 folders") {
		t.Errorf("unexpected catalog output:\n%s", out)
	}

	out = env.mustRun(t, "duplicates")
	if !strings.Contains(out, "Set 1 (2 assets)") ||
		!strings.Contains(out, filepath.Join(env.root, "nested", "a-copy.jpg")) {
		t.Errorf("unexpected duplicates output:\n%s", out)
	}

	if _, err := env.run(t, "duplicates", "--similar", "-1"); err == nil {
		t.Error("expected an error for a negative distance")
	}
}

func TestCatalogWithoutRoots(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("CATALOG_ROOTS", "")

	if _, err := env.run(t, "catalog"); err == nil {
		t.Error("expected an error without roots")
	}
}

func TestBackup(t *testing.T) {
	env := newCLIEnv(t)

	if out := env.mustRun(t, "backup"); !strings.Contains(out, "Backup created.") {
		t.Errorf("first backup: %q", out)
	}
	if out := env.mustRun(t, "backup"); !strings.Contains(out, "Backup updated.") {
		t.Errorf("second backup: %q", out)
	}
}

func TestDefinitionsAndSyncFolders(t *testing.T) {
	env := newCLIEnv(t)
	src := filepath.Join(env.root, "in")
	dst := filepath.Join(env.root, "out")
	writeJPEG(t, filepath.Join(src, "a.jpg"))
	writeJPEG(t, filepath.Join(src, "sub", "b.jpg"))

	if out := env.mustRun(t, "definitions", "list"); !strings.Contains(out, "No sync definitions.") {
		t.Errorf("empty list: %q", out)
	}

	env.mustRun(t, "definitions", "add", src, dst, "--include-sub-folders")
	out := env.mustRun(t, "definitions", "list")
	if !strings.Contains(out, src+" -> "+dst+" (sub-folders)") {
		t.Errorf("list after add: %q", out)
	}

	out = env.mustRun(t, "sync-folders")
	if !strings.Contains(out, "2 copied") {
		t.Errorf("sync output: %q", out)
	}
	for _, p := range []string{filepath.Join(dst, "a.jpg"), filepath.Join(dst, "sub", "b.jpg")} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s was not copied: %v", p, err)
		}
	}

	env.mustRun(t, "definitions", "clear")
	if out := env.mustRun(t, "definitions", "list"); !strings.Contains(out, "No sync definitions.") {
		t.Errorf("list after clear: %q", out)
	}

	if _, err := env.run(t, "definitions", "add", src); err == nil {
		t.Error("expected an error with a single argument")
	}
}

func TestRecent(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun(t, "recent", "add", "/first")
	env.mustRun(t, "recent", "add", "/second")
	env.mustRun(t, "recent", "add", "/first")

	out := env.mustRun(t, "recent", "list")
	if out != "/first\n/second\n" {
		t.Errorf("recent list = %q", out)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("CATALOG_BATCH_SIZE", "zero")

	if _, err := env.run(t, "recent", "list"); err == nil {
		t.Error("expected a configuration error")
	}
}

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)
	if out := env.mustRun(t, "version"); !strings.HasPrefix(out, "catalogctl ") {
		t.Errorf("version output: %q", out)
	}
}
