package startup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"media-catalog/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

const rule = "------------------------------------------------------------"

func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

// LoadConfig loads the configuration (see Load) reading .env from the
// working directory, logs it and prepares the data directory.
func LoadConfig() (*Config, error) {
	logging.Info("media-catalog %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, BuildTime, GoVersion, runtime.GOOS, runtime.GOARCH)

	config, err := Load(".env")
	if err != nil {
		return nil, err
	}
	if level, ok := logging.ParseLevel(config.LogLevel); ok {
		logging.SetLevel(level)
	}

	section("CONFIGURATION")
	for _, line := range configLines(config) {
		logging.Info("  %-18s %s", line[0], line[1])
	}

	section("CATALOG FOLDERS")
	config.DataDir, err = prepareDataDir(config.DataDir)
	if err != nil {
		return nil, err
	}
	logging.Info("  [OK] Data directory %s", config.DataDir)

	missing := checkRoots(config.Roots)
	switch {
	case len(config.Roots) == 0:
		logging.Warn("  No roots configured, catalog passes will not find anything")
	case len(missing) == len(config.Roots):
		logging.Warn("  None of the %d root(s) is reachable yet", len(config.Roots))
	}
	return config, nil
}

// configLines renders the settings worth seeing at startup.
func configLines(c *Config) [][2]string {
	lines := [][2]string{
		{"data", fmt.Sprintf("%s (%s, %s, separator %q)", c.DataDir, c.TablesFolderName, c.BlobsFolderName, c.Separator)},
		{"roots", strings.Join(c.Roots, ", ")},
		{"passes", fmt.Sprintf("every %v, batches of %d, %d backup(s) kept", c.Cooldown, c.BatchSize, c.BackupsToKeep)},
		{"thumbnails", fmt.Sprintf("%dx%d, skip=%v, %d folder(s) cached", c.ThumbnailMaxWidth, c.ThumbnailMaxHeight, c.SkipThumbnails, c.ThumbnailCacheSize)},
		{"hashes", fmt.Sprintf("sha512 phash=%v dhash=%v md5=%v", c.UsePHash, c.UseDHash, c.UseMD5)},
		{"similarity", fmt.Sprintf("distance <= %d", c.SimilarityThreshold)},
		{"videos", fmt.Sprintf("analyse=%v ffmpeg=%s", c.AnalyseVideos, c.FFmpegPath)},
		{"http", fmt.Sprintf(":%s, health check logging %v", c.Port, c.LogHealthChecks)},
		{"log level", logging.GetLevel().String()},
	}
	if c.ConfigFile != "" {
		lines = append([][2]string{{"config file", c.ConfigFile}}, lines...)
	}
	if c.ExemptedFolderPath != "" {
		lines = append(lines, [2]string{"exempted", c.ExemptedFolderPath})
	}
	if len(c.SyncDefinitions) > 0 {
		lines = append(lines, [2]string{"sync", fmt.Sprintf("%d definition(s) in config", len(c.SyncDefinitions))})
	}
	return lines
}

// prepareDataDir resolves dir, creates it when missing and checks that
// catalog files can be written into it.
func prepareDataDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(abs, ".catalog-write-*")
	if err != nil {
		return "", fmt.Errorf("data directory is not writable: %w", err)
	}
	name := tmp.Name()
	tmp.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("  Failed to remove %s: %v", name, err)
	}
	return abs, nil
}

// checkRoots logs the state of every root and returns the unreachable ones.
func checkRoots(roots []string) []string {
	var missing []string
	for _, root := range roots {
		info, err := os.Stat(root)
		switch {
		case err != nil:
			logging.Warn("  Root %s: %v", root, err)
			missing = append(missing, root)
		case !info.IsDir():
			logging.Warn("  Root %s is not a directory", root)
			missing = append(missing, root)
		default:
			logging.Info("  [OK] Root %s", root)
		}
	}
	return missing
}

// LogStorageInit logs catalog loading
func LogStorageInit(duration time.Duration, assets int) {
	logging.Info("  [OK] Catalog loaded in %v (%d assets)", duration.Round(time.Millisecond), assets)
}

// LogVideoInit checks FFmpeg when videos are analysed and reports whether
// video frames can be extracted.
func LogVideoInit(config *Config) bool {
	if !config.AnalyseVideos {
		logging.Info("  Video analysis disabled, videos are catalogued without thumbnails")
		return false
	}
	version, err := ffmpegVersion(config.FFmpegPath)
	if err != nil {
		logging.Warn("  %v; videos are catalogued without thumbnails", err)
		return false
	}
	logging.Info("  [OK] %s", version)
	return true
}

// ffmpegVersion returns the first line of `ffmpeg -version`.
func ffmpegVersion(ffmpeg string) (string, error) {
	path, err := exec.LookPath(ffmpeg)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not usable: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg not usable: %w", err)
	}
	first, _, _ := bytes.Cut(out, []byte("\n"))
	return strings.TrimSpace(string(first)), nil
}

// LogSchedulerStarted logs the background pass settings.
func LogSchedulerStarted(config *Config) {
	logging.Info("  [OK] Catalog passes scheduled over %d root(s), %v apart", len(config.Roots), config.Cooldown)
}

// Route is one method and path served by the router.
type Route struct {
	Method string
	Path   string
}

// ListRoutes returns the routes of router sorted by path and method. Routes
// registered without a method restriction are listed with method "*".
func ListRoutes(router *mux.Router) ([]Route, error) {
	var routes []Route
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, Route{Method: m, Path: path})
		}
		return nil
	})
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, err
}

// routeArea names the part of the service a path belongs to: the segment
// after /api for API routes, the first segment otherwise.
func routeArea(path string) string {
	rest := strings.TrimPrefix(path, "/")
	if api, ok := strings.CutPrefix(rest, "api/"); ok {
		rest = api
	}
	area, _, _ := strings.Cut(rest, "/")
	return area
}

// LogRoutes logs the served routes, one line per area.
func LogRoutes(router *mux.Router) {
	routes, err := ListRoutes(router)
	if err != nil {
		logging.Warn("  Failed to list routes: %v", err)
	}

	areas := make(map[string][]string)
	var order []string
	for _, r := range routes {
		if r.Method == "*" {
			continue
		}
		area := routeArea(r.Path)
		if _, ok := areas[area]; !ok {
			order = append(order, area)
		}
		areas[area] = append(areas[area], r.Method+" "+r.Path)
	}
	sort.Strings(order)

	section("HTTP API")
	for _, area := range order {
		logging.Info("  %-18s %s", area, strings.Join(areas[area], ", "))
	}
}

// LogListening logs the address the server is about to accept requests on.
func LogListening(port string, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("Listening on :%s (started in %v)", port, startupDuration.Round(time.Millisecond))
}

// Shutdown logs the steps of a graceful shutdown.
type Shutdown struct {
	start  time.Time
	failed int
}

// BeginShutdown logs the signal that stops the daemon.
func BeginShutdown(reason string) *Shutdown {
	section("SHUTDOWN (" + reason + ")")
	return &Shutdown{start: time.Now()}
}

// Step runs fn and logs its outcome. A failing step does not stop the
// shutdown.
func (s *Shutdown) Step(name string, fn func() error) {
	logging.Debug("  %s...", name)
	if err := fn(); err != nil {
		s.failed++
		logging.Warn("  [FAILED] %s: %v", name, err)
		return
	}
	logging.Info("  [OK] %s", name)
}

// Done logs the end of the shutdown and returns the number of failed steps.
func (s *Shutdown) Done() int {
	if s.failed > 0 {
		logging.Warn("Shutdown finished with %d failed step(s) in %v", s.failed, time.Since(s.start).Round(time.Millisecond))
	} else {
		logging.Info("Shutdown complete in %v", time.Since(s.start).Round(time.Millisecond))
	}
	return s.failed
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
