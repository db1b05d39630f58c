package syncassets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"media-catalog/internal/catalog"
	"media-catalog/internal/comparator"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
	"media-catalog/internal/workers"
)

// Result reports what one definition did. Copied and Deleted hold
// destination paths.
type Result struct {
	Definition catalog.SyncAssetsDirectoriesDefinition `json:"definition"`
	Copied     []string                                `json:"copied"`
	Deleted    []string                                `json:"deleted"`
	Errors     []string                                `json:"errors,omitempty"`
	Message    string                                  `json:"message,omitempty"`
}

// Syncer executes sync definitions.
type Syncer struct {
	fs   filesystem.FS
	dirs singleflight.Group
}

// New creates a Syncer.
func New(fsys filesystem.FS) *Syncer {
	return &Syncer{fs: fsys}
}

// Execute runs every definition and returns one result per definition, in
// the same order. A cancelled context stops work between files; the results
// collected so far are returned with the context error.
func (s *Syncer) Execute(ctx context.Context, defs []catalog.SyncAssetsDirectoriesDefinition) ([]Result, error) {
	results := make([]Result, len(defs))

	var g errgroup.Group
	g.SetLimit(workers.ForIO(len(defs)))
	for i, def := range defs {
		results[i] = Result{Definition: def, Copied: []string{}, Deleted: []string{}}
		g.Go(func() error {
			s.executeDefinition(ctx, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	copied, deleted := 0, 0
	for _, r := range results {
		copied += len(r.Copied)
		deleted += len(r.Deleted)
	}
	logging.Info("Sync definitions complete: %d definition(s), %d copied, %d deleted", len(defs), copied, deleted)

	return results, ctx.Err()
}

func (s *Syncer) executeDefinition(ctx context.Context, res *Result) {
	def := res.Definition
	src := filepath.Clean(def.SourceDirectory)
	dst := filepath.Clean(def.DestinationDirectory)

	if src == dst {
		res.Message = "source and destination are the same directory"
		return
	}
	if info, err := s.fs.Stat(src); err != nil || !info.IsDir() {
		res.Message = fmt.Sprintf("source directory %s not found", src)
		logging.Warn("Sync skipped: %s", res.Message)
		return
	}

	s.syncDirectory(ctx, src, dst, dst, def, res)

	if ctx.Err() != nil {
		res.Message = "cancelled"
	}
}

// syncDirectory mirrors one directory level and recurses when configured.
// root is the destination of the definition and is never treated as a
// source sub-folder.
func (s *Syncer) syncDirectory(ctx context.Context, src, dst, root string, def catalog.SyncAssetsDirectoriesDefinition, res *Result) {
	if ctx.Err() != nil {
		return
	}

	srcFiles, srcDirs, err := s.list(src)
	if err != nil {
		s.fail(res, "failed to list %s: %v", src, err)
		return
	}
	if err := s.ensureDir(dst); err != nil {
		s.fail(res, "failed to create %s: %v", dst, err)
		return
	}
	dstFiles, _, err := s.list(dst)
	if err != nil {
		s.fail(res, "failed to list %s: %v", dst, err)
		return
	}

	for _, name := range comparator.GetNewFileNamesToSync(srcFiles, dstFiles) {
		if ctx.Err() != nil {
			return
		}
		target := filepath.Join(dst, name)
		if err := s.copyFile(filepath.Join(src, name), target); err != nil {
			s.fail(res, "failed to copy %s: %v", name, err)
			continue
		}
		metrics.SyncFilesTotal.WithLabelValues("copied").Inc()
		logging.Debug("Synced %s", target)
		res.Copied = append(res.Copied, target)
	}

	if def.DeleteAssetsNotInSource {
		for _, name := range comparator.GetDeletedFileNamesToSync(srcFiles, dstFiles) {
			if ctx.Err() != nil {
				return
			}
			target := filepath.Join(dst, name)
			if err := s.fs.Remove(target); err != nil {
				s.fail(res, "failed to delete %s: %v", target, err)
				continue
			}
			metrics.SyncFilesTotal.WithLabelValues("deleted").Inc()
			logging.Debug("Deleted %s, not in source", target)
			res.Deleted = append(res.Deleted, target)
		}
	}

	if !def.IncludeSubFolders {
		return
	}
	for _, name := range srcDirs {
		child := filepath.Join(src, name)
		if child == root {
			continue
		}
		s.syncDirectory(ctx, child, filepath.Join(dst, name), root, def, res)
	}
}

// list returns the visible media files and sub-directories of dir. A missing
// directory is empty.
func (s *Syncer) list(dir string) (files, dirs []string, err error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil, nil
		}
		return nil, nil, err
	}
	files = []string{}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, name)
		} else if mediatypes.IsMediaFile(name) {
			files = append(files, name)
		}
	}
	return files, dirs, nil
}

// ensureDir creates dir once even when several definitions share it.
func (s *Syncer) ensureDir(dir string) error {
	_, err, _ := s.dirs.Do(dir, func() (any, error) {
		return nil, s.fs.MkdirAll(dir, 0o755)
	})
	return err
}

// copyFile copies the content and keeps the modification time of src.
func (s *Syncer) copyFile(src, dst string) error {
	info, err := s.fs.Stat(src)
	if err != nil {
		return err
	}
	data, err := s.fs.ReadFile(src)
	if err != nil {
		return err
	}
	if err := s.fs.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return s.fs.SetModTime(dst, info.ModTime())
}

func (s *Syncer) fail(res *Result, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	metrics.SyncFilesTotal.WithLabelValues("failed").Inc()
	logging.Warn("Sync %s -> %s: %s", res.Definition.SourceDirectory, res.Definition.DestinationDirectory, msg)
	res.Errors = append(res.Errors, msg)
}
