package catalog

import (
	"fmt"
	"strings"

	"media-catalog/internal/storage"
)

// GetSyncAssetsConfiguration returns the sync definitions in their
// declared order.
func (r *Repository) GetSyncAssetsConfiguration() []SyncAssetsDirectoriesDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SyncAssetsDirectoriesDefinition{}, r.syncDefinitions...)
}

// SaveSyncAssetsConfiguration replaces all sync definitions and persists
// them.
func (r *Repository) SaveSyncAssetsConfiguration(defs []SyncAssetsDirectoriesDefinition) error {
	cleaned := make([]SyncAssetsDirectoriesDefinition, 0, len(defs))
	for i, d := range defs {
		if strings.TrimSpace(d.SourceDirectory) == "" || strings.TrimSpace(d.DestinationDirectory) == "" {
			return fmt.Errorf("sync definition %d: source and destination are required", i)
		}
		d.SourceDirectory = cleanPath(d.SourceDirectory)
		d.DestinationDirectory = cleanPath(d.DestinationDirectory)
		cleaned = append(cleaned, d)
	}

	r.mu.Lock()
	r.syncDefinitions = cleaned
	r.settingsDirty = true
	r.mu.Unlock()

	return r.persistSettings()
}

// GetRecentTargetPaths returns the recent target paths, most recent first.
func (r *Repository) GetRecentTargetPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.recentPaths...)
}

// SaveRecentTargetPaths replaces the recent target paths. Duplicates are
// dropped and the list is capped.
func (r *Repository) SaveRecentTargetPaths(paths []string) error {
	r.mu.Lock()
	r.recentPaths = r.capRecent(paths)
	r.settingsDirty = true
	r.mu.Unlock()

	return r.persistSettings()
}

// UpdateTargetPathToRecent moves path to the front of the recent target
// paths, inserting it if absent, and persists the list.
func (r *Repository) UpdateTargetPathToRecent(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("recent target path is empty")
	}
	path = cleanPath(path)

	r.mu.Lock()
	r.recentPaths = r.capRecent(append([]string{path}, r.recentPaths...))
	r.settingsDirty = true
	r.mu.Unlock()

	return r.persistSettings()
}

// capRecent dedupes paths keeping the first occurrence and truncates the
// list. Callers hold r.mu.
func (r *Repository) capRecent(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
		if len(out) == r.opts.RecentPathsMax {
			break
		}
	}
	return out
}

// persistSettings writes the sync definitions and recent paths tables. On
// failure they stay dirty and the next SaveCatalog retries.
func (r *Repository) persistSettings() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.RLock()
	defs := append([]SyncAssetsDirectoriesDefinition(nil), r.syncDefinitions...)
	recent := append([]string(nil), r.recentPaths...)
	r.mu.RUnlock()

	if err := r.writeSettings(defs, recent); err != nil {
		return err
	}

	r.mu.Lock()
	r.settingsDirty = false
	r.mu.Unlock()
	return nil
}

func (r *Repository) writeSettings(defs []SyncAssetsDirectoriesDefinition, recent []string) error {
	if err := storage.WriteTable(r.store, SyncDefinitionsTable, defs, encodeSyncDefinition); err != nil {
		return fmt.Errorf("failed to save sync definitions: %w", err)
	}
	if err := storage.WriteTable(r.store, RecentPathsTable, recent, encodeRecentPath); err != nil {
		return fmt.Errorf("failed to save recent target paths: %w", err)
	}
	return nil
}
