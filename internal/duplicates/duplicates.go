package duplicates

import (
	"media-catalog/internal/catalog"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
)

// Source provides the catalogued assets.
type Source interface {
	GetCataloguedAssets() []catalog.Asset
	GetStats() metrics.Stats
}

// Finder groups duplicated assets. It only reads from its source.
type Finder struct {
	source Source
}

// NewFinder creates a Finder over source.
func NewFinder(source Source) *Finder {
	return &Finder{source: source}
}

// GetDuplicatedAssets groups assets by content hash. Only groups with at
// least two members are returned, in order of first appearance.
func (f *Finder) GetDuplicatedAssets() [][]catalog.Asset {
	var order []string
	groups := make(map[string][]catalog.Asset)

	for _, a := range f.source.GetCataloguedAssets() {
		if a.Hash == "" {
			continue
		}
		if _, seen := groups[a.Hash]; !seen {
			order = append(order, a.Hash)
		}
		groups[a.Hash] = append(groups[a.Hash], a)
	}

	result := [][]catalog.Asset{}
	for _, h := range order {
		if len(groups[h]) > 1 {
			result = append(result, groups[h])
		}
	}
	return result
}

// GetSimilarAssets groups assets whose perceptual hashes differ in at most
// maxDistance hex characters. Similarity is transitive within a group.
func (f *Finder) GetSimilarAssets(maxDistance int) [][]catalog.Asset {
	var candidates []catalog.Asset
	for _, a := range f.source.GetCataloguedAssets() {
		if !media.IsUnknownFingerprint(a.PHash) {
			candidates = append(candidates, a)
		}
	}

	parent := make([]int, len(candidates))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			d, err := media.HammingDistance(candidates[i].PHash, candidates[j].PHash)
			if err != nil {
				logging.Debug("Skipping comparison of %s and %s: %v", candidates[i].FileName, candidates[j].FileName, err)
				continue
			}
			if d > maxDistance {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			// The earlier asset stays the root so groups keep first-seen order.
			if rj < ri {
				ri, rj = rj, ri
			}
			parent[rj] = ri
		}
	}

	var order []int
	groups := make(map[int][]catalog.Asset)
	for i, a := range candidates {
		root := find(i)
		if _, seen := groups[root]; !seen {
			order = append(order, root)
		}
		groups[root] = append(groups[root], a)
	}

	result := [][]catalog.Asset{}
	for _, root := range order {
		if len(groups[root]) > 1 {
			result = append(result, groups[root])
		}
	}
	return result
}

// GetStats returns the source statistics with the number of duplicate sets.
func (f *Finder) GetStats() metrics.Stats {
	stats := f.source.GetStats()
	stats.DuplicateSets = len(f.GetDuplicatedAssets())
	return stats
}
