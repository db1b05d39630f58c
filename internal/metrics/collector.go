package metrics

import (
	"time"

	"media-catalog/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current catalog statistics
type Stats struct {
	TotalAssets    int
	TotalFolders   int
	TotalCorrupted int
	DuplicateSets  int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	RecordStats(stats)

	logging.Debug("Metrics collected: assets=%d, folders=%d, corrupted=%d, duplicate sets=%d",
		stats.TotalAssets, stats.TotalFolders, stats.TotalCorrupted, stats.DuplicateSets)
}

// RecordStats sets the catalog gauges.
func RecordStats(stats Stats) {
	CatalogAssetsTotal.Set(float64(stats.TotalAssets))
	CatalogFoldersTotal.Set(float64(stats.TotalFolders))
	CatalogCorruptedTotal.Set(float64(stats.TotalCorrupted))
	CatalogDuplicateSets.Set(float64(stats.DuplicateSets))
}
