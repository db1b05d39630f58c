package handlers

import (
	"media-catalog/internal/catalog"
	"media-catalog/internal/duplicates"
	"media-catalog/internal/indexer"
	"media-catalog/internal/startup"
	"media-catalog/internal/syncassets"
)

// PassTrigger starts a catalog pass in the background.
type PassTrigger interface {
	TriggerIndex()
}

type Handlers struct {
	repo       *catalog.Repository
	indexer    *indexer.Indexer
	trigger    PassTrigger
	finder     *duplicates.Finder
	syncer     *syncassets.Syncer
	events     *EventFeed
	similarity int
}

func New(repo *catalog.Repository, idx *indexer.Indexer, trigger PassTrigger, syncer *syncassets.Syncer, events *EventFeed, config *startup.Config) *Handlers {
	return &Handlers{
		repo:       repo,
		indexer:    idx,
		trigger:    trigger,
		finder:     duplicates.NewFinder(repo),
		syncer:     syncer,
		events:     events,
		similarity: config.SimilarityThreshold,
	}
}
