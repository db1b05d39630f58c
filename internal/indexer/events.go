package indexer

import (
	"context"
	"time"

	"media-catalog/internal/catalog"
)

// Reason classifies a catalog change event.
type Reason string

const (
	FolderInspectionStarted Reason = "FolderInspectionStarted"
	FolderCreated           Reason = "FolderCreated"
	FolderDeleted           Reason = "FolderDeleted"
	AssetAdded              Reason = "AssetAdded"
	AssetUpdated            Reason = "AssetUpdated"
	AssetDeleted            Reason = "AssetDeleted"
	FolderInspected         Reason = "FolderInspected"
	BackupCreated           Reason = "BackupCreated"
	BackupUpdated           Reason = "BackupUpdated"
	Completed               Reason = "Completed"
)

// Status messages of the backup events.
const (
	CreatingBackupMessage = "Creating backup..."
	UpdatingBackupMessage = "Updating backup..."
)

// Event is one notification of a catalog pass.
type Event struct {
	Reason    Reason          `json:"reason"`
	Message   string          `json:"message,omitempty"`
	Asset     *catalog.Asset  `json:"asset,omitempty"`
	Folder    *catalog.Folder `json:"folder,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// pass carries the state of one catalog run.
type pass struct {
	ctx    context.Context
	events chan<- Event
	now    func() time.Time

	added   int
	updated int
	deleted int
}

// emit delivers an event. The send blocks until the consumer takes it, so
// callers of CatalogAssets must drain the channel until the pass returns.
func (p *pass) emit(e Event) {
	if p.events == nil {
		return
	}
	e.Timestamp = p.now()
	p.events <- e
}

func (p *pass) cancelled() bool {
	return p.ctx.Err() != nil
}

func (p *pass) changed() bool {
	return p.added+p.updated+p.deleted > 0
}
