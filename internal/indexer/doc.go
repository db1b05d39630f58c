// Package indexer keeps the catalog in step with the watched folders.
//
// A pass walks every root folder depth-first. For each directory it lists
// the media files, compares them with the catalogued assets and then:
//   - builds assets for new files, saving the folder after every batch
//   - rebuilds files modified since their thumbnail was made; when the
//     content hash is unchanged only the timestamps are refreshed
//   - deletes assets whose files are gone
//   - removes catalogued folders whose directories vanished
//
// Each change is reported as an Event on a channel, in order: the folder's
// FolderInspectionStarted, its asset changes, then FolderInspected, before
// any sub-folder is entered. When the pass changed anything the catalog is
// saved, today's backup is written and old backups are pruned.
//
// Hidden directories and the exempted folder subtree are skipped.
// Cancellation is checked between folders and between files; the batch being
// built is still committed.
//
// Scheduler runs passes in the background through gocron, never more than
// one at a time.
package indexer
