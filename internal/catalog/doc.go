// Package catalog holds the in-memory model of what is catalogued and
// persists it through the storage engine.
//
// A Repository indexes Folders by id and by path, keeps the Assets of each
// folder in insertion order and manages one thumbnail blob per folder.
// Thumbnail blobs that have unsaved changes stay pinned in memory until the
// next SaveCatalog; clean blobs live in a bounded LRU cache keyed by folder
// id.
//
// Every entity has an encode/decode pair (schema-as-code) mapping it to a
// table row. Decoders return a *DecodeError naming the table, column and
// offending value.
//
// All exported methods are safe for concurrent use. Mutations are expected
// to come from a single writer (the indexer); readers never observe a
// folder's asset list half-updated.
package catalog
