// Package syncassets applies sync definitions: media files of a source
// directory are copied into a destination directory, optionally deleting
// destination files that are no longer in the source and optionally
// descending into sub-folders.
//
// Definitions run concurrently. Destination directories shared between
// definitions are created once.
package syncassets
