// Package storage implements the flat-file database backing the catalog.
//
// The data directory holds two sub-folders:
//
//	<data>/<tables>/<name>.db   line-oriented tables, one row per line
//	<data>/<blobs>/<name>      binary key -> bytes maps
//
// and a sibling <data>_Backups/ directory that receives one uncompressed
// zip of the whole data directory per day (yyyyMMdd.zip).
//
// Tables are schema-driven: SetTableSchema registers the columns of a table
// and which of them are escaped. Escaped fields are written between double
// quotes and may contain the separator; such a field ends at the two
// characters `"<separator>` or at the end of the line. Rows are mapped to and
// from typed values by caller-supplied functions passed to ReadTable and
// WriteTable, so this package knows nothing about catalog entities.
//
// Blob files are laid out as
//
//	int32 count (little endian)
//	count x { uvarint key length, key bytes, int32 data length, data bytes }
//
// All failures are returned as *Error values carrying the directory, the
// separator and the last path/payload touched, for diagnosis.
package storage
