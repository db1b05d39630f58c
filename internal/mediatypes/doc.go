// Package mediatypes holds the image and video extension tables shared by
// the comparator, the indexer and the sync executor.
//
// It has no dependencies so any package can import it without creating
// cycles.
//
//	switch mediatypes.FileTypeOf("IMG_0001.JPG") {
//	case mediatypes.FileTypeImage:
//	    // catalogue as a still image
//	case mediatypes.FileTypeVideo:
//	    // catalogue from its first frame
//	}
//
// Extensions are matched case-insensitively and include the leading dot.
package mediatypes
