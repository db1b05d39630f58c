// Package media turns the bytes of an image or video file into a catalog
// Asset: content hashes, EXIF orientation, pixel dimensions and a small
// encoded thumbnail.
//
// The primary hash is SHA-512 over the whole file. Perceptual, difference
// and MD5 hashes are optional. Perceptual and difference hashes fall back
// to UnknownFingerprint when the content cannot be decoded; that value never
// matches anything in duplicate detection.
//
// Video thumbnails come from the first frame, extracted by a FrameExtractor
// (FFmpeg in production, a stub in tests).
package media
