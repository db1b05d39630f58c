package media

import "errors"

var (
	// ErrUnsupportedFormat is returned when no registered decoder accepts the data.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrHashLengthMismatch is returned by HammingDistance for hashes of different lengths.
	ErrHashLengthMismatch = errors.New("hash lengths differ")
	// ErrFrameExtraction wraps every failure to obtain a video frame.
	ErrFrameExtraction = errors.New("video frame extraction failed")
)
