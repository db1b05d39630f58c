package media

import (
	"bytes"
	"image"

	"github.com/rwcarlsen/goexif/exif"

	"media-catalog/internal/catalog"
)

// EXIF orientation codes used as defaults by callers.
const (
	OrientationNormal    = 1
	OrientationCorrupted = -1
)

// GetExifOrientation returns the EXIF orientation stored in data,
// defaultValue when there is none and corruptedValue when data is not an
// image at all.
func GetExifOrientation(data []byte, defaultValue, corruptedValue int) int {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return corruptedValue
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return defaultValue
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return defaultValue
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return defaultValue
	}
	return v
}

// GetImageRotation maps an EXIF orientation code to the clockwise rotation
// that displays the image upright. Mirrored codes use the rotation of their
// non-mirrored counterpart.
func GetImageRotation(orientation int) catalog.Rotation {
	switch orientation {
	case 3, 4:
		return catalog.Rotate180
	case 5, 6:
		return catalog.Rotate90
	case 7, 8:
		return catalog.Rotate270
	}
	return catalog.Rotate0
}
