package media

import (
	"bytes"
	"fmt"
	"image"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support

	"media-catalog/internal/catalog"
)

const (
	// MaxImagePixels bounds the images we decode. A 100MP RGBA image uses ~400MB.
	MaxImagePixels = 100_000_000

	jpegQuality = 80
)

// DecodeImage decodes data with the registered decoders and returns the
// format name reported by the decoder.
func DecodeImage(data []byte) (image.Image, string, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if config.Width*config.Height > MaxImagePixels {
		return nil, "", fmt.Errorf("image too large: %dx%d", config.Width, config.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return img, format, nil
}

// Thumbnailer produces small encoded previews.
type Thumbnailer struct {
	MaxWidth  int
	MaxHeight int
}

// Rotate turns img clockwise by rotation.
func Rotate(img image.Image, rotation catalog.Rotation) image.Image {
	// imaging rotates counter-clockwise.
	switch rotation {
	case catalog.Rotate90:
		return imaging.Rotate270(img)
	case catalog.Rotate180:
		return imaging.Rotate180(img)
	case catalog.Rotate270:
		return imaging.Rotate90(img)
	}
	return img
}

// Make rotates img upright, scales it to fit within the configured box
// and encodes it in the container matching sourceFormat: PNG and GIF are
// kept, everything else becomes JPEG.
func (t Thumbnailer) Make(img image.Image, rotation catalog.Rotation, sourceFormat string) (data []byte, width, height int, err error) {
	thumb := Rotate(img, rotation)
	if t.MaxWidth > 0 && t.MaxHeight > 0 {
		thumb = imaging.Fit(thumb, t.MaxWidth, t.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch sourceFormat {
	case "png":
		err = imaging.Encode(&buf, thumb, imaging.PNG)
	case "gif":
		err = imaging.Encode(&buf, thumb, imaging.GIF)
	default:
		err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	b := thumb.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}
