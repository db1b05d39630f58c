package media

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Messages recorded on assets.
const (
	CorruptedImageMessage = "The asset is corrupted"
	RotatedImageMessage   = "The asset has been rotated"
)

// BuilderOptions selects what the AssetBuilder computes.
type BuilderOptions struct {
	ThumbnailMaxWidth  int
	ThumbnailMaxHeight int
	SkipThumbnails     bool
	UsePHash           bool
	UseDHash           bool
	UseMD5             bool
	AnalyseVideos      bool
}

// AssetBuilder creates Asset records from files.
type AssetBuilder struct {
	fs     filesystem.FS
	frames FrameExtractor
	opts   BuilderOptions
	now    func() time.Time
}

// NewAssetBuilder returns a builder. frames may be nil when videos are not
// analysed.
func NewAssetBuilder(fsys filesystem.FS, frames FrameExtractor, opts BuilderOptions, now func() time.Time) *AssetBuilder {
	if now == nil {
		now = time.Now
	}
	return &AssetBuilder{fs: fsys, frames: frames, opts: opts, now: now}
}

// Build reads folder/fileName and returns its asset and encoded thumbnail.
// An error means the file could not be read at all. A file that cannot be
// decoded yields an asset flagged as corrupted and a nil thumbnail.
func (b *AssetBuilder) Build(ctx context.Context, folder catalog.Folder, fileName string, isVideo bool) (*catalog.Asset, []byte, error) {
	path := filepath.Join(folder.Path, fileName)

	info, err := b.fs.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}
	data, err := b.fs.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	asset := &catalog.Asset{
		FolderID:                 folder.ID,
		FileName:                 fileName,
		FileSize:                 info.Size(),
		Hash:                     CalculateHash(data),
		FileCreationDateTime:     filesystem.CreationTime(info),
		FileModificationDateTime: info.ModTime(),
	}
	if b.opts.UseMD5 {
		asset.MD5Hash = CalculateMD5Hash(data)
	}

	// The thumbnail must not look stale next to the file it was made from.
	asset.ThumbnailCreationDateTime = b.now()
	if info.ModTime().After(asset.ThumbnailCreationDateTime) {
		asset.ThumbnailCreationDateTime = info.ModTime()
	}

	var (
		img      image.Image
		format   string
		rotation = catalog.Rotate0
		kind     = "image"
	)

	if isVideo {
		kind = "video"
		img = b.videoFrame(ctx, path)
		format = "jpeg"
	} else {
		orientation := GetExifOrientation(data, OrientationNormal, OrientationCorrupted)
		if orientation == OrientationCorrupted {
			b.markCorrupted(asset, path, "unrecognised image data")
			return asset, nil, nil
		}
		rotation = GetImageRotation(orientation)

		img, format, err = DecodeImage(data)
		if err != nil {
			b.markCorrupted(asset, path, err.Error())
			return asset, nil, nil
		}
	}

	asset.ImageRotation = rotation
	if rotation != catalog.Rotate0 {
		asset.IsRotated = true
		asset.RotatedMessage = RotatedImageMessage
	}

	if img != nil {
		bounds := img.Bounds()
		asset.PixelWidth = bounds.Dx()
		asset.PixelHeight = bounds.Dy()
	}
	if b.opts.UsePHash {
		asset.PHash = CalculatePHash(img)
	}
	if b.opts.UseDHash {
		asset.DHash = CalculateDHash(img)
	}

	if img == nil || b.opts.SkipThumbnails {
		return asset, nil, nil
	}

	start := time.Now()
	thumbnailer := Thumbnailer{MaxWidth: b.opts.ThumbnailMaxWidth, MaxHeight: b.opts.ThumbnailMaxHeight}
	thumb, w, h, err := thumbnailer.Make(img, rotation, format)
	metrics.ThumbnailGenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(kind, "error").Inc()
		logging.Warn("Thumbnail generation failed for %s: %v", path, err)
		return asset, nil, nil
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues(kind, "success").Inc()

	asset.ThumbnailPixelWidth = w
	asset.ThumbnailPixelHeight = h
	return asset, thumb, nil
}

func (b *AssetBuilder) markCorrupted(asset *catalog.Asset, path, reason string) {
	asset.IsCorrupted = true
	asset.CorruptedMessage = CorruptedImageMessage
	if b.opts.UsePHash {
		asset.PHash = UnknownFingerprint
	}
	if b.opts.UseDHash {
		asset.DHash = UnknownFingerprint
	}
	metrics.IndexerCorruptedAssets.Inc()
	logging.Warn("Corrupted asset %s: %s", path, reason)
}

// videoFrame returns nil when videos are not analysed or the frame cannot
// be extracted; the asset is then catalogued without a thumbnail.
func (b *AssetBuilder) videoFrame(ctx context.Context, path string) image.Image {
	if !b.opts.AnalyseVideos || b.frames == nil {
		return nil
	}
	img, err := b.frames.ExtractFirstFrame(ctx, path)
	if err != nil {
		logging.Warn("Could not extract first frame of %s: %v", path, err)
		return nil
	}
	return img
}
