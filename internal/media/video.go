package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os/exec"
	"strconv"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// FrameExtractor returns the first frame of a video file.
type FrameExtractor interface {
	ExtractFirstFrame(ctx context.Context, path string) (image.Image, error)
}

// FFmpegExtractor extracts frames with the ffmpeg and ffprobe binaries.
type FFmpegExtractor struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegExtractor returns an extractor using the given binaries, or the
// ones on PATH when empty.
func NewFFmpegExtractor(ffmpegPath, ffprobePath string) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegExtractor{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration in seconds.
func (f *FFmpegExtractor) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if out.Format.Duration == "" {
		return 0, nil
	}
	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", out.Format.Duration, err)
	}
	return d, nil
}

// ExtractFirstFrame returns a frame one second in, or the very first frame
// for clips shorter than that.
func (f *FFmpegExtractor) ExtractFirstFrame(ctx context.Context, path string) (img image.Image, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.VideoFrameExtractionsTotal.WithLabelValues(status).Inc()
	}()

	if _, err := exec.LookPath(f.FFmpegPath); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found: %v", ErrFrameExtraction, err)
	}

	duration, err := f.Duration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameExtraction, err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: zero-duration clip %s", ErrFrameExtraction, path)
	}

	logging.Debug("Extracting video frame: %s (%.1fs)", path, duration)

	var args []string
	if duration > 1 {
		args = append(args, "-ss", "00:00:01")
	}
	args = append(args,
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	cmd := exec.CommandContext(ctx, f.FFmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg failed: %v, stderr: %s", ErrFrameExtraction, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no output for %s", ErrFrameExtraction, path)
	}

	img, _, err = image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode ffmpeg output: %v", ErrFrameExtraction, err)
	}
	return img, nil
}
