// Package video extracts still frames from video payloads with ffmpeg so
// they can go through the same recognition pipeline as photos.
package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

// FrameCount is how many evenly spaced frames are sampled per video.
const FrameCount = 10

// Extractor shells out to ffprobe/ffmpeg. Non-video payloads and tool
// failures yield an empty frame list, never an error, so the caller can
// retry the media on a later run.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	logger      logging.Logger
}

// NewExtractor creates an extractor. Empty paths fall back to the binaries
// on PATH.
func NewExtractor(ffmpegPath, ffprobePath string, logger logging.Logger) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Extractor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// ExtractFrames samples FrameCount stills from the media's payload, written
// as temporary PNG files. The caller owns and removes the returned files.
func (e *Extractor) ExtractFrames(ctx context.Context, media *model.Media) ([]string, error) {
	if media.Type != model.MediaDocument {
		e.logger.Warn("media is not a document, skipping frame extraction", "media_id", media.ID, "type", string(media.Type))
		return nil, nil
	}

	if _, err := os.Stat(media.FilePath); err != nil {
		e.logger.Warn("media payload is missing", "media_id", media.ID, "path", media.FilePath)
		return nil, nil
	}

	isVideo, err := e.isVideo(ctx, media.FilePath)
	if err != nil {
		e.logger.Warn("failed to probe media", "media_id", media.ID, "path", media.FilePath, "error", err)
		return nil, nil
	}
	if !isVideo {
		e.logger.Debug("payload has no video stream", "media_id", media.ID, "path", media.FilePath)
		return nil, nil
	}

	duration, err := e.duration(ctx, media.FilePath)
	if err != nil {
		e.logger.Warn("failed to read media duration", "media_id", media.ID, "path", media.FilePath, "error", err)
		return nil, nil
	}

	tempDir, err := os.MkdirTemp("", "tgsearch-frames-")
	if err != nil {
		return nil, fmt.Errorf("creating frame directory: %w", err)
	}

	var frames []string
	step := duration / float64(FrameCount+1)
	for i := 1; i <= FrameCount; i++ {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		framePath := filepath.Join(tempDir, fmt.Sprintf("frame-%02d.png", i))
		timestamp := strconv.FormatFloat(step*float64(i), 'f', 3, 64)

		cmd := exec.CommandContext(ctx, e.ffmpegPath,
			"-hide_banner", "-loglevel", "error", "-y",
			"-ss", timestamp, "-i", media.FilePath,
			"-frames:v", "1", framePath)
		if out, err := cmd.CombinedOutput(); err != nil {
			e.logger.Warn("frame extraction failed", "media_id", media.ID, "timestamp", timestamp,
				"error", err, "output", strings.TrimSpace(string(out)))
			continue
		}
		frames = append(frames, framePath)
	}

	return frames, nil
}

func (e *Extractor) isVideo(ctx context.Context, path string) (bool, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error", "-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1", path)
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("probing streams: %w", err)
	}
	return hasVideoStream(string(out)), nil
}

func (e *Extractor) duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("probing duration: %w", err)
	}
	return parseDuration(string(out))
}

// hasVideoStream scans ffprobe stream output for a video codec line.
func hasVideoStream(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "codec_type=video" {
			return true
		}
	}
	return false
}

// parseDuration parses ffprobe's duration output in seconds.
func parseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", d)
	}
	return d, nil
}
