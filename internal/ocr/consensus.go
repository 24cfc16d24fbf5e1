package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"tgsearch-go/internal/logging"

	// Registered for decoding only; crops are always written as PNG.
	_ "image/gif"
	_ "image/jpeg"
)

// ConfidenceThreshold is the per-word confidence below which the primary
// engine's result is challenged by a crop re-run on the secondary engines.
const ConfidenceThreshold = 0.75

// PageResult is the consensus over one whole image.
type PageResult struct {
	Text       string
	Confidence float64
}

// recognizePage runs the primary engine in word-iteration mode and escalates
// every low-confidence word to the secondary engines via a crop re-run. A
// crop result replaces the primary word only on strictly higher confidence.
//
// When zero words are accepted the result is empty text with full
// confidence: the media still counts as processed, which stops endless
// reattempts on imageless pictures.
func recognizePage(ctx context.Context, engines []*lockedEngine, imagePath string, logger logging.Logger) (PageResult, error) {
	if len(engines) == 0 {
		return PageResult{}, fmt.Errorf("no OCR engines configured")
	}

	primary, secondaries := engines[0], engines[1:]

	words, err := primary.recognizeWords(ctx, imagePath)
	if err != nil {
		return PageResult{}, fmt.Errorf("page recognition (%s): %w", primary.language(), err)
	}

	var accepted []Word
	for _, word := range words {
		word.Text = strings.TrimSpace(word.Text)
		if word.Text == "" {
			continue
		}

		if word.Confidence >= ConfidenceThreshold || len(secondaries) == 0 {
			accepted = append(accepted, word)
			continue
		}

		challenger, ok := recognizeCrop(ctx, secondaries, imagePath, word.Bounds, logger)
		if ok && challenger.Confidence > word.Confidence {
			accepted = append(accepted, challenger)
		} else {
			accepted = append(accepted, word)
		}
	}

	if len(accepted) == 0 {
		return PageResult{Text: "", Confidence: 1}, nil
	}

	texts := make([]string, len(accepted))
	sum := 0.0
	for i, w := range accepted {
		texts[i] = w.Text
		sum += w.Confidence
	}

	return PageResult{
		Text:       strings.ToLower(strings.Join(texts, " ")),
		Confidence: sum / float64(len(accepted)),
	}, nil
}

// recognizeCrop crops the image to the word's bounding box and asks every
// secondary engine for a single-word reading, keeping the most confident
// one. Failures here only mean the primary word stands.
func recognizeCrop(ctx context.Context, engines []*lockedEngine, imagePath string, bounds image.Rectangle, logger logging.Logger) (Word, bool) {
	cropPath, err := cropToTemp(imagePath, bounds)
	if err != nil {
		logger.Warn("failed to crop image for re-recognition", "path", imagePath, "error", err)
		return Word{}, false
	}
	defer os.Remove(cropPath)

	var (
		best  Word
		found bool
	)
	for _, engine := range engines {
		word, err := engine.recognizeWord(ctx, cropPath)
		if err != nil {
			logger.Warn("crop recognition failed", "language", engine.language(), "error", err)
			continue
		}
		word.Text = strings.TrimSpace(word.Text)
		if word.Text == "" {
			continue
		}
		if !found || word.Confidence > best.Confidence {
			best = word
			found = true
		}
	}
	return best, found
}

// cropToTemp writes the bounding-box region of the image to a temporary PNG
// and returns its path. The caller removes the file.
func cropToTemp(imagePath string, bounds image.Rectangle) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	bounds = bounds.Intersect(img.Bounds())
	if bounds.Empty() {
		return "", fmt.Errorf("bounding box %v is outside the image", bounds)
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	src, ok := img.(subImager)
	if !ok {
		return "", fmt.Errorf("image type %T does not support cropping", img)
	}

	out, err := os.CreateTemp("", "tgsearch-crop-*.png")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	if err := png.Encode(out, src.SubImage(bounds)); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("encoding crop: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("closing crop file: %w", err)
	}
	return out.Name(), nil
}
