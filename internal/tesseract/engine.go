// Package tesseract implements the ocr.Engine contract by shelling out to
// the tesseract CLI in TSV output mode. One engine instance is created per
// configured language; instances are not safe for concurrent use.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"

	"tgsearch-go/internal/ocr"
)

const defaultBinary = "tesseract"

// Engine runs the tesseract binary for a single language.
type Engine struct {
	binary      string
	tessdataDir string
	language    string
}

var _ ocr.Engine = (*Engine)(nil)

// New creates an engine for the given language. binary and tessdataDir may
// be empty to use the system defaults.
func New(binary, tessdataDir, language string) *Engine {
	if binary == "" {
		binary = defaultBinary
	}
	return &Engine{binary: binary, tessdataDir: tessdataDir, language: language}
}

func (e *Engine) Language() string { return e.language }

// RecognizeWords runs full-page segmentation and returns the word rows of
// the TSV output.
func (e *Engine) RecognizeWords(ctx context.Context, imagePath string) ([]ocr.Word, error) {
	out, err := e.run(ctx, imagePath, "3")
	if err != nil {
		return nil, err
	}
	return parseTSV(out)
}

// RecognizeWord runs single-word segmentation against a crop. Multiple TSV
// word rows are joined; the confidence is their mean.
func (e *Engine) RecognizeWord(ctx context.Context, imagePath string) (ocr.Word, error) {
	out, err := e.run(ctx, imagePath, "8")
	if err != nil {
		return ocr.Word{}, err
	}

	words, err := parseTSV(out)
	if err != nil {
		return ocr.Word{}, err
	}
	if len(words) == 0 {
		return ocr.Word{}, nil
	}

	texts := make([]string, len(words))
	sum := 0.0
	for i, w := range words {
		texts[i] = w.Text
		sum += w.Confidence
	}
	return ocr.Word{
		Text:       strings.Join(texts, " "),
		Confidence: sum / float64(len(words)),
	}, nil
}

func (e *Engine) run(ctx context.Context, imagePath, psm string) (string, error) {
	args := []string{imagePath, "stdout", "-l", e.language, "--psm", psm, "tsv"}
	if e.tessdataDir != "" {
		args = append(args, "--tessdata-dir", e.tessdataDir)
	}

	cmd := exec.CommandContext(ctx, e.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running %s on %s: %w (%s)", e.binary, imagePath, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// tsvWordLevel marks word rows in tesseract's TSV output.
const tsvWordLevel = "5"

// parseTSV extracts word rows from tesseract TSV output. Column layout:
// level page_num block_num par_num line_num word_num left top width height
// conf text. Confidence is rescaled from 0..100 to 0..1.
func parseTSV(out string) ([]ocr.Word, error) {
	var words []ocr.Word

	for i, line := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header or trailing blank
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 12 {
			continue
		}
		if fields[0] != tsvWordLevel {
			continue
		}

		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing confidence %q: %w", fields[10], err)
		}
		if conf < 0 {
			continue // non-text row
		}

		left, err := strconv.Atoi(fields[6])
		if err != nil {
			return nil, fmt.Errorf("parsing bounding box: %w", err)
		}
		top, err := strconv.Atoi(fields[7])
		if err != nil {
			return nil, fmt.Errorf("parsing bounding box: %w", err)
		}
		width, err := strconv.Atoi(fields[8])
		if err != nil {
			return nil, fmt.Errorf("parsing bounding box: %w", err)
		}
		height, err := strconv.Atoi(fields[9])
		if err != nil {
			return nil, fmt.Errorf("parsing bounding box: %w", err)
		}

		text := strings.TrimSpace(fields[11])
		if text == "" {
			continue
		}

		words = append(words, ocr.Word{
			Text:       text,
			Confidence: conf / 100,
			Bounds:     image.Rect(left, top, left+width, top+height),
		})
	}

	return words, nil
}
