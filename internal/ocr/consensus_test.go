package ocr

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"tgsearch-go/internal/logging"
)

// scriptedEngine serves fixed page words and a fixed crop word.
type scriptedEngine struct {
	lang     string
	words    map[string][]Word
	cropWord Word
	cropErr  error

	pageCalls int
	cropCalls int
}

func (e *scriptedEngine) Language() string { return e.lang }

func (e *scriptedEngine) RecognizeWords(ctx context.Context, imagePath string) ([]Word, error) {
	e.pageCalls++
	words, ok := e.words[imagePath]
	if !ok {
		return nil, fmt.Errorf("no scripted words for %s", imagePath)
	}
	return words, nil
}

func (e *scriptedEngine) RecognizeWord(ctx context.Context, imagePath string) (Word, error) {
	e.cropCalls++
	if e.cropErr != nil {
		return Word{}, e.cropErr
	}
	return e.cropWord, nil
}

// writeTestImage writes a 32x32 PNG so cropping has real pixels to work on.
func writeTestImage(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.White)
		}
	}

	path := filepath.Join(t.TempDir(), "page.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return path
}

func lockedFrom(engines ...Engine) []*lockedEngine {
	return newLockedEngines(engines)
}

func TestRecognizePage(t *testing.T) {
	t.Parallel()

	t.Run("joins confident words", func(t *testing.T) {
		t.Parallel()
		path := writeTestImage(t)
		primary := &scriptedEngine{lang: "eng", words: map[string][]Word{
			path: {
				{Text: "Hello", Confidence: 0.75},
				{Text: "World", Confidence: 0.25},
			},
		}}

		result, err := recognizePage(context.Background(), lockedFrom(primary), path, logging.NewNopLogger())
		if err != nil {
			t.Fatalf("recognizePage() error = %v", err)
		}
		if result.Text != "hello world" {
			t.Errorf("Text = %q, want %q", result.Text, "hello world")
		}
		if want := 0.5; result.Confidence != want {
			t.Errorf("Confidence = %v, want %v", result.Confidence, want)
		}
	})

	t.Run("single engine never crops", func(t *testing.T) {
		t.Parallel()
		path := writeTestImage(t)
		primary := &scriptedEngine{lang: "eng", words: map[string][]Word{
			path: {{Text: "blurry", Confidence: 0.1, Bounds: image.Rect(0, 0, 8, 8)}},
		}}

		result, err := recognizePage(context.Background(), lockedFrom(primary), path, logging.NewNopLogger())
		if err != nil {
			t.Fatalf("recognizePage() error = %v", err)
		}
		if result.Text != "blurry" {
			t.Errorf("Text = %q, want %q", result.Text, "blurry")
		}
	})

	t.Run("crop replaces word only on strictly higher confidence", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			cropWord Word
			wantText string
		}{
			{name: "higher wins", cropWord: Word{Text: "sharp", Confidence: 0.8}, wantText: "sharp"},
			{name: "equal keeps primary", cropWord: Word{Text: "sharp", Confidence: 0.5}, wantText: "fuzzy"},
			{name: "lower keeps primary", cropWord: Word{Text: "sharp", Confidence: 0.2}, wantText: "fuzzy"},
			{name: "empty crop keeps primary", cropWord: Word{Text: "  ", Confidence: 0.99}, wantText: "fuzzy"},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				path := writeTestImage(t)
				primary := &scriptedEngine{lang: "eng", words: map[string][]Word{
					path: {{Text: "fuzzy", Confidence: 0.5, Bounds: image.Rect(0, 0, 16, 16)}},
				}}
				secondary := &scriptedEngine{lang: "deu", cropWord: tt.cropWord}

				result, err := recognizePage(context.Background(), lockedFrom(primary, secondary), path, logging.NewNopLogger())
				if err != nil {
					t.Fatalf("recognizePage() error = %v", err)
				}
				if result.Text != tt.wantText {
					t.Errorf("Text = %q, want %q", result.Text, tt.wantText)
				}
				if secondary.cropCalls != 1 {
					t.Errorf("cropCalls = %d, want 1", secondary.cropCalls)
				}
			})
		}
	})

	t.Run("crop failure leaves primary word standing", func(t *testing.T) {
		t.Parallel()
		path := writeTestImage(t)
		primary := &scriptedEngine{lang: "eng", words: map[string][]Word{
			path: {{Text: "fuzzy", Confidence: 0.5, Bounds: image.Rect(0, 0, 16, 16)}},
		}}
		secondary := &scriptedEngine{lang: "deu", cropErr: fmt.Errorf("engine crashed")}

		result, err := recognizePage(context.Background(), lockedFrom(primary, secondary), path, logging.NewNopLogger())
		if err != nil {
			t.Fatalf("recognizePage() error = %v", err)
		}
		if result.Text != "fuzzy" {
			t.Errorf("Text = %q, want %q", result.Text, "fuzzy")
		}
	})

	t.Run("confident word skips crop", func(t *testing.T) {
		t.Parallel()
		path := writeTestImage(t)
		primary := &scriptedEngine{lang: "eng", words: map[string][]Word{
			path: {{Text: "clear", Confidence: 0.95}},
		}}
		secondary := &scriptedEngine{lang: "deu", cropWord: Word{Text: "noise", Confidence: 0.99}}

		result, err := recognizePage(context.Background(), lockedFrom(primary, secondary), path, logging.NewNopLogger())
		if err != nil {
			t.Fatalf("recognizePage() error = %v", err)
		}
		if result.Text != "clear" {
			t.Errorf("Text = %q, want %q", result.Text, "clear")
		}
		if secondary.cropCalls != 0 {
			t.Errorf("cropCalls = %d, want 0", secondary.cropCalls)
		}
	})

	t.Run("zero accepted words is a terminal empty result", func(t *testing.T) {
		t.Parallel()
		path := writeTestImage(t)
		primary := &scriptedEngine{lang: "eng", words: map[string][]Word{
			path: {{Text: "   ", Confidence: 0.9}, {Text: "", Confidence: 0.9}},
		}}

		result, err := recognizePage(context.Background(), lockedFrom(primary), path, logging.NewNopLogger())
		if err != nil {
			t.Fatalf("recognizePage() error = %v", err)
		}
		if result.Text != "" {
			t.Errorf("Text = %q, want empty", result.Text)
		}
		if result.Confidence != 1 {
			t.Errorf("Confidence = %v, want 1 (imageless media must count as processed)", result.Confidence)
		}
	})

	t.Run("page recognition failure propagates", func(t *testing.T) {
		t.Parallel()
		primary := &scriptedEngine{lang: "eng", words: map[string][]Word{}}

		if _, err := recognizePage(context.Background(), lockedFrom(primary), "/missing.png", logging.NewNopLogger()); err == nil {
			t.Error("recognizePage() error = nil, want error")
		}
	})
}

func TestCropToTemp(t *testing.T) {
	t.Parallel()

	t.Run("writes the cropped region", func(t *testing.T) {
		t.Parallel()
		path := writeTestImage(t)

		cropPath, err := cropToTemp(path, image.Rect(4, 4, 12, 12))
		if err != nil {
			t.Fatalf("cropToTemp() error = %v", err)
		}
		defer os.Remove(cropPath)

		f, err := os.Open(cropPath)
		if err != nil {
			t.Fatalf("opening crop: %v", err)
		}
		defer f.Close()

		img, err := png.Decode(f)
		if err != nil {
			t.Fatalf("decoding crop: %v", err)
		}
		if got := img.Bounds().Dx(); got != 8 {
			t.Errorf("crop width = %d, want 8", got)
		}
	})

	t.Run("bounds outside the image", func(t *testing.T) {
		t.Parallel()
		path := writeTestImage(t)

		if _, err := cropToTemp(path, image.Rect(100, 100, 120, 120)); err == nil {
			t.Error("cropToTemp() error = nil, want error")
		}
	})
}
