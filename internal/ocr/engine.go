package ocr

import (
	"context"
	"image"
	"sync"
)

// Word is one recognized word with its confidence (0..1 scale) and its
// bounding box on the source image.
type Word struct {
	Text       string
	Confidence float64
	Bounds     image.Rectangle
}

// Engine recognizes text in an image file. One engine is configured per
// language set; implementations are not required to be safe for concurrent
// use — callers serialize access.
type Engine interface {
	// Language identifies the engine's language set, for logging.
	Language() string

	// RecognizeWords runs page recognition and returns every detected word
	// with confidence and bounding box.
	RecognizeWords(ctx context.Context, imagePath string) ([]Word, error)

	// RecognizeWord runs single-word recognition against an image crop.
	// The bounding box of the result is not meaningful.
	RecognizeWord(ctx context.Context, imagePath string) (Word, error)
}

// lockedEngine serializes access to a non-reentrant engine so page and crop
// calls from concurrent frame workers never overlap on one instance.
type lockedEngine struct {
	mu  sync.Mutex
	eng Engine
}

func newLockedEngines(engines []Engine) []*lockedEngine {
	locked := make([]*lockedEngine, len(engines))
	for i, e := range engines {
		locked[i] = &lockedEngine{eng: e}
	}
	return locked
}

func (l *lockedEngine) language() string { return l.eng.Language() }

func (l *lockedEngine) recognizeWords(ctx context.Context, imagePath string) ([]Word, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eng.RecognizeWords(ctx, imagePath)
}

func (l *lockedEngine) recognizeWord(ctx context.Context, imagePath string) (Word, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eng.RecognizeWord(ctx, imagePath)
}
