package testutil

import (
	"context"
	"fmt"
	"sync"

	"tgsearch-go/internal/model"
	"tgsearch-go/internal/ocr"
)

// StubEngine is a scripted ocr.Engine. Page results come from Words, keyed
// by image path; crop results come from CropWord since crop files have
// generated names.
type StubEngine struct {
	Lang     string
	Words    map[string][]ocr.Word
	CropWord ocr.Word
	CropErr  error

	mu        sync.Mutex
	PageCalls int
	CropCalls int
}

var _ ocr.Engine = (*StubEngine)(nil)

func (e *StubEngine) Language() string {
	if e.Lang == "" {
		return "eng"
	}
	return e.Lang
}

func (e *StubEngine) RecognizeWords(ctx context.Context, imagePath string) ([]ocr.Word, error) {
	e.mu.Lock()
	e.PageCalls++
	e.mu.Unlock()

	words, ok := e.Words[imagePath]
	if !ok {
		return nil, fmt.Errorf("no scripted words for %s", imagePath)
	}
	return words, nil
}

func (e *StubEngine) RecognizeWord(ctx context.Context, imagePath string) (ocr.Word, error) {
	e.mu.Lock()
	e.CropCalls++
	e.mu.Unlock()

	if e.CropErr != nil {
		return ocr.Word{}, e.CropErr
	}
	return e.CropWord, nil
}

// StubExtractor returns scripted frame lists per media id.
type StubExtractor struct {
	Frames map[int64][]string
	Err    error
}

var _ ocr.FrameExtractor = (*StubExtractor)(nil)

func (e *StubExtractor) ExtractFrames(ctx context.Context, media *model.Media) ([]string, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Frames[media.ID], nil
}
