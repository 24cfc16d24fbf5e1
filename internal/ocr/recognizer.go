package ocr

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

// DefaultChunkSize bounds how many media are tracked between commits during
// a bulk recognition pass. Live/streaming callers can set it to 1.
const DefaultChunkSize = 50

// DefaultWorkers bounds concurrent frame recognition within one media.
const DefaultWorkers = 4

// Store is the persistence contract the recognizer writes through.
type Store interface {
	// UnrecognizedMediaAfter pages through media with no recognition yet,
	// ordered by id, starting after afterID.
	UnrecognizedMediaAfter(ctx context.Context, afterID int64, limit int) ([]*model.Media, error)

	// AddRecognitions persists one chunk of recognition rows atomically.
	AddRecognitions(ctx context.Context, recs []*model.Recognition) error
}

// FrameExtractor produces representative still frames for a video payload.
// A nil/empty result means the payload is not a recognizable video (or the
// tool failed); the media is simply retried on a later run.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, media *model.Media) ([]string, error)
}

// Recognizer drives the OCR consensus pipeline over every unprocessed
// media, committing in fixed-size chunks so a crash loses at most one chunk
// of work.
type Recognizer struct {
	store     Store
	extractor FrameExtractor
	engines   []*lockedEngine
	logger    logging.Logger
	chunkSize int
	workers   int
}

// Option adjusts a Recognizer.
type Option func(*Recognizer)

// WithChunkSize sets how many media are processed per commit.
func WithChunkSize(n int) Option {
	return func(r *Recognizer) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithWorkers bounds the per-media frame worker pool.
func WithWorkers(n int) Option {
	return func(r *Recognizer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewRecognizer creates a recognizer over the given ordered engine list.
// The first engine is the primary; the rest only serve crop re-recognition.
func NewRecognizer(store Store, extractor FrameExtractor, engines []Engine, logger logging.Logger, opts ...Option) *Recognizer {
	r := &Recognizer{
		store:     store,
		extractor: extractor,
		engines:   newLockedEngines(engines),
		logger:    logger,
		chunkSize: DefaultChunkSize,
		workers:   DefaultWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every media that has no recognition rows yet and returns
// the number of media for which recognitions were written. Cancellation is
// honored between chunks; the last committed chunk stays durable.
func (r *Recognizer) Run(ctx context.Context) (int, error) {
	if len(r.engines) == 0 {
		return 0, fmt.Errorf("no OCR engines configured")
	}

	r.logger.Info("starting to recognize media")

	processed := 0
	lastID := int64(0)
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		chunk, err := r.store.UnrecognizedMediaAfter(ctx, lastID, r.chunkSize)
		if err != nil {
			return processed, fmt.Errorf("listing unrecognized media: %w", err)
		}
		if len(chunk) == 0 {
			break
		}

		var recognitions []*model.Recognition
		for _, media := range chunk {
			recs := r.recognizeMedia(ctx, media)
			if len(recs) > 0 {
				recognitions = append(recognitions, recs...)
				processed++
			}
			lastID = media.ID
		}

		if err := r.store.AddRecognitions(ctx, recognitions); err != nil {
			return processed, fmt.Errorf("persisting recognitions: %w", err)
		}
	}

	r.logger.Info("media recognized", "count", processed)
	return processed, nil
}

// recognizeMedia produces the recognition rows for one media. Failures are
// logged and yield no rows, which leaves the media unprocessed for the next
// run.
func (r *Recognizer) recognizeMedia(ctx context.Context, media *model.Media) []*model.Recognition {
	switch media.Type {
	case model.MediaPhoto:
		result, err := recognizePage(ctx, r.engines, media.FilePath, r.logger)
		if err != nil {
			r.logger.Error("failed to recognize photo", "media_id", media.ID, "path", media.FilePath, "error", err)
			return nil
		}
		return []*model.Recognition{{MediaID: media.ID, Text: result.Text, Confidence: result.Confidence}}

	case model.MediaDocument:
		return r.recognizeDocument(ctx, media)

	default:
		r.logger.Warn("media has unrecognizable type", "media_id", media.ID, "type", string(media.Type))
		return nil
	}
}

// recognizeDocument extracts frames from a video payload and recognizes
// them independently across the worker pool. Zero frames means the media is
// retried on a later run; this is deliberately different from the
// zero-accepted-words case, which terminates with an empty recognition.
func (r *Recognizer) recognizeDocument(ctx context.Context, media *model.Media) []*model.Recognition {
	frames, err := r.extractor.ExtractFrames(ctx, media)
	if err != nil {
		r.logger.Error("frame extraction failed", "media_id", media.ID, "path", media.FilePath, "error", err)
		return nil
	}
	if len(frames) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		recs []*model.Recognition
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, frame := range frames {
		frame := frame
		g.Go(func() error {
			defer os.Remove(frame)

			result, err := recognizePage(gctx, r.engines, frame, r.logger)
			if err != nil {
				r.logger.Error("failed to recognize frame", "media_id", media.ID, "frame", frame, "error", err)
				return nil // other frames still count
			}

			mu.Lock()
			recs = append(recs, &model.Recognition{MediaID: media.ID, Text: result.Text, Confidence: result.Confidence})
			mu.Unlock()
			return nil
		})
	}

	// Workers only return nil; Wait is for settling, not errors.
	_ = g.Wait()

	return recs
}
