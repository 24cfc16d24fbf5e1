// Package search answers ranked queries over indexed message text and OCR
// recognitions.
package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

// MinPromptLength is the minimum prompt length in runes. Shorter prompts
// return no results instead of scanning the whole index.
const MinPromptLength = 3

// DefaultPageSize is used when a query does not set Count.
const DefaultPageSize = 20

// Mode selects which indexed text a query runs against.
type Mode string

const (
	// ModeText searches message text.
	ModeText Mode = "text"
	// ModeRecognition searches OCR output, ranked by confidence.
	ModeRecognition Mode = "recognition"
)

// Scope limits a query to posts, comments, or both.
type Scope string

const (
	ScopePost    Scope = "post"
	ScopeComment Scope = "comment"
	ScopeBoth    Scope = "both"
)

// Query is one search request.
type Query struct {
	Prompt string
	Offset int
	Count  int
	Mode   Mode
	Scope  Scope
}

// Store is the persistence contract the search service reads through.
type Store interface {
	// SearchText finds items whose message text contains the prompt,
	// newest first. kind is "post", "comment" or "" for both.
	SearchText(ctx context.Context, prompt, kind string, offset, limit int) ([]*model.Item, error)

	// SearchRecognitions finds items whose media recognitions contain the
	// prompt, ordered by best recognition confidence.
	SearchRecognitions(ctx context.Context, prompt, kind string, offset, limit int) ([]*model.Item, error)
}

// Service runs search queries.
type Service struct {
	store  Store
	logger logging.Logger
}

func NewService(store Store, logger logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Search normalizes the query and runs it. Prompts are lowercased to match
// the store's case-insensitive lookup; prompts shorter than MinPromptLength
// return an empty result.
func (s *Service) Search(ctx context.Context, q Query) ([]*model.Item, error) {
	prompt := strings.ToLower(strings.TrimSpace(q.Prompt))
	if utf8.RuneCountInString(prompt) < MinPromptLength {
		s.logger.Debug("prompt too short, skipping search", "prompt", prompt)
		return nil, nil
	}

	count := q.Count
	if count <= 0 {
		count = DefaultPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	kind := ""
	switch q.Scope {
	case ScopePost:
		kind = string(model.KindPost)
	case ScopeComment:
		kind = string(model.KindComment)
	}

	if q.Mode == ModeRecognition {
		return s.store.SearchRecognitions(ctx, prompt, kind, offset, count)
	}
	return s.store.SearchText(ctx, prompt, kind, offset, count)
}
