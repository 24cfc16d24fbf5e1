package search

import (
	"context"
	"testing"

	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

// recordingStore captures the query the service actually runs.
type recordingStore struct {
	results []*model.Item

	calledText        bool
	calledRecognition bool
	gotPrompt         string
	gotKind           string
	gotOffset         int
	gotLimit          int
}

func (s *recordingStore) SearchText(ctx context.Context, prompt, kind string, offset, limit int) ([]*model.Item, error) {
	s.calledText = true
	s.gotPrompt, s.gotKind, s.gotOffset, s.gotLimit = prompt, kind, offset, limit
	return s.results, nil
}

func (s *recordingStore) SearchRecognitions(ctx context.Context, prompt, kind string, offset, limit int) ([]*model.Item, error) {
	s.calledRecognition = true
	s.gotPrompt, s.gotKind, s.gotOffset, s.gotLimit = prompt, kind, offset, limit
	return s.results, nil
}

func TestService_Search(t *testing.T) {
	t.Parallel()

	t.Run("normalizes the prompt", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		svc := NewService(store, logging.NewNopLogger())

		if _, err := svc.Search(context.Background(), Query{Prompt: "  HeLLo  "}); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if !store.calledText {
			t.Fatal("SearchText was not called")
		}
		if store.gotPrompt != "hello" {
			t.Errorf("prompt = %q, want %q", store.gotPrompt, "hello")
		}
	})

	t.Run("short prompts return nothing without a query", func(t *testing.T) {
		t.Parallel()

		for _, prompt := range []string{"", "a", "ab", "  ab  "} {
			store := &recordingStore{results: []*model.Item{{ID: 1}}}
			svc := NewService(store, logging.NewNopLogger())

			items, err := svc.Search(context.Background(), Query{Prompt: prompt})
			if err != nil {
				t.Fatalf("Search(%q) error = %v", prompt, err)
			}
			if items != nil {
				t.Errorf("Search(%q) = %v, want nil", prompt, items)
			}
			if store.calledText || store.calledRecognition {
				t.Errorf("Search(%q) hit the store", prompt)
			}
		}
	})

	t.Run("three runes are enough", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		svc := NewService(store, logging.NewNopLogger())

		// Three runes, more than three bytes.
		if _, err := svc.Search(context.Background(), Query{Prompt: "кот"}); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if !store.calledText {
			t.Error("SearchText was not called for a three-rune prompt")
		}
	})

	t.Run("recognition mode queries recognitions", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		svc := NewService(store, logging.NewNopLogger())

		if _, err := svc.Search(context.Background(), Query{Prompt: "sale", Mode: ModeRecognition}); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if !store.calledRecognition {
			t.Error("SearchRecognitions was not called")
		}
		if store.calledText {
			t.Error("SearchText was called in recognition mode")
		}
	})

	t.Run("scope maps to item kind", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			scope    Scope
			wantKind string
		}{
			{scope: ScopePost, wantKind: "post"},
			{scope: ScopeComment, wantKind: "comment"},
			{scope: ScopeBoth, wantKind: ""},
			{scope: "", wantKind: ""},
		}

		for _, tt := range tests {
			store := &recordingStore{}
			svc := NewService(store, logging.NewNopLogger())

			if _, err := svc.Search(context.Background(), Query{Prompt: "sale", Scope: tt.scope}); err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if store.gotKind != tt.wantKind {
				t.Errorf("scope %q: kind = %q, want %q", tt.scope, store.gotKind, tt.wantKind)
			}
		}
	})

	t.Run("pagination defaults", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		svc := NewService(store, logging.NewNopLogger())

		if _, err := svc.Search(context.Background(), Query{Prompt: "sale", Offset: -5}); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if store.gotOffset != 0 {
			t.Errorf("offset = %d, want 0", store.gotOffset)
		}
		if store.gotLimit != DefaultPageSize {
			t.Errorf("limit = %d, want %d", store.gotLimit, DefaultPageSize)
		}
	})

	t.Run("explicit pagination passes through", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		svc := NewService(store, logging.NewNopLogger())

		if _, err := svc.Search(context.Background(), Query{Prompt: "sale", Offset: 40, Count: 10}); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if store.gotOffset != 40 || store.gotLimit != 10 {
			t.Errorf("offset, limit = %d, %d, want 40, 10", store.gotOffset, store.gotLimit)
		}
	})
}
