package model

import (
	"database/sql"
	"time"
)

// ItemKind distinguishes the two item variants stored in the items table.
type ItemKind string

const (
	KindPost    ItemKind = "post"
	KindComment ItemKind = "comment"
)

// MediaType describes the payload attached to an item.
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaDocument MediaType = "document"
)

// Item is one message unit from the backup: either a channel post or a
// discussion-group comment. Exactly one item exists per item directory;
// DirPath is globally unique.
type Item struct {
	ID        int64
	Kind      ItemKind
	DirPath   string
	MessageID int64     // source message id; minimum across the item's metadata files
	Date      time.Time // minimum across the item's metadata files
	Text      string
	PostID    sql.NullInt64 // owning post, set on comments that were threaded
	Media     []*Media

	// CommentCount is populated on posts when loaded from the store.
	// It is derived, not a column.
	CommentCount int64
}

// IsAlbum reports whether the item groups more than one media payload.
func (i *Item) IsAlbum() bool { return len(i.Media) > 1 }

// Media is one image or video payload owned by exactly one item.
// Rows are created only when a metadata media descriptor resolves to a
// payload file on disk.
type Media struct {
	ID        int64
	ItemID    int64
	MessageID int64
	Date      time.Time
	FilePath  string
	Type      MediaType
}

// Recognition is one OCR result for a media payload. Confidence is on a
// 0..1 scale. Recognitions are append-only; a media with zero recognitions
// has not been processed by OCR yet.
type Recognition struct {
	ID         int64
	MediaID    int64
	Text       string
	Confidence float64
}

// FileFingerprint caches (size, last-write time) per metadata file so an
// unchanged file is never reparsed. Rows are inserted on first sighting and
// updated in place when the file changes.
type FileFingerprint struct {
	ID        int64
	Path      string
	Size      int64
	LastWrite time.Time
}

// Equal reports whether two fingerprints describe the same file state.
func (f *FileFingerprint) Equal(other *FileFingerprint) bool {
	return f.Path == other.Path && f.Size == other.Size && f.LastWrite.Equal(other.LastWrite)
}

// IndexRun records one pipeline invocation (ingest or recognize) for the
// history command and for archive versioning.
type IndexRun struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "success" or "error"
}
