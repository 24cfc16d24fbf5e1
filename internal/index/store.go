package index

import (
	"context"

	"tgsearch-go/internal/model"
)

// Store is the persistence contract the ingestion engine writes through.
// Implementations must make FlushDay atomic: a day directory is the unit of
// durability and of retry after a crash.
type Store interface {
	// FindItemsByDirPaths returns existing items of the given kind keyed by
	// directory path. Media are loaded; posts carry their comment count.
	FindItemsByDirPaths(ctx context.Context, kind model.ItemKind, dirPaths []string) (map[string]*model.Item, error)

	// FingerprintsByPaths returns cached metadata-file fingerprints keyed by path.
	FingerprintsByPaths(ctx context.Context, paths []string) (map[string]*model.FileFingerprint, error)

	// FlushDay writes one day directory's staged changes in a single
	// transaction. IDs of inserted items and media are set on the models.
	FlushDay(ctx context.Context, batch *DayBatch) error
}

// DayBatch accumulates the staged writes for one day directory.
type DayBatch struct {
	NewItems           []*model.Item // inserted together with their Media
	UpdatedItems       []*model.Item // core fields rewritten
	NewMedia           []*model.Media
	InsertFingerprints []*model.FileFingerprint
	UpdateFingerprints []*model.FileFingerprint
	Attachments        []*Attachment
}

// Empty reports whether the batch stages no writes at all.
func (b *DayBatch) Empty() bool {
	return len(b.NewItems) == 0 && len(b.UpdatedItems) == 0 && len(b.NewMedia) == 0 &&
		len(b.InsertFingerprints) == 0 && len(b.UpdateFingerprints) == 0 && len(b.Attachments) == 0
}

// Attachment links every comment of a resolved chain to its post.
type Attachment struct {
	Post     *model.Item
	Comments []*model.Item
}
