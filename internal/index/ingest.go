package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

const metadataPattern = "metadata*.json"

// Ingester walks a backup directory tree (day directories containing item
// directories) and merges its metadata into the store, one day per
// transaction. The fingerprint cache keeps reruns over unchanged trees from
// touching the database at all.
type Ingester struct {
	store  Store
	logger logging.Logger

	daysParsed  int
	cacheWrites int
}

// IngestStats summarizes one ingestion pass.
type IngestStats struct {
	DaysParsed  int
	CacheWrites int
}

func NewIngester(store Store, logger logging.Logger) *Ingester {
	return &Ingester{store: store, logger: logger}
}

// Run ingests the channel directory and, when set, the discussion-group
// directory. Comments are parsed first so their reply chains exist by the
// time posts attach to them. A missing root directory is fatal; everything
// below that level logs and skips.
func (ing *Ingester) Run(ctx context.Context, channelDir, discussionDir string) (IngestStats, error) {
	if err := checkRoot(channelDir); err != nil {
		return IngestStats{}, fmt.Errorf("channel directory: %w", err)
	}
	if discussionDir != "" {
		if err := checkRoot(discussionDir); err != nil {
			return IngestStats{}, fmt.Errorf("discussion group directory: %w", err)
		}
	}

	ing.daysParsed = 0
	ing.cacheWrites = 0
	ing.logger.Info("starting to parse metadata")

	chains := NewChainSet()

	if discussionDir != "" {
		if err := ing.parseTree(ctx, discussionDir, model.KindComment, NewCommentParser(ing.logger, chains)); err != nil {
			return ing.stats(), err
		}
	}

	if err := ing.parseTree(ctx, channelDir, model.KindPost, NewPostParser(ing.logger, chains)); err != nil {
		return ing.stats(), err
	}

	ing.logger.Info("successfully parsed metadata", "days_parsed", ing.daysParsed, "cache_writes", ing.cacheWrites)
	return ing.stats(), nil
}

func (ing *Ingester) stats() IngestStats {
	return IngestStats{DaysParsed: ing.daysParsed, CacheWrites: ing.cacheWrites}
}

func checkRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (ing *Ingester) parseTree(ctx context.Context, root string, kind model.ItemKind, parser ItemParser) error {
	dayDirs, err := subdirectories(root)
	if err != nil {
		return fmt.Errorf("enumerating day directories: %w", err)
	}

	for _, dayDir := range dayDirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ing.parseDay(ctx, dayDir, kind, parser); err != nil {
			return err
		}
	}
	return nil
}

// parseDay processes one day directory as an atomic unit: everything staged
// while walking its item directories is flushed in a single transaction and
// in-memory tracking is dropped afterwards.
func (ing *Ingester) parseDay(ctx context.Context, dayDir string, kind model.ItemKind, parser ItemParser) error {
	ing.logger.Debug("starting to parse day", "name", filepath.Base(dayDir))

	itemDirs, err := subdirectories(dayDir)
	if err != nil {
		return fmt.Errorf("enumerating item directories: %w", err)
	}

	items, err := ing.store.FindItemsByDirPaths(ctx, kind, itemDirs)
	if err != nil {
		return fmt.Errorf("loading items for day %s: %w", filepath.Base(dayDir), err)
	}

	batch := &DayBatch{}
	for _, itemDir := range itemDirs {
		ing.parseItemDir(ctx, itemDir, kind, items[itemDir], parser, batch)
	}
	batch.Attachments = parser.DrainAttachments()

	if !batch.Empty() {
		if err := ing.store.FlushDay(ctx, batch); err != nil {
			return fmt.Errorf("flushing day %s: %w", filepath.Base(dayDir), err)
		}
	}

	ing.daysParsed++
	ing.logger.Debug("successfully parsed day", "name", filepath.Base(dayDir))
	return nil
}

// parseItemDir merges one item directory's metadata files into its item.
// All failures below the day level are logged and skipped so the pass keeps
// making forward progress.
func (ing *Ingester) parseItemDir(ctx context.Context, itemDir string, kind model.ItemKind, existing *model.Item, parser ItemParser, batch *DayBatch) {
	ing.logger.Debug("starting to parse item", "name", filepath.Base(itemDir))

	metadatas, payloads, err := classifyFiles(itemDir)
	if err != nil {
		ing.logger.Error("failed to enumerate item directory, skipping", "dir", itemDir, "error", err)
		return
	}
	if len(metadatas) == 0 {
		ing.logger.Error("directory does not contain any metadata files", "dir", itemDir)
		return
	}

	item := existing
	isNew := item == nil
	if isNew {
		item = &model.Item{Kind: kind, DirPath: itemDir}
	}

	cached, err := ing.store.FingerprintsByPaths(ctx, metadatas)
	if err != nil {
		ing.logger.Error("failed to load fingerprint cache, skipping item", "dir", itemDir, "error", err)
		return
	}

	parsed := 0
	for _, metadata := range metadatas {
		fresh, err := buildFingerprint(metadata)
		if err != nil {
			ing.logger.Error("failed to build fingerprint for metadata, skipping", "path", metadata, "error", err)
			continue
		}

		prior, seen := cached[metadata]
		if seen && prior.Equal(fresh) {
			continue // already ingested
		}

		meta, err := ing.parseMetadataFile(metadata)
		if err != nil {
			ing.logger.Error("failed to parse metadata, skipping", "path", metadata, "error", err)
			continue
		}

		ing.mergeMetadata(item, isNew, meta, metadata, payloads, batch)
		parser.ParseItem(item, meta)
		parsed++

		if seen {
			fresh.ID = prior.ID
			batch.UpdateFingerprints = append(batch.UpdateFingerprints, fresh)
			ing.logger.Warn("cache mismatch, updating cache", "path", metadata)
		} else {
			batch.InsertFingerprints = append(batch.InsertFingerprints, fresh)
		}
		ing.cacheWrites++
	}

	if parsed == 0 {
		return
	}
	if isNew {
		batch.NewItems = append(batch.NewItems, item)
	} else {
		batch.UpdatedItems = append(batch.UpdatedItems, item)
	}

	ing.logger.Debug("successfully parsed item", "name", filepath.Base(itemDir))
}

func (ing *Ingester) parseMetadataFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMetadata(data)
}

// mergeMetadata applies the monotonic merge rule: message id and date take
// the minimum across the item's metadata files (album groups share one item
// but span several messages), text takes the last non-empty value.
func (ing *Ingester) mergeMetadata(item *model.Item, isNew bool, meta *Metadata, metadataPath string, payloads map[int64]string, batch *DayBatch) {
	if item.MessageID == 0 || item.MessageID > meta.ID {
		item.MessageID = meta.ID
	}
	if item.Date.IsZero() || item.Date.After(meta.Date) {
		item.Date = meta.Date
	}
	if meta.Message != "" {
		item.Text = meta.Message
	}

	mediaType, filePath, ok := ing.resolveMedia(meta, metadataPath, payloads)
	if !ok {
		return
	}
	for _, m := range item.Media {
		if m.FilePath == filePath {
			return // reparse of a changed file must not duplicate media
		}
	}

	media := &model.Media{
		ItemID:    item.ID,
		MessageID: meta.ID,
		Date:      meta.Date,
		FilePath:  filePath,
		Type:      mediaType,
	}
	item.Media = append(item.Media, media)
	if !isNew {
		batch.NewMedia = append(batch.NewMedia, media)
	}
}

// resolveMedia maps a photo/document descriptor to a payload file on disk.
// An unresolvable reference loses only the media attachment; text and
// threading for the item still proceed.
func (ing *Ingester) resolveMedia(meta *Metadata, metadataPath string, payloads map[int64]string) (model.MediaType, string, bool) {
	desc := meta.Media
	if desc == nil {
		return "", "", false
	}

	var (
		mediaType model.MediaType
		fileID    int64
	)
	switch {
	case desc.Photo != nil:
		mediaType, fileID = model.MediaPhoto, desc.Photo.ID
	case desc.Document != nil:
		mediaType, fileID = model.MediaDocument, desc.Document.ID
	case desc.Ignored():
		return "", "", false
	default:
		ing.logger.Warn("media descriptor contains neither photo nor document", "path", metadataPath)
		return "", "", false
	}

	filePath, found := payloads[fileID]
	if !found {
		ing.logger.Error("metadata references a media file that does not exist", "path", metadataPath, "file_id", fileID)
		return "", "", false
	}
	return mediaType, filePath, true
}

// classifyFiles splits an item directory into metadata files and a map from
// numeric file id to payload path.
func classifyFiles(itemDir string) (metadatas []string, payloads map[int64]string, err error) {
	entries, err := os.ReadDir(itemDir)
	if err != nil {
		return nil, nil, err
	}

	payloads = make(map[int64]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		full := filepath.Join(itemDir, name)

		if ok, _ := filepath.Match(metadataPattern, name); ok {
			metadatas = append(metadatas, full)
			continue
		}

		base := strings.TrimSuffix(name, filepath.Ext(name))
		fileID, err := strconv.ParseInt(base, 10, 64)
		if err != nil {
			continue // payloads are named by numeric file id
		}
		payloads[fileID] = full
	}

	sort.Strings(metadatas)
	return metadatas, payloads, nil
}

func buildFingerprint(path string) (*model.FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &model.FileFingerprint{
		Path:      path,
		Size:      info.Size(),
		LastWrite: info.ModTime().UTC(),
	}, nil
}

func subdirectories(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(root, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
