package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tgsearch-go/internal/index"
	"tgsearch-go/internal/model"
	"tgsearch-go/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// maxBindVars keeps IN clauses well below SQLite's bind-variable limit.
const maxBindVars = 500

// SQLiteStore implements the store contracts of the index, ocr and search
// packages on a single SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	clock index.Clock
}

var _ index.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens a SQLite database at path (":memory:" works) and
// wraps it in a store. clock may be nil, in which case wall time is used.
func NewSQLiteStore(path string, clock index.Clock) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStoreFromDB(db, path, clock), nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for the connection being configured (see OpenConnection).
func NewSQLiteStoreFromDB(db *sql.DB, path string, clock index.Clock) *SQLiteStore {
	if clock == nil {
		clock = index.RealClock{}
	}
	return &SQLiteStore{db: db, path: path, clock: clock}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tests and tools.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Foreign keys drive the media/recognition cascade deletes; SQLite
	// defaults them to OFF.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return db, nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// MigrateUp brings the schema to the latest version.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.Up(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BackupTo writes a consistent snapshot of the database to destPath.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}
	return nil
}

// Item operations

func (s *SQLiteStore) FindItemsByDirPaths(ctx context.Context, kind model.ItemKind, dirPaths []string) (map[string]*model.Item, error) {
	items := make(map[string]*model.Item)
	byID := make(map[int64]*model.Item)

	for _, chunk := range chunkStrings(dirPaths, maxBindVars) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, string(kind))
		for _, p := range chunk {
			args = append(args, p)
		}

		query := fmt.Sprintf(
			`SELECT id, kind, dir_path, message_id, date, text, post_id
			 FROM items WHERE kind = ? AND dir_path IN (%s)`,
			placeholders(len(chunk)))

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("finding items by directory path: %w", err)
		}
		for rows.Next() {
			item := &model.Item{}
			if err := rows.Scan(&item.ID, &item.Kind, &item.DirPath, &item.MessageID, &item.Date, &item.Text, &item.PostID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning item: %w", err)
			}
			items[item.DirPath] = item
			byID[item.ID] = item
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterating items: %w", err)
		}
		rows.Close()
	}

	if len(byID) == 0 {
		return items, nil
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	if err := s.loadMedia(ctx, ids, byID); err != nil {
		return nil, err
	}
	if kind == model.KindPost {
		if err := s.loadCommentCounts(ctx, ids, byID); err != nil {
			return nil, err
		}
	}

	return items, nil
}

func (s *SQLiteStore) loadMedia(ctx context.Context, ids []int64, byID map[int64]*model.Item) error {
	for _, chunk := range chunkInts(ids, maxBindVars) {
		query := fmt.Sprintf(
			`SELECT id, item_id, message_id, date, file_path, type
			 FROM media WHERE item_id IN (%s)`,
			placeholders(len(chunk)))

		rows, err := s.db.QueryContext(ctx, query, intArgs(chunk)...)
		if err != nil {
			return fmt.Errorf("loading media: %w", err)
		}
		for rows.Next() {
			media := &model.Media{}
			if err := rows.Scan(&media.ID, &media.ItemID, &media.MessageID, &media.Date, &media.FilePath, &media.Type); err != nil {
				rows.Close()
				return fmt.Errorf("scanning media: %w", err)
			}
			if item := byID[media.ItemID]; item != nil {
				item.Media = append(item.Media, media)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterating media: %w", err)
		}
		rows.Close()
	}
	return nil
}

func (s *SQLiteStore) loadCommentCounts(ctx context.Context, ids []int64, byID map[int64]*model.Item) error {
	for _, chunk := range chunkInts(ids, maxBindVars) {
		query := fmt.Sprintf(
			`SELECT post_id, COUNT(*) FROM items
			 WHERE post_id IN (%s) GROUP BY post_id`,
			placeholders(len(chunk)))

		rows, err := s.db.QueryContext(ctx, query, intArgs(chunk)...)
		if err != nil {
			return fmt.Errorf("loading comment counts: %w", err)
		}
		for rows.Next() {
			var postID, count int64
			if err := rows.Scan(&postID, &count); err != nil {
				rows.Close()
				return fmt.Errorf("scanning comment count: %w", err)
			}
			if item := byID[postID]; item != nil {
				item.CommentCount = count
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterating comment counts: %w", err)
		}
		rows.Close()
	}
	return nil
}

// Fingerprint operations

func (s *SQLiteStore) FingerprintsByPaths(ctx context.Context, paths []string) (map[string]*model.FileFingerprint, error) {
	fingerprints := make(map[string]*model.FileFingerprint)

	for _, chunk := range chunkStrings(paths, maxBindVars) {
		query := fmt.Sprintf(
			`SELECT id, path, size, last_write FROM fingerprints WHERE path IN (%s)`,
			placeholders(len(chunk)))

		args := make([]any, len(chunk))
		for i, p := range chunk {
			args[i] = p
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("loading fingerprints: %w", err)
		}
		for rows.Next() {
			fp := &model.FileFingerprint{}
			if err := rows.Scan(&fp.ID, &fp.Path, &fp.Size, &fp.LastWrite); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning fingerprint: %w", err)
			}
			fingerprints[fp.Path] = fp
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterating fingerprints: %w", err)
		}
		rows.Close()
	}

	return fingerprints, nil
}

// FlushDay writes one day's staged changes atomically. Insert IDs are set
// back on the models so comment chains keep working across the pass.
func (s *SQLiteStore) FlushDay(ctx context.Context, batch *index.DayBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range batch.NewItems {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO items (kind, dir_path, message_id, date, text) VALUES (?, ?, ?, ?, ?)`,
			item.Kind, item.DirPath, item.MessageID, item.Date, item.Text)
		if err != nil {
			return fmt.Errorf("inserting item %s: %w", item.DirPath, err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading item id: %w", err)
		}
		for _, media := range item.Media {
			media.ItemID = item.ID
			if err := insertMedia(ctx, tx, media); err != nil {
				return err
			}
		}
	}

	for _, item := range batch.UpdatedItems {
		_, err := tx.ExecContext(ctx,
			`UPDATE items SET message_id = ?, date = ?, text = ? WHERE id = ?`,
			item.MessageID, item.Date, item.Text, item.ID)
		if err != nil {
			return fmt.Errorf("updating item %s: %w", item.DirPath, err)
		}
	}

	for _, media := range batch.NewMedia {
		if err := insertMedia(ctx, tx, media); err != nil {
			return err
		}
	}

	for _, fp := range batch.InsertFingerprints {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO fingerprints (path, size, last_write) VALUES (?, ?, ?)`,
			fp.Path, fp.Size, fp.LastWrite)
		if err != nil {
			return fmt.Errorf("inserting fingerprint %s: %w", fp.Path, err)
		}
		if fp.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading fingerprint id: %w", err)
		}
	}

	for _, fp := range batch.UpdateFingerprints {
		_, err := tx.ExecContext(ctx,
			`UPDATE fingerprints SET size = ?, last_write = ? WHERE path = ?`,
			fp.Size, fp.LastWrite, fp.Path)
		if err != nil {
			return fmt.Errorf("updating fingerprint %s: %w", fp.Path, err)
		}
	}

	for _, att := range batch.Attachments {
		for _, comment := range att.Comments {
			if comment.ID == 0 {
				// Comment was never persisted (its metadata failed to
				// parse); threading it has nothing to point at.
				continue
			}
			_, err := tx.ExecContext(ctx,
				`UPDATE items SET post_id = ? WHERE id = ?`,
				att.Post.ID, comment.ID)
			if err != nil {
				return fmt.Errorf("attaching comment %d to post %d: %w", comment.ID, att.Post.ID, err)
			}
			comment.PostID = sql.NullInt64{Int64: att.Post.ID, Valid: true}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertMedia(ctx context.Context, tx *sql.Tx, media *model.Media) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO media (item_id, message_id, date, file_path, type) VALUES (?, ?, ?, ?, ?)`,
		media.ItemID, media.MessageID, media.Date, media.FilePath, media.Type)
	if err != nil {
		return fmt.Errorf("inserting media %s: %w", media.FilePath, err)
	}
	if media.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading media id: %w", err)
	}
	return nil
}

// Recognition operations

// UnrecognizedMediaAfter returns up to limit media rows with no recognition,
// with id greater than afterID, ordered by id. Keyset pagination keeps a
// media that stays unprocessed (a video yielding zero frames) from pinning
// the recognition pass in place.
func (s *SQLiteStore) UnrecognizedMediaAfter(ctx context.Context, afterID int64, limit int) ([]*model.Media, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.item_id, m.message_id, m.date, m.file_path, m.type
		 FROM media m
		 WHERE m.id > ? AND NOT EXISTS (SELECT 1 FROM recognitions r WHERE r.media_id = m.id)
		 ORDER BY m.id
		 LIMIT ?`,
		afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unrecognized media: %w", err)
	}
	defer rows.Close()

	var medias []*model.Media
	for rows.Next() {
		media := &model.Media{}
		if err := rows.Scan(&media.ID, &media.ItemID, &media.MessageID, &media.Date, &media.FilePath, &media.Type); err != nil {
			return nil, fmt.Errorf("scanning media: %w", err)
		}
		medias = append(medias, media)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating media: %w", err)
	}
	return medias, nil
}

// AddRecognitions inserts one chunk of recognition rows atomically.
func (s *SQLiteStore) AddRecognitions(ctx context.Context, recs []*model.Recognition) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO recognitions (media_id, text, confidence) VALUES (?, ?, ?)`,
			rec.MediaID, rec.Text, rec.Confidence)
		if err != nil {
			return fmt.Errorf("inserting recognition for media %d: %w", rec.MediaID, err)
		}
		if rec.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading recognition id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search operations

// SearchText returns items whose own text contains prompt, newest first.
// kind narrows to "post" or "comment"; empty means both.
func (s *SQLiteStore) SearchText(ctx context.Context, prompt, kind string, offset, limit int) ([]*model.Item, error) {
	query := `SELECT id, kind, dir_path, message_id, date, text, post_id
		 FROM items WHERE instr(lower(text), ?) > 0`
	args := []any{prompt}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.queryItems(ctx, query, args...)
}

// SearchRecognitions returns items owning a media whose recognition text
// contains prompt, one row per item, ranked by the item's best matching
// confidence with timestamp as the tie breaker.
func (s *SQLiteStore) SearchRecognitions(ctx context.Context, prompt, kind string, offset, limit int) ([]*model.Item, error) {
	query := `SELECT i.id, i.kind, i.dir_path, i.message_id, i.date, i.text, i.post_id
		 FROM items i
		 JOIN media m ON m.item_id = i.id
		 JOIN recognitions r ON r.media_id = m.id
		 WHERE instr(lower(r.text), ?) > 0`
	args := []any{prompt}
	if kind != "" {
		query += ` AND i.kind = ?`
		args = append(args, kind)
	}
	query += ` GROUP BY i.id ORDER BY MAX(r.confidence) DESC, i.date DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.queryItems(ctx, query, args...)
}

func (s *SQLiteStore) queryItems(ctx context.Context, query string, args ...any) ([]*model.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item := &model.Item{}
		if err := rows.Scan(&item.ID, &item.Kind, &item.DirPath, &item.MessageID, &item.Date, &item.Text, &item.PostID); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// Run bookkeeping

func (s *SQLiteStore) CreateRun(operation, parameters string) (*model.IndexRun, error) {
	run := &model.IndexRun{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  s.clock.Now().UTC(),
		Status:     "success",
	}

	res, err := s.db.Exec(
		`INSERT INTO index_runs (operation, parameters, started_at, status) VALUES (?, ?, ?, ?)`,
		run.Operation, run.Parameters, run.StartedAt, run.Status)
	if err != nil {
		return nil, fmt.Errorf("inserting index run: %w", err)
	}
	if run.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading run id: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE index_runs SET finished_at = ?, status = ? WHERE id = ?`,
		s.clock.Now().UTC(), status, id)
	if err != nil {
		return fmt.Errorf("finishing index run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(limit int) ([]*model.IndexRun, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM index_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing index runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.IndexRun
	for rows.Next() {
		run := &model.IndexRun{}
		if err := rows.Scan(&run.ID, &run.Operation, &run.Parameters, &run.StartedAt, &run.FinishedAt, &run.Status); err != nil {
			return nil, fmt.Errorf("scanning index run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating index runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) MaxRunID() (int64, error) {
	var maxID int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM index_runs`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("reading max run id: %w", err)
	}
	return maxID, nil
}

// helpers

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunkStrings(values []string, size int) [][]string {
	var chunks [][]string
	for len(values) > size {
		chunks = append(chunks, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		chunks = append(chunks, values)
	}
	return chunks
}

func chunkInts(values []int64, size int) [][]int64 {
	var chunks [][]int64
	for len(values) > size {
		chunks = append(chunks, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		chunks = append(chunks, values)
	}
	return chunks
}

func intArgs(values []int64) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
