// Package app is the application layer between the CLI and the index
// services. It constructs all dependencies from config and manages the
// store lifecycle on Close.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"tgsearch-go/internal/archive"
	"tgsearch-go/internal/config"
	"tgsearch-go/internal/encryption"
	"tgsearch-go/internal/index"
	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
	"tgsearch-go/internal/ocr"
	"tgsearch-go/internal/search"
	"tgsearch-go/internal/store"
	"tgsearch-go/internal/tesseract"
	"tgsearch-go/internal/video"
)

// App wires the store, archive, encryptor and channel metadata together and
// exposes one method per CLI command. The caller must call Close when done.
type App struct {
	cfg       *config.Config
	store     *store.SQLiteStore
	archive   archive.Archive
	encryptor encryption.Encryptor
	channel   *index.ChannelInfo
	logger    logging.Logger
	run       *RunRecord
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Ingest", "Search").
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	runID := uuid.New().String()
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := logging.NewSlogLogger(slogger)

	st, err := store.NewStoreFromConfig(cfg.Database, nil)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	// A local index behind the archived one would overwrite newer data on
	// the next upload.
	if arch != nil {
		remoteVersion, err := arch.Version(ctx, snapshotName(cfg))
		if err != nil {
			st.Close()
			logFile.Close()
			return nil, fmt.Errorf("checking archived snapshot version: %w", err)
		}

		localMax, err := st.MaxRunID()
		if err != nil {
			st.Close()
			logFile.Close()
			return nil, fmt.Errorf("checking local index version: %w", err)
		}

		if remoteVersion > localMax {
			st.Close()
			logFile.Close()
			return nil, fmt.Errorf("local index is behind the archive (local=%d, archived=%d): restore from the archive or re-initialize", localMax, remoteVersion)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	channel, err := index.NewChannelInfo(logger, cfg.ChannelDir, cfg.DiscussionGroupDir)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("reading channel info: %w", err)
	}

	return &App{
		cfg:       cfg,
		store:     st,
		archive:   arch,
		encryptor: enc,
		channel:   channel,
		logger:    logger,
		run:       NewRunRecord(operation, ""),
		logFile:   logFile,
	}, nil
}

// persistRun saves the run record, giving it an auto-increment id. Only
// mutating commands call this.
func (a *App) persistRun() error {
	if a.run.Persisted() {
		return nil
	}
	run, err := a.store.CreateRun(a.run.Operation, a.run.Parameters)
	if err != nil {
		return fmt.Errorf("persisting index run: %w", err)
	}
	a.run.ID = run.ID
	return nil
}

// MarkFailed records the run as failed; the record is finalized on Close.
func (a *App) MarkFailed() {
	a.run.Status = "error"
}

// Ingest walks the backup trees and updates the index with new and changed
// messages.
func (a *App) Ingest(ctx context.Context) (index.IngestStats, error) {
	if err := a.persistRun(); err != nil {
		return index.IngestStats{}, err
	}

	ing := index.NewIngester(a.store, a.logger)
	return ing.Run(ctx, a.cfg.ChannelDir, a.cfg.DiscussionGroupDir)
}

// Recognize runs OCR over every media that has no recognition rows yet and
// returns how many were processed.
func (a *App) Recognize(ctx context.Context) (int, error) {
	if err := a.persistRun(); err != nil {
		return 0, err
	}

	if len(a.cfg.OCR.Languages) == 0 {
		return 0, fmt.Errorf("no OCR languages configured")
	}

	engines := make([]ocr.Engine, len(a.cfg.OCR.Languages))
	for i, lang := range a.cfg.OCR.Languages {
		engines[i] = tesseract.New(a.cfg.OCR.TesseractPath, a.cfg.OCR.TessdataDir, lang)
	}

	extractor := video.NewExtractor("", "", a.logger)
	rec := ocr.NewRecognizer(a.store, extractor, engines, a.logger,
		ocr.WithChunkSize(a.cfg.OCR.ChunkSize),
		ocr.WithWorkers(a.cfg.OCR.Workers))
	return rec.Run(ctx)
}

// Search runs a ranked query over the index.
func (a *App) Search(ctx context.Context, q search.Query) ([]*model.Item, error) {
	svc := search.NewService(a.store, a.logger)
	return svc.Search(ctx, q)
}

// Link returns the public permalink for an item.
func (a *App) Link(item *model.Item) string {
	return a.channel.Link(item)
}

// History returns the most recent index runs.
func (a *App) History(limit int) ([]*model.IndexRun, error) {
	return a.store.ListRuns(limit)
}

// SetupEncryption generates and stores a new snapshot key pair.
func (a *App) SetupEncryption(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is not enabled in the config")
	}
	return a.encryptor.Setup(passphrase)
}

// Close finalizes the run and releases all resources. For persisted runs it
// finishes the run record, snapshots the index, and uploads the snapshot to
// the archive with version = run id.
func (a *App) Close(ctx context.Context) error {
	var firstErr error

	if a.run.Persisted() {
		if err := a.store.FinishRun(a.run.ID, a.run.Status); err != nil {
			firstErr = fmt.Errorf("finishing index run: %w", err)
		}

		var tmpPath string
		if a.archive != nil {
			tmpFile, err := os.CreateTemp("", "tgsearch-snapshot-*.db")
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("creating temp file for snapshot: %w", err)
				}
			} else {
				tmpPath = tmpFile.Name()
				tmpFile.Close()

				if err := a.store.BackupTo(tmpPath); err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("snapshotting index: %w", err)
					}
					tmpPath = ""
				}
			}
		}

		if err := a.store.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("closing store: %w", err)
			}
		}

		if tmpPath != "" {
			if err := a.uploadSnapshot(ctx, tmpPath, a.run.ID); err != nil && firstErr == nil {
				firstErr = err
			}
			os.Remove(tmpPath)
		}
	} else {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// uploadSnapshot pushes the snapshot file to the archive, encrypting it
// first when a key pair is configured.
func (a *App) uploadSnapshot(ctx context.Context, path string, version int64) error {
	uploadPath := path
	if a.encryptor != nil && a.encryptor.IsConfigured() {
		encPath, err := encryptToTemp(a.encryptor, path)
		if err != nil {
			return err
		}
		defer os.Remove(encPath)
		uploadPath = encPath
	}

	f, err := os.Open(uploadPath)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	if err := a.archive.Put(ctx, snapshotName(a.cfg), f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading snapshot to archive: %w", err)
	}
	return nil
}

func encryptToTemp(enc encryption.Encryptor, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening snapshot for encryption: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "tgsearch-snapshot-*.db.age")
	if err != nil {
		return "", fmt.Errorf("creating encrypted snapshot file: %w", err)
	}

	if err := enc.Encrypt(src, dst); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("closing encrypted snapshot: %w", err)
	}
	return dst.Name(), nil
}

func snapshotName(cfg *config.Config) string {
	if cfg.Archive.Name != "" {
		return cfg.Archive.Name
	}
	return store.IndexFileName
}

// RestoreArchive downloads the archived snapshot into the configured data
// directory, decrypting it when a key pair is configured. It refuses to
// overwrite an existing index.
func RestoreArchive(ctx context.Context, cfg *config.Config, passphrase string) (string, error) {
	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	if arch == nil {
		return "", fmt.Errorf("no archive configured")
	}

	destPath := filepath.Join(cfg.Database.DataDir, store.IndexFileName)
	if _, err := os.Stat(destPath); err == nil {
		return "", fmt.Errorf("index already exists at %s, remove it before restoring", destPath)
	}
	if err := os.MkdirAll(cfg.Database.DataDir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return "", fmt.Errorf("creating encryptor: %w", err)
	}

	tmpFile, err := os.CreateTemp(cfg.Database.DataDir, ".restore-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := arch.Get(ctx, snapshotName(cfg), tmpFile); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("downloading snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	if enc != nil && enc.IsConfigured() {
		dctx, err := enc.Unlock(passphrase)
		if err != nil {
			return "", fmt.Errorf("unlocking private key: %w", err)
		}
		decPath, err := decryptToTemp(dctx, tmpPath, cfg.Database.DataDir)
		if err != nil {
			return "", err
		}
		os.Remove(tmpPath)
		tmpPath = decPath
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("moving restored index into place: %w", err)
	}
	success = true
	return destPath, nil
}

func decryptToTemp(dctx encryption.DecryptionContext, path, dir string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening snapshot for decryption: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, ".restore-dec-*")
	if err != nil {
		return "", fmt.Errorf("creating decrypted snapshot file: %w", err)
	}

	if err := dctx.Decrypt(src, dst); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("decrypting snapshot: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("closing decrypted snapshot: %w", err)
	}
	return dst.Name(), nil
}
