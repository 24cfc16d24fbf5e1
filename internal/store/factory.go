package store

import (
	"fmt"
	"os"
	"path/filepath"

	"tgsearch-go/internal/config"
	"tgsearch-go/internal/index"
)

// IndexFileName is the SQLite file holding one channel's index.
const IndexFileName = "index.db"

// NewStoreFromConfig creates a store from the database configuration and
// brings its schema up to date.
func NewStoreFromConfig(cfg config.DatabaseConfig, clock index.Clock) (*SQLiteStore, error) {
	var path string

	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("database data_dir is required for type sqlite")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, IndexFileName)
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %q", cfg.Type)
	}

	s, err := NewSQLiteStore(path, clock)
	if err != nil {
		return nil, err
	}

	if err := s.MigrateUp(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if err := s.CheckMigrations(); err != nil {
		s.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	return s, nil
}
