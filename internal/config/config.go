package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for tgsearch. One config describes one
// indexed channel.
type Config struct {
	ChannelDir         string `toml:"channel_dir"`
	DiscussionGroupDir string `toml:"discussion_group_dir,omitempty"`
	BaseDir            string `toml:"base_dir"`
	LogDir             string `toml:"log_dir"`

	OCR        OCRConfig        `toml:"ocr"`
	Database   DatabaseConfig   `toml:"database"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// OCRConfig holds recognition settings. The first language is the primary
// engine; the rest are consulted for low-confidence words.
type OCRConfig struct {
	Languages     []string `toml:"languages"`
	TesseractPath string   `toml:"tesseract_path,omitempty"`
	TessdataDir   string   `toml:"tessdata_dir,omitempty"`
	ChunkSize     int      `toml:"chunk_size"`
	Workers       int      `toml:"workers"`
}

// DatabaseConfig describes the index store.
// This uses a tagged union pattern: Type decides which fields apply.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ArchiveConfig describes where index snapshots are uploaded after a
// mutating run. Type "none" disables archiving.
type ArchiveConfig struct {
	Type string `toml:"type"` // "none", "filesystem", "memory" or "s3"
	Name string `toml:"name,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_archive_root,omitempty"`
}

// EncryptionConfig holds the age key pair used for archive snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none", "age" or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// NewConfig creates a Config with defaults for the given backup and base
// directories.
func NewConfig(channelDir, baseDir string) *Config {
	return &Config{
		ChannelDir: channelDir,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		OCR: OCRConfig{
			Languages: []string{"eng"},
			ChunkSize: 50,
			Workers:   4,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Archive: ArchiveConfig{Type: "none"},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "tgsearch.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "tgsearch.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
// It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
