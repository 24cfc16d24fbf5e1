package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// BackupTree builds a backup directory tree on disk for ingestion tests:
// a root named "<title>_<id>" containing day directories, which contain
// item directories, which contain metadata and payload files.
type BackupTree struct {
	Root string
}

// NewBackupTree creates a backup root under a test temp dir. The directory
// name encodes the channel id the way exported backups do.
func NewBackupTree(t *testing.T, title string, channelID int64) *BackupTree {
	t.Helper()

	root := filepath.Join(t.TempDir(), fmt.Sprintf("%s_%d", title, channelID))
	if err := os.Mkdir(root, 0755); err != nil {
		t.Fatalf("creating backup root: %v", err)
	}
	return &BackupTree{Root: root}
}

// ItemDir returns the path of an item directory, creating it if needed.
func (b *BackupTree) ItemDir(t *testing.T, day, item string) string {
	t.Helper()

	dir := filepath.Join(b.Root, day, item)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating item directory: %v", err)
	}
	return dir
}

// WriteFile writes one file into an item directory and returns its path.
func (b *BackupTree) WriteFile(t *testing.T, day, item, name, content string) string {
	t.Helper()

	path := filepath.Join(b.ItemDir(t, day, item), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// Metadata formats a minimal metadata file with all required fields.
// extra is appended verbatim into the JSON object and may be empty.
func Metadata(id int64, date, message, extra string) string {
	out := fmt.Sprintf(`{"id": %d, "date": %q, "message": %q, "grouped_id": 0, "media": null`, id, date, message)
	if extra != "" {
		out += ", " + extra
	}
	return out + "}"
}
