package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileSystemArchive keeps snapshots under a local directory:
//
//	<root>/
//	  <name>          (snapshot)
//	  <name>.version  (version marker)
type FileSystemArchive struct {
	root string
}

var _ Archive = (*FileSystemArchive)(nil)

// NewFileSystemArchive creates an archive rooted at the given path.
func NewFileSystemArchive(root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &FileSystemArchive{root: root}, nil
}

// Put writes the snapshot atomically (temp file + rename), then the version
// marker.
func (a *FileSystemArchive) Put(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	destPath := filepath.Join(a.root, name)

	tmpFile, err := os.CreateTemp(a.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true

	versionData := strconv.FormatInt(version, 10)
	if err := os.WriteFile(destPath+".version", []byte(versionData), 0644); err != nil {
		return fmt.Errorf("writing version marker: %w", err)
	}
	return nil
}

// Get copies the snapshot into w.
func (a *FileSystemArchive) Get(ctx context.Context, name string, w io.Writer) error {
	f, err := os.Open(filepath.Join(a.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot not found: %s", name)
		}
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	return nil
}

// Version reads the version marker, 0 when missing.
func (a *FileSystemArchive) Version(ctx context.Context, name string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(a.root, name+".version"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version marker: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks the archive root is a directory.
func (a *FileSystemArchive) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}
	return nil
}
