package archive

import (
	"context"
	"fmt"

	"tgsearch-go/internal/config"
)

// NewArchiveFromConfig creates an Archive from configuration. Type "none"
// returns nil: runs do not upload snapshots.
func NewArchiveFromConfig(ctx context.Context, cfg config.ArchiveConfig) (Archive, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryArchive(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_archive_root to be set")
		}
		return NewFileSystemArchive(cfg.FSRoot)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 archive requires s3_bucket to be set")
		}
		return NewS3Archive(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown archive type: %q", cfg.Type)
	}
}
