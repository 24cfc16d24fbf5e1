// Package archive stores versioned snapshots of the index database in an
// off-machine location.
package archive

import (
	"context"
	"io"
)

// Archive stores named snapshots with a monotonically increasing version.
// The version is the id of the index run that produced the snapshot, so a
// local database can be compared against the archived one.
type Archive interface {
	// Put uploads a snapshot, replacing any previous one of the same name,
	// and records its version.
	Put(ctx context.Context, name string, r io.Reader, size int64, version int64) error

	// Get downloads the snapshot into w.
	Get(ctx context.Context, name string, w io.Writer) error

	// Version returns the stored version for a snapshot, 0 if none exists.
	Version(ctx context.Context, name string) (int64, error)

	// ValidateSetup verifies the archive location is usable.
	ValidateSetup(ctx context.Context) error
}
