// Package backend defines the physical storage boundary. The control
// plane resolves node URIs to opaque locations; a Backend moves the bytes
// living at those locations.
//
// Two implementations exist:
//   - fs: local filesystem storage
//   - s3: Amazon S3 or S3-compatible object storage
package backend

import (
	"context"
	"io"
)

// Backend manages the bytes behind resolved node locations.
//
// Locations are the strings produced by store.Store.ResolveLocation.
// Implementations must be safe for concurrent use; the transfer
// coordinator serializes operations per node, not per backend.
type Backend interface {
	// CreateContainer prepares a location to hold children.
	CreateContainer(ctx context.Context, location string) error

	// Touch ensures an empty data object exists at the location. A
	// no-op if bytes are already present.
	Touch(ctx context.Context, location string) error

	// CreateLink records that location aliases target. Backends without
	// native links may treat this as a no-op; link resolution is a
	// metadata concern.
	CreateLink(ctx context.Context, location, target string) error

	// Size returns the byte size of the data at the location, or 0 if
	// nothing has been written yet.
	Size(ctx context.Context, location string) (int64, error)

	// CopyBytes duplicates the data (or subtree) at src to dst.
	CopyBytes(ctx context.Context, src, dst string) error

	// MoveBytes relocates the data (or subtree) at src to dst.
	MoveBytes(ctx context.Context, src, dst string) error

	// RemoveBytes deletes the data (or subtree) at the location.
	RemoveBytes(ctx context.Context, location string) error

	// Read opens the data at the location for streaming download.
	Read(ctx context.Context, location string) (io.ReadCloser, error)

	// Write streams an upload into the location, replacing existing
	// data, and returns the number of bytes written.
	Write(ctx context.Context, location string, r io.Reader) (int64, error)
}
