package core

import (
	"context"
	"io"
)

// ArchiveStorage gives byte-level access to one archive container.
// Paths are container-relative and always use forward slashes.
type ArchiveStorage interface {
	// Setup opens the underlying storage. It must be called once before any stream is created.
	Setup(ctx context.Context) error

	// CreateInputStream opens the entry at path for reading.
	CreateInputStream(path string) (io.ReadCloser, error)

	// CreateOutputStream creates or truncates the entry at path.
	// The entry is complete once the returned writer is closed.
	CreateOutputStream(path string) (io.WriteCloser, error)

	// Exists reports whether an entry (or, for a trailing slash, a directory) exists.
	Exists(path string) bool

	// Finish flushes and releases the underlying storage.
	Finish() error
}
