package bk

import (
	"context"
	"fmt"
)

// Archive formats understood by the engine.
const (
	FormatTar = "tar"
	FormatZip = "zip"
)

// ParseArchiveFormat validates a raw format string.
func ParseArchiveFormat(s string) (string, error) {
	switch s {
	case FormatTar, FormatZip:
		return s, nil
	default:
		return "", fmt.Errorf("%w archive format: %q", ErrUnsupported, s)
	}
}

// Archiver packages a staging directory into a single artifact and routes
// it to a storage backend, and reverses the operation for retrieval.
type Archiver interface {
	// Archive packs stagingDir into an artifact named after name, ships
	// it to storage and returns the resulting handle. For remote storage
	// the local artifact and the staging directory are removed afterwards
	// on a best-effort basis.
	Archive(ctx context.Context, stagingDir, name, format string, storage Storage) (Handle, error)

	// Restore fetches the artifact behind handle from storage and unpacks
	// it into destDir.
	Restore(ctx context.Context, handle Handle, format string, storage Storage, destDir string) error
}
