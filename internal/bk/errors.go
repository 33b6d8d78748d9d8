package bk

import "errors"

// Sentinel errors used across the backup engine. Errors are wrapped with
// fmt.Errorf("...: %w", ...) so callers can test with errors.Is.
var (
	// ErrNotFound marks a missing source directory, backup id or archive.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig marks bad or missing configuration.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUnsupported marks an unknown backup, storage or archive kind.
	ErrUnsupported = errors.New("unsupported")

	// ErrAuth marks a remote storage authentication failure.
	ErrAuth = errors.New("authentication failed")
)
