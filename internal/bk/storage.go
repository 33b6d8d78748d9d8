package bk

import "context"

// Storage kinds understood by the engine.
const (
	StorageLocal  = "local"
	StorageRemote = "remote"
)

// Handle is an opaque reference to a stored archive artifact: an absolute
// path for local storage, an object key for remote storage.
type Handle string

// Storage is the backend an archive artifact is shipped to and retrieved
// from. Implementations locate artifacts by handle; remote backends
// search by exact artifact filename and resolve ambiguity to the first
// match.
type Storage interface {
	// Kind returns the storage kind, one of StorageLocal or StorageRemote.
	Kind() string

	// Store persists the artifact at localPath under the given name and
	// returns its handle.
	Store(ctx context.Context, localPath, name string) (Handle, error)

	// Retrieve copies the artifact identified by handle to destPath.
	Retrieve(ctx context.Context, handle Handle, destPath string) error

	// Delete removes the artifact. Deleting an absent artifact is a
	// logged no-op, not an error.
	Delete(ctx context.Context, handle Handle) error

	// Exists reports whether the artifact is still present.
	Exists(ctx context.Context, handle Handle) (bool, error)
}

// StorageFactory resolves a storage kind to a backend. Unsupported kinds
// fail with an error wrapping ErrUnsupported.
type StorageFactory func(kind string) (Storage, error)
