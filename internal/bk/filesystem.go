package bk

import (
	"context"
	"io/fs"
)

// Filesystem abstracts the filesystem operations the service needs: state
// scanning and the staging copy. Implementations must apply the same
// symlink policy (no following) on every scan, otherwise diffs between
// scans are meaningless.
type Filesystem interface {
	// Scan walks root and returns the state of every file and directory
	// under it, including root itself. The scan aborts on the first
	// unreadable entry; partial results are never returned.
	Scan(ctx context.Context, root string) (FileState, error)

	// Lstat returns info for path without following symlinks.
	Lstat(path string) (fs.FileInfo, error)

	// CopyFile copies a single file to dst, creating parent directories
	// as needed and preserving mode and mtime.
	CopyFile(src, dst string) error

	// CopyTree recursively copies the directory src into dst.
	CopyTree(src, dst string) error
}
