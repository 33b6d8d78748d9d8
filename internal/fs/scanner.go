// Package fs is the real-filesystem implementation of bk.Filesystem:
// directory state scanning and the staging copy.
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"bk-go/internal/bk"
)

// Manager performs filesystem operations using the os package.
// Symlinks are never followed: entries are recorded via lstat, which
// keeps scans cycle-free and diff results consistent between runs.
type Manager struct{}

// NewManager creates a filesystem manager operating on the real filesystem.
func NewManager() *Manager { return &Manager{} }

// Scan walks root and returns the mtime of every file and directory under
// it, including root itself. The scan aborts on the first unreadable
// entry so a partial state is never diffed against a complete one.
func (m *Manager) Scan(ctx context.Context, root string) (bk.FileState, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: source directory %s", bk.ErrNotFound, absRoot)
		}
		return nil, fmt.Errorf("stat root: %w", err)
	}

	state := bk.FileState{absRoot: info.ModTime().Unix()}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if path == absRoot {
			return nil
		}
		entryInfo, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		state[path] = entryInfo.ModTime().Unix()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// Lstat returns info for path without following symlinks.
func (m *Manager) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// Compile-time check that Manager implements bk.Filesystem.
var _ bk.Filesystem = (*Manager)(nil)
