// Package storage implements the archive storage backends: local
// filesystem and a remote S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bk-go/internal/bk"
)

// Local stores archive artifacts directly under a base directory.
// Handles are absolute file paths.
type Local struct {
	baseDir string
	logger  bk.Logger
}

// NewLocal creates a local backend rooted at baseDir.
func NewLocal(baseDir string, logger bk.Logger) *Local {
	return &Local{baseDir: baseDir, logger: logger}
}

func (l *Local) Kind() string { return bk.StorageLocal }

// Store moves the artifact into the base directory. The archive engine
// usually produces the artifact there already, making this a no-op.
func (l *Local) Store(_ context.Context, localPath, name string) (bk.Handle, error) {
	if err := os.MkdirAll(l.baseDir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory: %w", err)
	}

	dest := filepath.Join(l.baseDir, name)
	if localPath == dest {
		return bk.Handle(dest), nil
	}
	if err := os.Rename(localPath, dest); err != nil {
		// Cross-device moves fall back to a copy.
		if err := copyFile(localPath, dest); err != nil {
			return "", fmt.Errorf("storing artifact: %w", err)
		}
		os.Remove(localPath)
	}
	return bk.Handle(dest), nil
}

// Retrieve copies the artifact behind handle to destPath.
func (l *Local) Retrieve(_ context.Context, handle bk.Handle, destPath string) error {
	if _, err := os.Stat(string(handle)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: archive %s", bk.ErrNotFound, handle)
		}
		return fmt.Errorf("stat archive: %w", err)
	}
	if err := copyFile(string(handle), destPath); err != nil {
		return fmt.Errorf("retrieving archive: %w", err)
	}
	return nil
}

// Delete removes the artifact. An absent artifact is a logged no-op.
func (l *Local) Delete(_ context.Context, handle bk.Handle) error {
	if err := os.Remove(string(handle)); err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("archive not found in local storage, skipping delete", "archive", handle)
			return nil
		}
		return fmt.Errorf("deleting archive: %w", err)
	}
	return nil
}

// Exists reports whether the artifact is still on disk.
func (l *Local) Exists(_ context.Context, handle bk.Handle) (bool, error) {
	if _, err := os.Stat(string(handle)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat archive: %w", err)
	}
	return true, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Compile-time check that Local implements bk.Storage.
var _ bk.Storage = (*Local)(nil)
