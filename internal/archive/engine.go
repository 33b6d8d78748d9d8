package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bk-go/internal/bk"
)

// Engine is the archive engine: it packs a staging directory into a
// single artifact, optionally encrypts it, ships it to a storage backend
// and reverses the whole pipeline for restores.
type Engine struct {
	encryptor bk.Encryptor
	logger    bk.Logger
}

// NewEngine creates an Engine. Pass bk.NewNopEncryptor() to disable
// artifact encryption.
func NewEngine(encryptor bk.Encryptor, logger bk.Logger) *Engine {
	return &Engine{encryptor: encryptor, logger: logger}
}

// Archive packs stagingDir into <name>.<ext> next to it, ships the
// artifact to storage and returns the handle. The artifact only reaches
// the caller's metadata store after Store succeeds. For remote storage
// the local artifact and the staging directory are removed afterwards;
// those removals are best-effort cleanup and never fail the backup.
func (e *Engine) Archive(ctx context.Context, stagingDir, name, format string, storage bk.Storage) (bk.Handle, error) {
	p, err := packerFor(format)
	if err != nil {
		return "", err
	}

	workDir := filepath.Dir(stagingDir)
	artifact := filepath.Join(workDir, name+p.ext())
	if err := p.pack(stagingDir, artifact); err != nil {
		return "", fmt.Errorf("packing %s: %w", stagingDir, err)
	}

	if suffix := e.encryptor.Suffix(); suffix != "" {
		sealed, err := e.seal(artifact, artifact+suffix)
		if err != nil {
			return "", err
		}
		artifact = sealed
	}

	handle, err := storage.Store(ctx, artifact, filepath.Base(artifact))
	if err != nil {
		return "", err
	}

	if storage.Kind() == bk.StorageRemote {
		if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("could not remove local artifact after upload", "artifact", artifact, "error", err)
		}
		if err := os.RemoveAll(stagingDir); err != nil {
			e.logger.Warn("could not remove staging directory after upload", "staging_dir", stagingDir, "error", err)
		}
	}

	return handle, nil
}

// Restore fetches the artifact behind handle into a scratch directory,
// decrypts it if its name carries the encryption suffix, and unpacks it
// into destDir.
func (e *Engine) Restore(ctx context.Context, handle bk.Handle, format string, storage bk.Storage, destDir string) error {
	p, err := packerFor(format)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "bk-restore-")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	artifact := filepath.Join(scratch, filepath.Base(string(handle)))
	if err := storage.Retrieve(ctx, handle, artifact); err != nil {
		return err
	}

	if suffix := e.encryptor.Suffix(); suffix != "" && strings.HasSuffix(artifact, suffix) {
		opened, err := e.open(artifact, strings.TrimSuffix(artifact, suffix))
		if err != nil {
			return err
		}
		artifact = opened
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if err := p.unpack(artifact, destDir); err != nil {
		return fmt.Errorf("unpacking %s: %w", artifact, err)
	}
	return nil
}

// seal encrypts src into dst and removes the plaintext artifact.
func (e *Engine) seal(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating encrypted artifact: %w", err)
	}

	if err := e.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("encrypting artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing encrypted artifact: %w", err)
	}

	if err := os.Remove(src); err != nil {
		e.logger.Warn("could not remove plaintext artifact", "artifact", src, "error", err)
	}
	return dst, nil
}

// open decrypts src into dst.
func (e *Engine) open(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening encrypted artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating decrypted artifact: %w", err)
	}

	if err := e.encryptor.Decrypt(in, out); err != nil {
		out.Close()
		return "", fmt.Errorf("decrypting artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing decrypted artifact: %w", err)
	}
	return dst, nil
}

// Compile-time check that Engine implements bk.Archiver.
var _ bk.Archiver = (*Engine)(nil)
