// Package checkpoint persists per-lineage file-state snapshots as flat
// JSON documents mapping path to mtime.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"bk-go/internal/bk"
)

// Store keeps one checkpoint document per backup lineage under dir,
// named <id>.json.
type Store struct {
	dir    string
	logger bk.Logger
}

// NewStore creates a checkpoint store rooted at dir. The directory is
// created lazily on the first Save.
func NewStore(dir string, logger bk.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Path returns the checkpoint document location for id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads the checkpoint for id. A missing or unparseable document is
// recovered as an empty state: the run diffs against nothing and stages
// everything, which is always safe.
func (s *Store) Load(id string) (bk.FileState, error) {
	path := s.Path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return bk.FileState{}, nil
		}
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}

	var state bk.FileState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("checkpoint unreadable, starting fresh", "path", path, "error", err)
		return bk.FileState{}, nil
	}
	if state == nil {
		state = bk.FileState{}
	}
	return state, nil
}

// Save atomically replaces the checkpoint for id via a temp file and
// rename, so a consumer never observes a partially written document.
func (s *Store) Save(id string, state bk.FileState) error {
	if state == nil {
		state = bk.FileState{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".ckpt-*")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path(id)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

// Compile-time check that Store implements bk.CheckpointStore.
var _ bk.CheckpointStore = (*Store)(nil)
