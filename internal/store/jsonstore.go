// Package store is the backup metadata store: one JSON document mapping
// backup id to record, rewritten whole on every mutation.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/im7mortal/kmutex"

	"bk-go/internal/bk"
)

// documentLocks serializes read-modify-write cycles per document path, so
// two stores opened on the same file within a process cannot lose updates
// to each other.
var documentLocks = kmutex.New()

// JSONStore persists backup records in a single JSON document. Every
// operation reads and rewrites the whole document: O(n) per call, but a
// write always leaves valid JSON behind and readers never see a partial
// document (temp file + rename).
type JSONStore struct {
	path   string
	logger bk.Logger
}

// NewJSONStore creates a store backed by the document at path.
func NewJSONStore(path string, logger bk.Logger) *JSONStore {
	return &JSONStore{path: path, logger: logger}
}

// Save adds record to the document.
func (s *JSONStore) Save(record *bk.BackupRecord) error {
	documentLocks.Lock(s.path)
	defer documentLocks.Unlock(s.path)

	records := s.load()
	records[record.ID] = record
	return s.persist(records)
}

// List returns all records ordered by timestamp, then id.
func (s *JSONStore) List() ([]*bk.BackupRecord, error) {
	documentLocks.Lock(s.path)
	defer documentLocks.Unlock(s.path)

	records := s.load()
	out := make([]*bk.BackupRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get returns the record for id.
func (s *JSONStore) Get(id string) (*bk.BackupRecord, error) {
	documentLocks.Lock(s.path)
	defer documentLocks.Unlock(s.path)

	record, ok := s.load()[id]
	if !ok {
		return nil, fmt.Errorf("%w: backup %s", bk.ErrNotFound, id)
	}
	return record, nil
}

// Delete removes the record for id. An absent id is a logged no-op.
func (s *JSONStore) Delete(id string) error {
	documentLocks.Lock(s.path)
	defer documentLocks.Unlock(s.path)

	records := s.load()
	if _, ok := records[id]; !ok {
		s.logger.Warn("delete: backup not in store", "backup_id", id)
		return nil
	}
	delete(records, id)
	return s.persist(records)
}

// load reads the document. A missing or corrupt document is recovered as
// an empty store; corruption is logged, never propagated.
func (s *JSONStore) load() map[string]*bk.BackupRecord {
	records := make(map[string]*bk.BackupRecord)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("metadata document unreadable, treating as empty", "path", s.path, "error", err)
		}
		return records
	}

	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("metadata document corrupt, treating as empty", "path", s.path, "error", err)
		return make(map[string]*bk.BackupRecord)
	}

	for id, record := range records {
		record.ID = id
	}
	return records
}

func (s *JSONStore) persist(records map[string]*bk.BackupRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding metadata document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".db-*")
	if err != nil {
		return fmt.Errorf("creating temp document: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing metadata document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp document: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing metadata document: %w", err)
	}
	return nil
}

// Compile-time check that JSONStore implements bk.MetadataStore.
var _ bk.MetadataStore = (*JSONStore)(nil)
