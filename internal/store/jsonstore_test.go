package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"bk-go/internal/bk"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	return NewJSONStore(filepath.Join(t.TempDir(), "db.json"), bk.NewNopLogger())
}

func record(id, timestamp string) *bk.BackupRecord {
	return &bk.BackupRecord{
		ID:            id,
		ArchiveFormat: bk.FormatTar,
		Kind:          bk.RecipeFull,
		ArchivePath:   "backup_" + timestamp + ".tar.gz",
		StorageKind:   bk.StorageLocal,
		Timestamp:     timestamp,
		SourcePath:    "/home/user/docs",
	}
}

func TestJSONStoreSaveAndGet(t *testing.T) {
	s := newTestStore(t)

	want := record("b1", "20240115103000")
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get("b1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "b1" {
		t.Errorf("ID = %s, want b1", got.ID)
	}
	if got.ArchivePath != want.ArchivePath || got.Kind != want.Kind || got.Timestamp != want.Timestamp {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestJSONStoreGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, bk.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJSONStoreListOrder(t *testing.T) {
	s := newTestStore(t)

	for _, r := range []*bk.BackupRecord{
		record("b2", "20240116090000"),
		record("b1", "20240115103000"),
		record("b3", "20240115103000"),
	} {
		if err := s.Save(r); err != nil {
			t.Fatalf("Save(%s): %v", r.ID, err)
		}
	}

	records, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	want := []string{"b1", "b3", "b2"}
	if len(ids) != len(want) {
		t.Fatalf("List returned %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("List order = %v, want %v", ids, want)
			break
		}
	}
}

func TestJSONStoreDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(record("b1", "20240115103000")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Delete("b1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("b1"); !errors.Is(err, bk.ErrNotFound) {
		t.Errorf("record survived delete: %v", err)
	}

	t.Run("absent id is a no-op", func(t *testing.T) {
		if err := s.Delete("b1"); err != nil {
			t.Errorf("deleting absent record: %v", err)
		}
	})
}

func TestJSONStoreCorruptDocument(t *testing.T) {
	s := newTestStore(t)

	if err := os.WriteFile(s.path, []byte("{{{ not json"), 0644); err != nil {
		t.Fatalf("corrupting document: %v", err)
	}

	t.Run("list returns empty, not an error", func(t *testing.T) {
		records, err := s.List()
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("List = %v, want empty", records)
		}
	})

	t.Run("save rewrites a valid document", func(t *testing.T) {
		if err := s.Save(record("b1", "20240115103000")); err != nil {
			t.Fatalf("Save: %v", err)
		}

		data, err := os.ReadFile(s.path)
		if err != nil {
			t.Fatalf("reading document: %v", err)
		}
		var doc map[string]map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("document is not valid JSON: %v", err)
		}
		if len(doc) != 1 {
			t.Fatalf("document holds %d records, want 1", len(doc))
		}
		entry, ok := doc["b1"]
		if !ok {
			t.Fatal("document missing key b1")
		}
		for _, field := range []string{"archive_format", "backup_type", "archive_path", "storage_type", "timestamp", "src"} {
			if _, ok := entry[field]; !ok {
				t.Errorf("record document missing field %q", field)
			}
		}
	})
}
