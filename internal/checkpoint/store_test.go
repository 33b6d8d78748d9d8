package checkpoint

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"bk-go/internal/bk"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "checkpoints"), bk.NewNopLogger())
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)

	state := bk.FileState{"/src": 100, "/src/a.txt": 200}
	if err := s.Save("lineage-1", state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("lineage-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, state) {
		t.Errorf("Load = %v, want %v", got, state)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Load("never-saved")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("missing checkpoint loaded as %v, want empty", got)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("lineage-1", bk.FileState{"/src": 100}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(s.Path("lineage-1"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("corrupting checkpoint: %v", err)
	}

	got, err := s.Load("lineage-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("corrupt checkpoint loaded as %v, want empty", got)
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("lineage-1", bk.FileState{"/src/old": 1}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	next := bk.FileState{"/src/new": 2}
	if err := s.Save("lineage-1", next); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Load("lineage-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, next) {
		t.Errorf("Load = %v, want %v", got, next)
	}
}

func TestStorePath(t *testing.T) {
	s := NewStore("/data/checkpoints", bk.NewNopLogger())
	if got, want := s.Path("abc"), filepath.Join("/data/checkpoints", "abc.json"); got != want {
		t.Errorf("Path = %s, want %s", got, want)
	}
}
