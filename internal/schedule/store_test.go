package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bk-go/internal/bk"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "schedule"), bk.NewNopLogger())
}

func TestStoreAddAndEntries(t *testing.T) {
	s := newTestStore(t)

	if err := s.Add(bk.ScheduleEntry{BackupID: "b2", Frequency: bk.Weekly}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(bk.ScheduleEntry{BackupID: "b1", Frequency: bk.Daily}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries returned %d, want 2", len(entries))
	}
	if entries[0].BackupID != "b1" || entries[1].BackupID != "b2" {
		t.Errorf("entries not ordered by backup id: %v", entries)
	}

	t.Run("re-adding replaces the frequency", func(t *testing.T) {
		if err := s.Add(bk.ScheduleEntry{BackupID: "b1", Frequency: bk.Monthly}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		entries, err := s.Entries()
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		if len(entries) != 2 || entries[0].Frequency != bk.Monthly {
			t.Errorf("entries after replace = %v, want b1 monthly", entries)
		}
	})
}

func TestStoreEntriesEmptyAndCorrupt(t *testing.T) {
	t.Run("no document yields no entries", func(t *testing.T) {
		entries, err := newTestStore(t).Entries()
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Entries = %v, want empty", entries)
		}
	})

	t.Run("corrupt document yields no entries", func(t *testing.T) {
		s := newTestStore(t)
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(s.schedulePath(), []byte("not json"), 0644); err != nil {
			t.Fatalf("corrupting document: %v", err)
		}

		entries, err := s.Entries()
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Entries = %v, want empty", entries)
		}
	})
}

func TestStoreLastRun(t *testing.T) {
	s := newTestStore(t)

	t.Run("absent marker means never ran", func(t *testing.T) {
		got, err := s.LastRun("b1")
		if err != nil {
			t.Fatalf("LastRun: %v", err)
		}
		if !got.IsZero() {
			t.Errorf("LastRun = %v, want zero time", got)
		}
	})

	t.Run("round-trips the fired time", func(t *testing.T) {
		fired := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		if err := s.SetLastRun("b1", fired); err != nil {
			t.Fatalf("SetLastRun: %v", err)
		}

		got, err := s.LastRun("b1")
		if err != nil {
			t.Fatalf("LastRun: %v", err)
		}
		if !got.Equal(fired) {
			t.Errorf("LastRun = %v, want %v", got, fired)
		}
	})

	t.Run("corrupt marker means overdue", func(t *testing.T) {
		if err := s.SetLastRun("b2", time.Now()); err != nil {
			t.Fatalf("SetLastRun: %v", err)
		}
		if err := os.WriteFile(s.lastRunPath("b2"), []byte("junk"), 0644); err != nil {
			t.Fatalf("corrupting marker: %v", err)
		}

		got, err := s.LastRun("b2")
		if err != nil {
			t.Fatalf("LastRun: %v", err)
		}
		if !got.IsZero() {
			t.Errorf("LastRun = %v, want zero time", got)
		}
	})
}
