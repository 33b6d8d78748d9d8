package bk_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bk-go/internal/bk"
	"bk-go/internal/schedule"
	"bk-go/internal/testutil"
)

type schedulerHarness struct {
	*harness
	scheduler *bk.Scheduler
	store     *schedule.Store
}

func newSchedulerHarness(t *testing.T) *schedulerHarness {
	t.Helper()

	h := newHarness(t, bk.StorageLocal)
	store := schedule.NewStore(filepath.Join(t.TempDir(), "schedule"), bk.NewNopLogger())
	return &schedulerHarness{
		harness:   h,
		scheduler: bk.NewScheduler(h.service, store, h.metadata, bk.NewNopLogger(), h.clock),
		store:     store,
	}
}

func TestSchedulerSchedule(t *testing.T) {
	h := newSchedulerHarness(t)
	ctx := context.Background()
	testutil.WriteTree(t, h.src, map[string]string{"a.txt": "alpha"})

	t.Run("rejects unknown backup ids", func(t *testing.T) {
		if err := h.scheduler.Schedule("nonexistent", bk.Daily); err == nil {
			t.Error("expected error scheduling unknown backup, got nil")
		}
	})

	t.Run("registers an entry for a recorded backup", func(t *testing.T) {
		record, err := h.service.RunBackup(ctx, bk.RunParams{Kind: bk.RecipeFull, SourcePath: h.src})
		if err != nil {
			t.Fatalf("full backup: %v", err)
		}

		if err := h.scheduler.Schedule(record.ID, bk.Daily); err != nil {
			t.Fatalf("Schedule: %v", err)
		}

		entries, err := h.store.Entries()
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		if len(entries) != 1 || entries[0].BackupID != record.ID || entries[0].Frequency != bk.Daily {
			t.Errorf("entries = %v, want one daily entry for %s", entries, record.ID)
		}
	})
}

func TestSchedulerRunDue(t *testing.T) {
	h := newSchedulerHarness(t)
	ctx := context.Background()
	testutil.WriteTree(t, h.src, map[string]string{"a.txt": "alpha"})

	record, err := h.service.RunBackup(ctx, bk.RunParams{Kind: bk.RecipeFull, SourcePath: h.src})
	if err != nil {
		t.Fatalf("full backup: %v", err)
	}
	if err := h.scheduler.Schedule(record.ID, bk.Daily); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	t.Run("never-run entry fires immediately", func(t *testing.T) {
		fired, err := h.scheduler.RunDue(ctx)
		if err != nil {
			t.Fatalf("RunDue: %v", err)
		}
		if fired != 1 {
			t.Fatalf("fired = %d, want 1", fired)
		}

		records, err := h.service.List()
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("records = %d, want 2 (original plus scheduled run)", len(records))
		}

		lastRun, err := h.store.LastRun(record.ID)
		if err != nil {
			t.Fatalf("LastRun: %v", err)
		}
		if !lastRun.Equal(h.clock.Now()) {
			t.Errorf("last run = %v, want %v", lastRun, h.clock.Now())
		}
	})

	t.Run("same calendar day does not refire", func(t *testing.T) {
		h.clock.Advance(2 * time.Hour)
		fired, err := h.scheduler.RunDue(ctx)
		if err != nil {
			t.Fatalf("RunDue: %v", err)
		}
		if fired != 0 {
			t.Errorf("fired = %d, want 0", fired)
		}
	})

	t.Run("next calendar day fires again", func(t *testing.T) {
		h.clock.Advance(24 * time.Hour)
		fired, err := h.scheduler.RunDue(ctx)
		if err != nil {
			t.Fatalf("RunDue: %v", err)
		}
		if fired != 1 {
			t.Errorf("fired = %d, want 1", fired)
		}
	})
}

func TestSchedulerDowngradesToFull(t *testing.T) {
	h := newSchedulerHarness(t)
	ctx := context.Background()
	testutil.WriteTree(t, h.src, map[string]string{"a.txt": "alpha"})

	// An incremental record with no full backup anywhere in the store.
	orphan := &bk.BackupRecord{
		ID:          "orphan",
		Kind:        bk.RecipeIncremental,
		StorageKind: bk.StorageLocal,
		Timestamp:   h.clock.Now().Format(bk.TimestampLayout),
		SourcePath:  h.src,
	}
	if err := h.metadata.Save(orphan); err != nil {
		t.Fatalf("seeding record: %v", err)
	}
	if err := h.scheduler.Schedule(orphan.ID, bk.Daily); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	fired, err := h.scheduler.RunDue(ctx)
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	records, err := h.service.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ran *bk.BackupRecord
	for _, r := range records {
		if r.ID != orphan.ID {
			ran = r
		}
	}
	if ran == nil {
		t.Fatal("scheduled run left no record")
	}
	if ran.Kind != bk.RecipeFull {
		t.Errorf("scheduled run kind = %s, want full (downgraded)", ran.Kind)
	}
}

func TestSchedulerIsolatesEntryFailures(t *testing.T) {
	h := newSchedulerHarness(t)
	ctx := context.Background()
	testutil.WriteTree(t, h.src, map[string]string{"a.txt": "alpha"})

	good, err := h.service.RunBackup(ctx, bk.RunParams{Kind: bk.RecipeFull, SourcePath: h.src})
	if err != nil {
		t.Fatalf("full backup: %v", err)
	}

	// A record whose source no longer exists; its scheduled run fails.
	broken := &bk.BackupRecord{
		ID:          "broken",
		Kind:        bk.RecipeFull,
		StorageKind: bk.StorageLocal,
		Timestamp:   h.clock.Now().Format(bk.TimestampLayout),
		SourcePath:  filepath.Join(h.src, "gone"),
	}
	if err := h.metadata.Save(broken); err != nil {
		t.Fatalf("seeding record: %v", err)
	}

	if err := h.scheduler.Schedule(broken.ID, bk.Daily); err != nil {
		t.Fatalf("Schedule broken: %v", err)
	}
	if err := h.scheduler.Schedule(good.ID, bk.Daily); err != nil {
		t.Fatalf("Schedule good: %v", err)
	}

	fired, err := h.scheduler.RunDue(ctx)
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if fired != 2 {
		t.Errorf("fired = %d, want 2 (failure must not stop evaluation)", fired)
	}

	// The failing entry's marker still advances, so it retries next
	// period instead of on every invocation.
	lastRun, err := h.store.LastRun(broken.ID)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if lastRun.IsZero() {
		t.Error("failed entry's last-run marker was not advanced")
	}
}
