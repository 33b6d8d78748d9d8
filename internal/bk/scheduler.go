package bk

import (
	"context"
	"fmt"
)

// Scheduler replays recorded backups on a calendar recurrence. It never
// sleeps or polls: an external driver (cron, a timer, `bk schedule run`)
// invokes RunDue, which evaluates every entry once.
type Scheduler struct {
	service  *Service
	schedule ScheduleStore
	metadata MetadataStore
	logger   Logger
	clock    Clock
}

// NewScheduler creates a Scheduler driving the given service.
func NewScheduler(service *Service, schedule ScheduleStore, metadata MetadataStore, logger Logger, clock Clock) *Scheduler {
	return &Scheduler{
		service:  service,
		schedule: schedule,
		metadata: metadata,
		logger:   logger,
		clock:    clock,
	}
}

// Schedule registers a recurring backup for the lineage behind backupID.
// The referenced record must exist; its recipe kind and source are
// replayed on every fire.
func (s *Scheduler) Schedule(backupID string, freq Frequency) error {
	if _, err := s.metadata.Get(backupID); err != nil {
		return fmt.Errorf("scheduling %s: %w", backupID, err)
	}
	if err := s.schedule.Add(ScheduleEntry{BackupID: backupID, Frequency: freq}); err != nil {
		return err
	}
	s.logger.Info("schedule added", "backup_id", backupID, "frequency", freq)
	return nil
}

// RunDue fires every entry whose recurrence has elapsed and returns how
// many fired. A failed run is logged and does not stop evaluation of the
// remaining entries; its last-run marker is still advanced, so a
// persistently failing entry fires once per period instead of on every
// invocation.
func (s *Scheduler) RunDue(ctx context.Context) (int, error) {
	entries, err := s.schedule.Entries()
	if err != nil {
		return 0, fmt.Errorf("loading schedule: %w", err)
	}

	now := s.clock.Now()
	fired := 0
	for _, entry := range entries {
		lastRun, err := s.schedule.LastRun(entry.BackupID)
		if err != nil {
			s.logger.Error("reading last-run marker", "backup_id", entry.BackupID, "error", err)
			continue
		}
		if !Due(entry.Frequency, lastRun, now) {
			continue
		}

		s.fire(ctx, entry)
		fired++

		if err := s.schedule.SetLastRun(entry.BackupID, now); err != nil {
			s.logger.Error("writing last-run marker", "backup_id", entry.BackupID, "error", err)
		}
	}
	return fired, nil
}

// fire replays one scheduled entry. When the entry references an
// incremental or differential backup but no full backup exists anywhere
// in the store, the run is downgraded to full rather than failing: there
// is no baseline worth diffing against.
func (s *Scheduler) fire(ctx context.Context, entry ScheduleEntry) {
	record, err := s.metadata.Get(entry.BackupID)
	if err != nil {
		s.logger.Warn("scheduled entry has no record, skipping", "backup_id", entry.BackupID, "error", err)
		return
	}

	kind := record.Kind
	if kind != RecipeFull && !s.fullExists() {
		s.logger.Warn("no full backup found, downgrading scheduled run to full", "backup_id", entry.BackupID, "kind", kind)
		kind = RecipeFull
	}

	s.logger.Info("firing scheduled backup", "backup_id", entry.BackupID, "kind", kind, "frequency", entry.Frequency)
	if _, err := s.service.RunBackup(ctx, RunParams{
		Kind:       kind,
		SourcePath: record.SourcePath,
		BackupID:   entry.BackupID,
	}); err != nil {
		s.logger.Error("scheduled backup failed", "backup_id", entry.BackupID, "error", err)
	}
}

func (s *Scheduler) fullExists() bool {
	records, err := s.metadata.List()
	if err != nil {
		s.logger.Error("listing records", "error", err)
		return false
	}
	for _, record := range records {
		if record.Kind == RecipeFull {
			return true
		}
	}
	return false
}
