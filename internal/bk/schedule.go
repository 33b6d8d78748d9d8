package bk

import (
	"fmt"
	"time"
)

// Frequency is how often a scheduled backup recurs.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// ParseFrequency validates a raw frequency string.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case Daily, Weekly, Monthly:
		return Frequency(s), nil
	default:
		return "", fmt.Errorf("%w schedule frequency: %q", ErrUnsupported, s)
	}
}

// ScheduleEntry ties a backup lineage to a recurrence frequency. The JSON
// tags fix the on-disk schedule document shape.
type ScheduleEntry struct {
	BackupID  string    `json:"backup_id"`
	Frequency Frequency `json:"frequency"`
}

// ScheduleStore persists schedule entries and, separately, the last-run
// marker per entry so schedule definitions and run history can evolve
// independently.
type ScheduleStore interface {
	// Add creates or replaces the entry for its backup id.
	Add(entry ScheduleEntry) error

	// Entries returns all entries ordered by backup id.
	Entries() ([]ScheduleEntry, error)

	// LastRun returns the last time the entry fired. An absent marker
	// yields the zero time, meaning infinitely overdue.
	LastRun(backupID string) (time.Time, error)

	// SetLastRun records that the entry fired at t.
	SetLastRun(backupID string, t time.Time) error
}

// Due reports whether a backup with the given frequency should fire.
// Daily fires once the calendar date has advanced, weekly after at least
// seven elapsed days, monthly once the calendar month or year has
// advanced. Monthly follows the calendar, not a 30-day window, so short
// months behave correctly.
func Due(freq Frequency, lastRun, now time.Time) bool {
	switch freq {
	case Daily:
		return now.Year() > lastRun.Year() ||
			(now.Year() == lastRun.Year() && now.YearDay() > lastRun.YearDay())
	case Weekly:
		return now.Sub(lastRun) >= 7*24*time.Hour
	case Monthly:
		return now.Year() > lastRun.Year() ||
			(now.Year() == lastRun.Year() && now.Month() > lastRun.Month())
	default:
		return false
	}
}
