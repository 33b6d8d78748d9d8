// Package schedule persists the recurring-backup schedule and its
// per-entry last-run markers as separate JSON documents, so schedule
// definitions and run history can evolve independently.
package schedule

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"bk-go/internal/bk"
)

// Store keeps the schedule document at <dir>/schedule.json and one
// last-run marker per entry under <dir>/last_run/.
type Store struct {
	dir    string
	logger bk.Logger
}

// NewStore creates a schedule store rooted at dir.
func NewStore(dir string, logger bk.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) schedulePath() string {
	return filepath.Join(s.dir, "schedule.json")
}

func (s *Store) lastRunPath(backupID string) string {
	return filepath.Join(s.dir, "last_run", backupID+"_last_run.json")
}

// Add creates or replaces the schedule entry for its backup id.
func (s *Store) Add(entry bk.ScheduleEntry) error {
	entries := s.load()
	entries[entry.BackupID] = entry
	return s.persist(entries)
}

// Entries returns all schedule entries ordered by backup id.
func (s *Store) Entries() ([]bk.ScheduleEntry, error) {
	entries := s.load()
	out := make([]bk.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BackupID < out[j].BackupID })
	return out, nil
}

// lastRunMarker is the on-disk shape of a last-run marker.
type lastRunMarker struct {
	LastRun string `json:"last_run"`
}

// LastRun returns when the entry last fired. An absent or unreadable
// marker yields the zero time: the entry is infinitely overdue.
func (s *Store) LastRun(backupID string) (time.Time, error) {
	path := s.lastRunPath(backupID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("reading last-run marker %s: %w", path, err)
	}

	var marker lastRunMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		s.logger.Warn("last-run marker corrupt, treating entry as overdue", "path", path, "error", err)
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, marker.LastRun)
	if err != nil {
		s.logger.Warn("last-run marker unparseable, treating entry as overdue", "path", path, "error", err)
		return time.Time{}, nil
	}
	return t, nil
}

// SetLastRun records that the entry fired at t.
func (s *Store) SetLastRun(backupID string, t time.Time) error {
	path := s.lastRunPath(backupID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating last-run directory: %w", err)
	}

	data, err := json.Marshal(lastRunMarker{LastRun: t.Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("encoding last-run marker: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing last-run marker: %w", err)
	}
	return nil
}

// load reads the schedule document, recovering a missing or corrupt
// document as an empty schedule.
func (s *Store) load() map[string]bk.ScheduleEntry {
	entries := make(map[string]bk.ScheduleEntry)

	data, err := os.ReadFile(s.schedulePath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("schedule document unreadable, treating as empty", "path", s.schedulePath(), "error", err)
		}
		return entries
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("schedule document corrupt, treating as empty", "path", s.schedulePath(), "error", err)
		return make(map[string]bk.ScheduleEntry)
	}
	return entries
}

func (s *Store) persist(entries map[string]bk.ScheduleEntry) error {
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding schedule document: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating schedule directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".sched-*")
	if err != nil {
		return fmt.Errorf("creating temp schedule: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing schedule document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp schedule: %w", err)
	}

	if err := os.Rename(tmpPath, s.schedulePath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing schedule document: %w", err)
	}
	return nil
}

// Compile-time check that Store implements bk.ScheduleStore.
var _ bk.ScheduleStore = (*Store)(nil)
