// Package app is the application layer between the CLI and the backup
// engine: it constructs all components from config, owns the per-run log
// file, and exposes high-level operations on raw string arguments.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bk-go/internal/archive"
	"bk-go/internal/bk"
	"bk-go/internal/checkpoint"
	"bk-go/internal/config"
	"bk-go/internal/encryption"
	"bk-go/internal/fs"
	"bk-go/internal/schedule"
	"bk-go/internal/storage"
	"bk-go/internal/store"
)

// App wires the backup engine together for one CLI invocation.
// The caller must call Close when done.
type App struct {
	cfg       *config.Config
	service   *bk.Service
	scheduler *bk.Scheduler
	schedules bk.ScheduleStore
	logger    bk.Logger
	logFile   *os.File
}

// New creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Full", "Retrieve") and is
// stamped on every log line of the invocation.
func New(cfg *config.Config, operation string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opID := fmt.Sprintf("%s-%s", operation, time.Now().UTC().Format("20060102T150405Z"))
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	encryptor, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	metadata := store.NewJSONStore(filepath.Join(cfg.DataDir, "db.json"), logger)
	checkpoints := checkpoint.NewStore(filepath.Join(cfg.DataDir, "checkpoints"), logger)
	schedules := schedule.NewStore(filepath.Join(cfg.DataDir, "schedule"), logger)
	engine := archive.NewEngine(encryptor, logger)
	storageFor := storage.NewFactory(cfg, logger)

	service := bk.NewService(
		bk.Settings{
			BaseDir:       cfg.BaseDir,
			StorageKind:   cfg.StorageType,
			ArchiveFormat: cfg.ArchiveFormat,
		},
		fs.NewManager(), checkpoints, metadata, engine, storageFor,
		logger, bk.RealClock{}, bk.UUIDGenerator{},
	)
	scheduler := bk.NewScheduler(service, schedules, metadata, logger, bk.RealClock{})

	return &App{
		cfg:       cfg,
		service:   service,
		scheduler: scheduler,
		schedules: schedules,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// RunFull runs a full backup of src, starting a new lineage. When freq
// is non-empty the new lineage is also registered for recurring runs.
func (a *App) RunFull(ctx context.Context, src, freq string) (*bk.BackupRecord, error) {
	var frequency bk.Frequency
	if freq != "" {
		var err error
		if frequency, err = bk.ParseFrequency(freq); err != nil {
			return nil, err
		}
	}

	record, err := a.service.RunBackup(ctx, bk.RunParams{Kind: bk.RecipeFull, SourcePath: src})
	if err != nil {
		return nil, err
	}

	if frequency != "" {
		if err := a.scheduler.Schedule(record.ID, frequency); err != nil {
			return record, fmt.Errorf("backup succeeded but scheduling failed: %w", err)
		}
	}
	return record, nil
}

// RunIncremental runs an incremental backup of src against the lineage id.
func (a *App) RunIncremental(ctx context.Context, id, src string) (*bk.BackupRecord, error) {
	return a.service.RunBackup(ctx, bk.RunParams{Kind: bk.RecipeIncremental, SourcePath: src, BackupID: id})
}

// RunDifferential runs a differential backup of src against the lineage id.
func (a *App) RunDifferential(ctx context.Context, id, src string) (*bk.BackupRecord, error) {
	return a.service.RunBackup(ctx, bk.RunParams{Kind: bk.RecipeDifferential, SourcePath: src, BackupID: id})
}

// Retrieve restores the backup id into destDir and returns the restored path.
func (a *App) Retrieve(ctx context.Context, id, destDir string) (string, error) {
	return a.service.Retrieve(ctx, id, destDir)
}

// List returns all backup records.
func (a *App) List() ([]*bk.BackupRecord, error) {
	return a.service.List()
}

// Delete removes the backup id from storage and metadata.
func (a *App) Delete(ctx context.Context, id string) error {
	return a.service.Delete(ctx, id)
}

// Reconcile repairs drift between metadata and storage.
func (a *App) Reconcile(ctx context.Context) error {
	return a.service.Reconcile(ctx)
}

// ScheduleAdd registers a recurring backup for an existing record.
func (a *App) ScheduleAdd(freq, id string) error {
	frequency, err := bk.ParseFrequency(freq)
	if err != nil {
		return err
	}
	return a.scheduler.Schedule(id, frequency)
}

// ScheduleList returns all schedule entries with their last-run times.
func (a *App) ScheduleList() ([]ScheduleStatus, error) {
	entries, err := a.schedules.Entries()
	if err != nil {
		return nil, err
	}

	statuses := make([]ScheduleStatus, 0, len(entries))
	for _, entry := range entries {
		lastRun, err := a.schedules.LastRun(entry.BackupID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, ScheduleStatus{Entry: entry, LastRun: lastRun})
	}
	return statuses, nil
}

// ScheduleStatus pairs a schedule entry with its run history.
type ScheduleStatus struct {
	Entry   bk.ScheduleEntry
	LastRun time.Time
}

// RunDueSchedules fires every due schedule entry and returns how many fired.
func (a *App) RunDueSchedules(ctx context.Context) (int, error) {
	return a.scheduler.RunDue(ctx)
}

// SetupEncryption generates the age key pair at the configured paths.
func (a *App) SetupEncryption() error {
	enc := encryption.NewAgeEncryptor(a.cfg.Encryption)
	return enc.Setup()
}

// Close releases the invocation's resources.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}
