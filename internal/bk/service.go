package bk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/im7mortal/kmutex"
)

// Settings are the run defaults a Service applies to new backups.
// Retrieval and deletion of existing backups always use the values
// recorded with the backup, not these.
type Settings struct {
	BaseDir       string
	StorageKind   string
	ArchiveFormat string
}

// Service coordinates a backup run end to end: checkpoint load, scan,
// recipe planning, staging copy, checkpoint persist, archive and record.
// Runs against the same backup lineage are serialized with a keyed mutex,
// so at most one mutation of a lineage's checkpoint and records is in
// flight at a time.
type Service struct {
	settings    Settings
	fsmgr       Filesystem
	checkpoints CheckpointStore
	metadata    MetadataStore
	archiver    Archiver
	storageFor  StorageFactory
	locks       *kmutex.Kmutex
	logger      Logger
	clock       Clock
	idgen       IDGenerator
}

// NewService creates a Service with the provided dependencies.
func NewService(settings Settings, fsmgr Filesystem, checkpoints CheckpointStore, metadata MetadataStore, archiver Archiver, storageFor StorageFactory, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		settings:    settings,
		fsmgr:       fsmgr,
		checkpoints: checkpoints,
		metadata:    metadata,
		archiver:    archiver,
		storageFor:  storageFor,
		locks:       kmutex.New(),
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
	}
}

// RunParams select the recipe and lineage for one backup run.
// BackupID names the lineage whose checkpoint the run diffs against and
// updates; when empty a new lineage is started (the usual case for full
// backups) and the run's record id doubles as the lineage id.
type RunParams struct {
	Kind       RecipeKind
	SourcePath string
	BackupID   string
}

// RunBackup executes one backup run and returns the record written for
// it. The staging directory is left on disk after any failure past its
// creation, for diagnosis. Cancellation is honored between staged copies
// and leaves the lineage checkpoint unwritten.
func (s *Service) RunBackup(ctx context.Context, p RunParams) (*BackupRecord, error) {
	recipe, err := NewRecipe(p.Kind)
	if err != nil {
		return nil, err
	}

	src, err := filepath.Abs(p.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("resolving source path: %w", err)
	}

	recordID := s.idgen.New()
	lineage := p.BackupID
	if lineage == "" {
		lineage = recordID
	}

	s.locks.Lock(lineage)
	defer s.locks.Unlock(lineage)

	previous, err := s.checkpoints.Load(lineage)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}

	current, err := s.fsmgr.Scan(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", src, err)
	}

	plan := recipe.Plan(previous, current)

	timestamp := s.clock.Now().Format(TimestampLayout)
	stagingName := "backup_" + timestamp
	stagingDir := filepath.Join(s.settings.BaseDir, stagingName)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	if err := s.stage(ctx, src, stagingDir, plan.Stage); err != nil {
		s.logger.Error("staging failed, directory left for diagnosis", "staging_dir", stagingDir, "error", err)
		return nil, err
	}

	if err := s.checkpoints.Save(lineage, plan.Checkpoint); err != nil {
		return nil, fmt.Errorf("persisting checkpoint: %w", err)
	}

	storage, err := s.storageFor(s.settings.StorageKind)
	if err != nil {
		return nil, err
	}

	handle, err := s.archiver.Archive(ctx, stagingDir, stagingName, s.settings.ArchiveFormat, storage)
	if err != nil {
		return nil, fmt.Errorf("archiving %s: %w", stagingDir, err)
	}

	record := &BackupRecord{
		ID:             recordID,
		ArchiveFormat:  s.settings.ArchiveFormat,
		Kind:           p.Kind,
		ArchivePath:    string(handle),
		StorageKind:    storage.Kind(),
		Timestamp:      timestamp,
		SourcePath:     src,
		CheckpointPath: s.checkpoints.Path(lineage),
		BaseDir:        s.settings.BaseDir,
		StagingDirName: stagingName,
	}
	if err := s.metadata.Save(record); err != nil {
		return nil, fmt.Errorf("recording backup: %w", err)
	}

	s.logger.Info("backup complete",
		"backup_id", recordID, "kind", p.Kind, "staged", len(plan.Stage), "archive", handle)
	return record, nil
}

// stage copies the selected paths into the staging directory, keeping
// their locations relative to src. Directories are copied with their
// whole subtree. The first copy failure aborts the run.
func (s *Service) stage(ctx context.Context, src, stagingDir string, paths []string) error {
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		target := filepath.Join(stagingDir, rel)

		info, err := s.fsmgr.Lstat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			err = s.fsmgr.CopyTree(path, target)
		} else {
			err = s.fsmgr.CopyFile(path, target)
		}
		if err != nil {
			return fmt.Errorf("copying %s: %w", path, err)
		}
		s.logger.Debug("staged", "path", rel)
	}
	return nil
}

// Retrieve restores the archive recorded under id into
// destDir/<staging dir name>, using the storage kind and format recorded
// with the backup.
func (s *Service) Retrieve(ctx context.Context, id, destDir string) (string, error) {
	record, err := s.metadata.Get(id)
	if err != nil {
		return "", err
	}

	storage, err := s.storageFor(record.StorageKind)
	if err != nil {
		return "", err
	}

	destPath := filepath.Join(destDir, record.StagingDirName)
	if err := s.archiver.Restore(ctx, Handle(record.ArchivePath), record.ArchiveFormat, storage, destPath); err != nil {
		return "", fmt.Errorf("restoring backup %s: %w", id, err)
	}

	s.logger.Info("backup retrieved", "backup_id", id, "dest", destPath)
	return destPath, nil
}

// Delete removes the archive behind id from its storage backend and then
// drops the metadata record. An already-gone archive does not block the
// record deletion.
func (s *Service) Delete(ctx context.Context, id string) error {
	record, err := s.metadata.Get(id)
	if err != nil {
		return err
	}

	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	storage, err := s.storageFor(record.StorageKind)
	if err != nil {
		return err
	}

	if err := storage.Delete(ctx, Handle(record.ArchivePath)); err != nil {
		return fmt.Errorf("deleting archive for %s: %w", id, err)
	}

	if err := s.metadata.Delete(id); err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}

	s.logger.Info("backup deleted", "backup_id", id)
	return nil
}

// List returns all backup records.
func (s *Service) List() ([]*BackupRecord, error) {
	return s.metadata.List()
}

// Get returns the record for id.
func (s *Service) Get(id string) (*BackupRecord, error) {
	return s.metadata.Get(id)
}

// Reconcile cross-checks every metadata record against its storage
// backend and repairs drift. Local records whose archive is gone are
// dropped; local archives that are still present are deleted from disk (a
// verify-then-clean pass, the record survives). Remote records whose
// archive is gone are dropped; present remote archives are left alone.
// Per-record failures are logged and do not stop the pass.
func (s *Service) Reconcile(ctx context.Context) error {
	records, err := s.metadata.List()
	if err != nil {
		return err
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		storage, err := s.storageFor(record.StorageKind)
		if err != nil {
			s.logger.Error("reconcile: unusable storage kind", "backup_id", record.ID, "storage_type", record.StorageKind, "error", err)
			continue
		}

		present, err := storage.Exists(ctx, Handle(record.ArchivePath))
		if err != nil {
			s.logger.Error("reconcile: existence check failed", "backup_id", record.ID, "error", err)
			continue
		}

		switch {
		case !present:
			s.logger.Info("reconcile: archive missing, dropping record", "backup_id", record.ID)
			if err := s.metadata.Delete(record.ID); err != nil {
				s.logger.Error("reconcile: dropping record failed", "backup_id", record.ID, "error", err)
			}
		case record.StorageKind == StorageLocal:
			s.logger.Info("reconcile: local archive verified, cleaning up", "backup_id", record.ID)
			if err := storage.Delete(ctx, Handle(record.ArchivePath)); err != nil {
				s.logger.Error("reconcile: archive cleanup failed", "backup_id", record.ID, "error", err)
			}
		}
	}
	return nil
}
