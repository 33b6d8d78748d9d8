package bk

// TimestampLayout is the format of BackupRecord.Timestamp and of the
// generated staging directory names.
const TimestampLayout = "20060102150405"

// BackupRecord is the provenance entry written once per completed run.
// Records are immutable after creation except for deletion. The JSON tags
// fix the on-disk document shape; changing them breaks existing stores.
type BackupRecord struct {
	ID             string     `json:"-"`
	ArchiveFormat  string     `json:"archive_format"`
	Kind           RecipeKind `json:"backup_type"`
	ArchivePath    string     `json:"archive_path"`
	StorageKind    string     `json:"storage_type"`
	Timestamp      string     `json:"timestamp"`
	SourcePath     string     `json:"src"`
	CheckpointPath string     `json:"log_file"`
	BaseDir        string     `json:"base_dir"`
	StagingDirName string     `json:"dest_dir"`
}

// MetadataStore owns the persisted mapping from backup id to record.
// Every call rewrites the whole backing document, so operations are O(n)
// but the document is always valid JSON after a write.
type MetadataStore interface {
	// Save adds a record. The record's ID must be unique.
	Save(record *BackupRecord) error

	// List returns all records ordered by timestamp, then id.
	List() ([]*BackupRecord, error)

	// Get returns the record for id, or an error wrapping ErrNotFound.
	Get(id string) (*BackupRecord, error)

	// Delete removes the record for id. Deleting an absent id is a no-op.
	Delete(id string) error
}
