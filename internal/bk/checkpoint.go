package bk

// CheckpointStore persists the file-state snapshot recorded at the end of
// a backup run, keyed by the lineage's backup identifier. A checkpoint is
// the diff baseline for the next run of the same lineage.
type CheckpointStore interface {
	// Load returns the checkpoint for id. A missing or unreadable
	// checkpoint yields an empty state, never an error: the run then
	// behaves like a first run.
	Load(id string) (FileState, error)

	// Save atomically replaces the checkpoint for id. Consumers must
	// never observe a partially written checkpoint.
	Save(id string, state FileState) error

	// Path returns the location where the checkpoint for id is kept,
	// recorded in BackupRecords for provenance.
	Path(id string) string
}
