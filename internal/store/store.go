package store

import "github.com/HaseMalke174/NoFeds/internal/models"

// SnapshotStore persists the single shared snapshot record in a
// device-local durable store.
type SnapshotStore interface {
	// SaveSnapshot overwrites the snapshot record.
	SaveSnapshot(snap *models.Snapshot) error

	// LoadSnapshot reads the snapshot record. Absent and corrupt
	// records both yield (nil, nil): corruption is treated as no data,
	// never as a fatal condition.
	LoadSnapshot() (*models.Snapshot, error)

	Close() error
}
