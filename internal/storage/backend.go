// Package storage persists task engine snapshots.
//
// The engine treats storage as load-at-start and save-after-mutation. Every
// backend stores the same Snapshot; they differ only in where it lives.
package storage

import (
	"context"
	"time"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/recurrence"
	"github.com/randalmurphal/hrdesk/internal/task"
)

// SchemaVersion is the snapshot layout written by this build.
const SchemaVersion = 1

// Snapshot is the complete persisted state of a task engine.
type Snapshot struct {
	// Version is the schema version. Zero means an untagged snapshot from
	// before versioning and is read as version 1.
	Version int       `yaml:"version" json:"version"`
	SavedAt time.Time `yaml:"saved_at" json:"saved_at"`

	// LastID is the highest task ID ever assigned, so IDs of deleted tasks
	// are not handed out again after a restart.
	LastID int64 `yaml:"last_id" json:"last_id"`

	Tasks     []*task.Task           `yaml:"tasks" json:"tasks"`
	Schedules []*recurrence.Schedule `yaml:"schedules" json:"schedules"`
}

// NewSnapshot returns an empty snapshot at the current schema version.
func NewSnapshot() *Snapshot {
	return &Snapshot{Version: SchemaVersion}
}

// Normalize upgrades an untagged snapshot and rejects newer versions.
func (s *Snapshot) Normalize() error {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Version > SchemaVersion {
		return deskerrors.ErrSchemaVersion(s.Version, SchemaVersion)
	}
	return nil
}

// Backend loads and saves snapshots.
// All implementations must be safe for concurrent access.
type Backend interface {
	// Load returns the stored snapshot, or an empty one when nothing has
	// been saved yet.
	Load(ctx context.Context) (*Snapshot, error)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, s *Snapshot) error
	// Close releases resources.
	Close() error
}
