package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/randalmurphal/hrdesk/internal/db"
	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/recurrence"
	"github.com/randalmurphal/hrdesk/internal/task"
)

const (
	metaVersion = "version"
	metaSavedAt = "saved_at"
	metaLastID  = "last_id"
)

// DatabaseBackend stores snapshots in SQLite or PostgreSQL, one row per task
// and schedule. Each save replaces the stored rows in one transaction.
type DatabaseBackend struct {
	db *db.DB
}

// NewDatabaseBackend wraps an open database and applies migrations.
func NewDatabaseBackend(ctx context.Context, d *db.DB) (*DatabaseBackend, error) {
	if err := d.Migrate(ctx); err != nil {
		return nil, deskerrors.ErrPersistenceFailure("migrate", err)
	}
	return &DatabaseBackend{db: d}, nil
}

// DB returns the underlying database for direct access.
func (b *DatabaseBackend) DB() *db.DB {
	return b.db
}

// Load reads every stored row back into a snapshot.
func (b *DatabaseBackend) Load(ctx context.Context) (*Snapshot, error) {
	rows, err := b.db.LoadSnapshot(ctx)
	if err != nil {
		return nil, deskerrors.ErrPersistenceFailure("load", err)
	}

	s := NewSnapshot()
	if len(rows.Meta) == 0 && len(rows.Tasks) == 0 {
		return s, nil
	}

	s.Version, _ = strconv.Atoi(rows.Meta[metaVersion])
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	if v, ok := rows.Meta[metaSavedAt]; ok {
		s.SavedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	s.LastID, _ = strconv.ParseInt(rows.Meta[metaLastID], 10, 64)

	for _, r := range rows.Tasks {
		var t task.Task
		if err := json.Unmarshal(r.Data, &t); err != nil {
			return nil, deskerrors.ErrPersistenceFailure("load", fmt.Errorf("task %d: %w", r.ID, err))
		}
		s.Tasks = append(s.Tasks, &t)
	}
	for _, r := range rows.Schedules {
		var sc recurrence.Schedule
		if err := json.Unmarshal(r.Data, &sc); err != nil {
			return nil, deskerrors.ErrPersistenceFailure("load", fmt.Errorf("schedule %s: %w", r.ID, err))
		}
		s.Schedules = append(s.Schedules, &sc)
	}
	return s, nil
}

// Save replaces the stored rows with s.
func (b *DatabaseBackend) Save(ctx context.Context, s *Snapshot) error {
	rows := db.SnapshotRows{
		Meta: map[string]string{
			metaVersion: strconv.Itoa(SchemaVersion),
			metaSavedAt: s.SavedAt.UTC().Format(time.RFC3339Nano),
			metaLastID:  strconv.FormatInt(s.LastID, 10),
		},
	}

	for _, t := range s.Tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return deskerrors.ErrPersistenceFailure("save", fmt.Errorf("task %d: %w", t.ID, err))
		}
		rows.Tasks = append(rows.Tasks, db.TaskRow{
			ID:       t.ID,
			Title:    t.Title,
			Status:   string(t.Status),
			Priority: string(t.Priority),
			DueDate:  t.DueDate,
			Data:     data,
		})
	}
	for _, sc := range s.Schedules {
		data, err := json.Marshal(sc)
		if err != nil {
			return deskerrors.ErrPersistenceFailure("save", fmt.Errorf("schedule %s: %w", sc.ID, err))
		}
		rows.Schedules = append(rows.Schedules, db.ScheduleRow{
			ID:           sc.ID,
			ParentTaskID: sc.ParentTaskID,
			Active:       sc.IsActive,
			NextDue:      sc.NextDue,
			Data:         data,
		})
	}

	if err := b.db.ReplaceSnapshot(ctx, rows); err != nil {
		return deskerrors.ErrPersistenceFailure("save", err)
	}
	return nil
}

// Close closes the database.
func (b *DatabaseBackend) Close() error {
	return b.db.Close()
}
