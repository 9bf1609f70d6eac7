package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/hrdesk/internal/db/driver"
)

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "hrdesk.db")

	d, err := Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	assert.Equal(t, dbPath, d.Path())
	assert.Equal(t, driver.DialectSQLite, d.Dialect())

	var journalMode string
	require.NoError(t, d.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestMigrate_Idempotent(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Migrate(ctx))

	var count int
	require.NoError(t, d.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count))
	assert.Zero(t, count)
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()
	due := time.Date(2025, 4, 1, 17, 0, 0, 0, time.UTC)

	rows := SnapshotRows{
		Meta: map[string]string{"version": "1"},
		Tasks: []TaskRow{
			{ID: 2, Title: "second", Status: "pending", Priority: "low", Data: []byte(`{"id":2}`)},
			{ID: 1, Title: "first", Status: "completed", Priority: "high", DueDate: &due, Data: []byte(`{"id":1}`)},
		},
		Schedules: []ScheduleRow{
			{ID: "b", ParentTaskID: 2, Active: true, NextDue: due, Data: []byte(`{"id":"b"}`)},
			{ID: "a", ParentTaskID: 1, Active: false, NextDue: due, Data: []byte(`{"id":"a"}`)},
		},
	}
	require.NoError(t, d.ReplaceSnapshot(ctx, rows))

	got, err := d.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", got.Meta["version"])
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, int64(1), got.Tasks[0].ID, "tasks ordered by id")
	assert.JSONEq(t, `{"id":1}`, string(got.Tasks[0].Data))
	require.Len(t, got.Schedules, 2)
	assert.Equal(t, "b", got.Schedules[0].ID, "schedules keep saved order")

	var stored string
	require.NoError(t, d.QueryRowContext(ctx, "SELECT due_date FROM tasks WHERE id = ?", 1).Scan(&stored))
	assert.Equal(t, "2025-04-01T17:00:00Z", stored)
}

func TestReplaceSnapshot_Overwrites(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.ReplaceSnapshot(ctx, SnapshotRows{
		Tasks: []TaskRow{{ID: 1, Title: "a", Status: "pending", Priority: "low", Data: []byte(`{}`)}},
	}))
	require.NoError(t, d.ReplaceSnapshot(ctx, SnapshotRows{
		Tasks: []TaskRow{{ID: 5, Title: "b", Status: "overdue", Priority: "low", Data: []byte(`{}`)}},
	}))

	got, err := d.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, int64(5), got.Tasks[0].ID)

	var status string
	require.NoError(t, d.QueryRowContext(ctx, "SELECT status FROM tasks WHERE id = ?", 5).Scan(&status))
	assert.Equal(t, "overdue", status)
}

func TestReplaceSnapshot_FailureKeepsPreviousState(t *testing.T) {
	d := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.ReplaceSnapshot(ctx, SnapshotRows{
		Tasks: []TaskRow{{ID: 1, Title: "keep", Status: "pending", Priority: "low", Data: []byte(`{}`)}},
	}))

	// Duplicate primary keys abort the transaction.
	err := d.ReplaceSnapshot(ctx, SnapshotRows{
		Tasks: []TaskRow{
			{ID: 2, Title: "x", Status: "pending", Priority: "low", Data: []byte(`{}`)},
			{ID: 2, Title: "y", Status: "pending", Priority: "low", Data: []byte(`{}`)},
		},
	})
	require.Error(t, err)

	got, err := d.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "keep", got.Tasks[0].Title)
}
