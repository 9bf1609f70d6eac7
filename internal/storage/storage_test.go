package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/hrdesk/internal/config"
	"github.com/randalmurphal/hrdesk/internal/db"
	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
	"github.com/randalmurphal/hrdesk/internal/recurrence"
	"github.com/randalmurphal/hrdesk/internal/task"
)

var saved = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func sampleSnapshot() *Snapshot {
	due := saved.AddDate(0, 0, 3)
	onboarding := task.New(1, task.Draft{
		Title:      "Prepare onboarding pack",
		Priority:   task.PriorityHigh,
		AssignedTo: []string{"ana", "li"},
		DueDate:    &due,
		Tags:       []string{"onboarding"},
		Department: "People Ops",
	}, saved)
	onboarding.Dependents = []int64{2}

	laptop := task.New(2, task.Draft{Title: "Order laptop"}, saved)
	laptop.Dependencies = []int64{1}

	return &Snapshot{
		Version: SchemaVersion,
		SavedAt: saved,
		LastID:  4,
		Tasks:   []*task.Task{onboarding, laptop},
		Schedules: []*recurrence.Schedule{{
			ID:               "s-1",
			ParentTaskID:     1,
			Type:             task.RecurWeekly,
			Interval:         1,
			NextDue:          due.AddDate(0, 0, 7),
			IsActive:         true,
			CreatedInstances: []int64{3, 4},
			Template:         task.Draft{Title: "Prepare onboarding pack", Priority: task.PriorityHigh},
			CreatedAt:        saved,
		}},
	}
}

// roundTrip saves the sample snapshot through b and checks it loads back.
func roundTrip(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	empty, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, empty.Version)
	assert.Empty(t, empty.Tasks)

	want := sampleSnapshot()
	require.NoError(t, b.Save(ctx, want))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A second save replaces rather than appends.
	want.Tasks = want.Tasks[:1]
	want.Tasks[0].Dependents = nil
	want.Schedules = []*recurrence.Schedule{}
	require.NoError(t, b.Save(ctx, want))

	got, err = b.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Empty(t, got.Schedules)
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend()
	roundTrip(t, b)
	assert.Equal(t, 2, b.Saves())
}

func TestMemoryBackend_SaveIsolated(t *testing.T) {
	b := NewMemoryBackend()
	s := sampleSnapshot()
	require.NoError(t, b.Save(context.Background(), s))

	s.Tasks[0].Title = "changed after save"
	got, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Prepare onboarding pack", got.Tasks[0].Title)
}

func TestFileBackend_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "tasks.json")
	b := NewFileBackend(path)
	assert.Equal(t, FormatJSON, b.format)
	roundTrip(t, b)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileBackend_YAML(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "tasks.yaml"))
	assert.Equal(t, FormatYAML, b.format)
	roundTrip(t, b)
}

func TestFileBackend_Versions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{"untagged json", "a.json", `{"tasks":[{"id":3,"title":"x","priority":"low","status":"pending"}]}`, nil},
		{"untagged yaml", "a.yaml", "tasks:\n  - id: 3\n    title: x\n", nil},
		{"newer json", "b.json", `{"version":2,"tasks":[{"id":"not-a-number"}]}`, deskerrors.ErrSchemaUnsupported},
		{"newer yaml", "b.yml", "version: 9\n", deskerrors.ErrSchemaUnsupported},
		{"corrupt json", "c.json", `{"version":1,`, deskerrors.ErrPersistence},
		{"corrupt yaml", "c.yaml", "version: [1\n", deskerrors.ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			s, err := NewFileBackend(path).Load(ctx)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, s.Version)
			require.Len(t, s.Tasks, 1)
			assert.Equal(t, int64(3), s.Tasks[0].ID)
		})
	}
}

func TestFileBackend_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	// The parent "directory" is a regular file.
	err := NewFileBackend(filepath.Join(blocker, "tasks.json")).Save(context.Background(), sampleSnapshot())
	require.Error(t, err)
	assert.True(t, errors.Is(err, deskerrors.ErrPersistence))
}

func TestDatabaseBackend(t *testing.T) {
	b, err := NewDatabaseBackend(context.Background(), db.NewTestDB(t))
	require.NoError(t, err)
	roundTrip(t, b)

	var n int
	require.NoError(t, b.DB().QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM tasks WHERE status = ?", "pending").Scan(&n))
	assert.Equal(t, 1, n, "one row per task")
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewRedisBackend(client, "")
	roundTrip(t, b)

	assert.True(t, mr.Exists(DefaultRedisKey))
	assert.Equal(t, "1", mr.HGet(DefaultRedisKey+":meta", "tasks"))

	// Not owned: Close leaves the client usable.
	require.NoError(t, b.Close())
	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestRedisBackend_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := DialRedis(context.Background(), &redis.Options{Addr: mr.Addr()}, "k")
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	mr.Close()
	err = b.Save(context.Background(), sampleSnapshot())
	assert.True(t, errors.Is(err, deskerrors.ErrPersistence))
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  config.StorageConfig
		want any
	}{
		{"memory", config.StorageConfig{Driver: config.DriverMemory}, &MemoryBackend{}},
		{"file", config.StorageConfig{Driver: config.DriverFile, Path: filepath.Join(dir, "t.json")}, &FileBackend{}},
		{"sqlite", config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(dir, "t.db")}, &DatabaseBackend{}},
		{"redis", config.StorageConfig{Driver: config.DriverRedis, Redis: config.RedisConfig{Addr: mr.Addr()}}, &RedisBackend{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(ctx, tt.cfg)
			require.NoError(t, err)
			defer func() { _ = b.Close() }()
			assert.IsType(t, tt.want, b)

			require.NoError(t, b.Save(ctx, sampleSnapshot()))
			got, err := b.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got.Tasks, 2)
		})
	}

	_, err := NewBackend(ctx, config.StorageConfig{Driver: "tape"})
	assert.True(t, errors.Is(err, deskerrors.ErrConfig))
}

func TestFlakyBackend(t *testing.T) {
	b := NewFlakyBackend()
	ctx := context.Background()

	b.SetFailing(true)
	err := b.Save(ctx, sampleSnapshot())
	assert.True(t, errors.Is(err, deskerrors.ErrPersistence))
	assert.Equal(t, 1, b.Failures())

	b.SetFailing(false)
	require.NoError(t, b.Save(ctx, sampleSnapshot()))
	assert.Equal(t, 1, b.Saves())
}
