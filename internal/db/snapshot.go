package db

import (
	"context"
	"fmt"
	"time"
)

// TaskRow is one persisted task. Data holds the full JSON record; the other
// columns are copies kept for ad-hoc SQL queries.
type TaskRow struct {
	ID       int64
	Title    string
	Status   string
	Priority string
	DueDate  *time.Time
	Data     []byte
}

// ScheduleRow is one persisted recurring schedule.
type ScheduleRow struct {
	ID           string
	ParentTaskID int64
	Active       bool
	NextDue      time.Time
	Data         []byte
}

// SnapshotRows is the full persisted state.
type SnapshotRows struct {
	Meta      map[string]string
	Tasks     []TaskRow
	Schedules []ScheduleRow
}

// ReplaceSnapshot overwrites the stored state in a single transaction.
func (d *DB) ReplaceSnapshot(ctx context.Context, rows SnapshotRows) error {
	tx, err := d.driver.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	exec := func(query string, args ...any) error {
		_, err := tx.Exec(ctx, d.bind(query), args...)
		return err
	}

	for _, table := range []string{"snapshot_meta", "tasks", "schedules"} {
		if err := exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for k, v := range rows.Meta {
		if err := exec("INSERT INTO snapshot_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	for _, t := range rows.Tasks {
		var due any
		if t.DueDate != nil {
			due = t.DueDate.UTC().Format(time.RFC3339Nano)
		}
		if err := exec(
			"INSERT INTO tasks (id, title, status, priority, due_date, data) VALUES (?, ?, ?, ?, ?, ?)",
			t.ID, t.Title, t.Status, t.Priority, due, string(t.Data),
		); err != nil {
			return fmt.Errorf("insert task %d: %w", t.ID, err)
		}
	}

	for i, s := range rows.Schedules {
		if err := exec(
			"INSERT INTO schedules (id, position, parent_task_id, is_active, next_due, data) VALUES (?, ?, ?, ?, ?, ?)",
			s.ID, i, s.ParentTaskID, s.Active, s.NextDue.UTC().Format(time.RFC3339Nano), string(s.Data),
		); err != nil {
			return fmt.Errorf("insert schedule %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored state. Tasks come back ordered by ID and
// schedules in the order they were saved.
func (d *DB) LoadSnapshot(ctx context.Context) (*SnapshotRows, error) {
	out := &SnapshotRows{Meta: make(map[string]string)}

	rows, err := d.driver.Query(ctx, "SELECT key, value FROM snapshot_meta")
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		out.Meta[k] = v
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterate meta: %w", err)
	}

	rows, err = d.driver.Query(ctx, "SELECT id, title, status, priority, data FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	for rows.Next() {
		var t TaskRow
		var data string
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.Priority, &data); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Data = []byte(data)
		out.Tasks = append(out.Tasks, t)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	rows, err = d.driver.Query(ctx, "SELECT id, parent_task_id, data FROM schedules ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	for rows.Next() {
		var s ScheduleRow
		var data string
		if err := rows.Scan(&s.ID, &s.ParentTaskID, &data); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		s.Data = []byte(data)
		out.Schedules = append(out.Schedules, s)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}

	return out, nil
}

type rowsCloser interface {
	Err() error
	Close() error
}

func closeRows(rows rowsCloser) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}
