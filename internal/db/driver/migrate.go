package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
)

// migrator applies numbered schema files inside one transaction each and
// records them in _migrations.
type migrator struct {
	db          *sql.DB
	dir         string
	createTable string
	record      string
}

func (m migrator) run(ctx context.Context, schema fs.FS, prefix string) error {
	if _, err := m.db.ExecContext(ctx, m.createTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	done, err := m.versions(ctx)
	if err != nil {
		return err
	}

	files, err := fs.Glob(schema, path.Join(m.dir, prefix+"_*.sql"))
	if err != nil {
		return fmt.Errorf("list migrations in %s: %w", m.dir, err)
	}
	slices.Sort(files)

	for _, file := range files {
		name := path.Base(file)
		v := extractVersion(name, prefix+"_")
		if done[v] {
			continue
		}
		body, err := fs.ReadFile(schema, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, m.record, v); err != nil {
				return fmt.Errorf("record migration %s: %w", name, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m migrator) versions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (m migrator) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
