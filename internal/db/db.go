// Package db stores hrdesk snapshots in SQL. SQLite is the default engine
// and PostgreSQL is available through pgx; both read the same embedded
// migrations, one directory per dialect.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/randalmurphal/hrdesk/internal/db/driver"
)

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFS embed.FS

// Migration files are named hrdesk_NNN.sql.
const schemaPrefix = "hrdesk"

// DB is an open snapshot database.
type DB struct {
	driver driver.Driver
	dsn    string
}

// Open opens, or creates, the SQLite file at path.
func Open(path string) (*DB, error) {
	return OpenWithDialect(path, driver.DialectSQLite)
}

// OpenWithDialect connects to dsn. For SQLite files the parent directory
// is created first.
func OpenWithDialect(dsn string, dialect driver.Dialect) (*DB, error) {
	drv, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}
	if dialect == driver.DialectSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}
	return &DB{driver: drv, dsn: dsn}, nil
}

func (d *DB) Close() error { return d.driver.Close() }

// Path is the DSN the database was opened with.
func (d *DB) Path() string { return d.dsn }

func (d *DB) Dialect() driver.Dialect { return d.driver.Dialect() }

// Migrate brings the schema up to date.
func (d *DB) Migrate(ctx context.Context) error {
	return d.driver.Migrate(ctx, schemaFS, schemaPrefix)
}

// QueryRowContext runs a single-row query written with ? placeholders.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.driver.QueryRow(ctx, d.bind(query), args...)
}

// ExecContext runs a statement written with ? placeholders.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.driver.Exec(ctx, d.bind(query), args...)
}

func (d *DB) bind(query string) string {
	return driver.Rebind(d.driver, query)
}
