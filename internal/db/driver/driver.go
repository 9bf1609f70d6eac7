// Package driver hides the differences between the SQL engines hrdesk can
// persist to. Callers write queries once with ? placeholders and run them
// through Rebind.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// Dialect names a SQL engine.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Driver is one open connection pool plus the dialect rules that go with it.
type Driver interface {
	Open(dsn string) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)

	// Migrate applies the pending {prefix}_NNN.sql files for this dialect.
	Migrate(ctx context.Context, schema fs.FS, prefix string) error

	Dialect() Dialect
	// Placeholder renders the n-th bind parameter, counting from 1.
	Placeholder(n int) string
	DB() *sql.DB
}

// Tx is an open transaction.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

// flavor holds everything that varies between dialects.
type flavor struct {
	dialect    Dialect
	sqlName    string
	bind       func(n int) string
	afterOpen  func(db *sql.DB, dsn string) error
	migrations migrator
}

// Conn is the Driver implementation shared by every dialect.
type Conn struct {
	flavor flavor
	db     *sql.DB
}

// New returns an unopened driver for dialect.
func New(dialect Dialect) (Driver, error) {
	switch dialect {
	case DialectSQLite:
		return NewSQLite(), nil
	case DialectPostgres:
		return NewPostgres(), nil
	}
	return nil, fmt.Errorf("unsupported dialect: %s", dialect)
}

// ParseDialect accepts the common spellings of each engine name.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unknown dialect: %q", s)
}

// Open connects and runs the dialect's connection setup.
func (c *Conn) Open(dsn string) error {
	db, err := sql.Open(c.flavor.sqlName, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.flavor.dialect, err)
	}
	if c.flavor.afterOpen != nil {
		if err := c.flavor.afterOpen(db, dsn); err != nil {
			_ = db.Close()
			return err
		}
	}
	c.db = db
	return nil
}

// Close is safe on a driver that was never opened.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return txConn{tx}, nil
}

func (c *Conn) Migrate(ctx context.Context, schema fs.FS, prefix string) error {
	m := c.flavor.migrations
	m.db = c.db
	return m.run(ctx, schema, prefix)
}

func (c *Conn) Dialect() Dialect { return c.flavor.dialect }
func (c *Conn) Placeholder(n int) string { return c.flavor.bind(n) }
func (c *Conn) DB() *sql.DB { return c.db }

// Rebind rewrites ? placeholders into d's syntax.
func Rebind(d Driver, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	parts := strings.Split(query, "?")
	var b strings.Builder
	b.WriteString(parts[0])
	for i, p := range parts[1:] {
		b.WriteString(d.Placeholder(i + 1))
		b.WriteString(p)
	}
	return b.String()
}

type txConn struct{ *sql.Tx }

func (t txConn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.ExecContext(ctx, query, args...)
}

func (t txConn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.QueryContext(ctx, query, args...)
}

func (t txConn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.QueryRowContext(ctx, query, args...)
}

// extractVersion reads NNN out of {prefix}NNN.sql. Unparseable names are 0.
func extractVersion(name, prefix string) int {
	v, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".sql"))
	return v
}
