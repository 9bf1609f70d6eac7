package driver

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgres returns an unopened PostgreSQL driver backed by pgx.
func NewPostgres() *Conn {
	return &Conn{flavor: flavor{
		dialect:   DialectPostgres,
		sqlName:   "pgx",
		bind:      func(n int) string { return "$" + strconv.Itoa(n) },
		afterOpen: postgresSetup,
		migrations: migrator{
			dir: "schema/postgres",
			createTable: `CREATE TABLE IF NOT EXISTS _migrations (
				version INTEGER PRIMARY KEY,
				applied_at TIMESTAMPTZ DEFAULT NOW()
			)`,
			record: "INSERT INTO _migrations (version) VALUES ($1)",
		},
	}}
}

// postgresSetup fails Open early when the server is unreachable.
func postgresSetup(db *sql.DB, _ string) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}
