package driver

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

// NewSQLite returns an unopened SQLite driver. Open(":memory:") gives a
// private database that lives as long as the driver.
func NewSQLite() *Conn {
	return &Conn{flavor: flavor{
		dialect:   DialectSQLite,
		sqlName:   "sqlite",
		bind:      func(int) string { return "?" },
		afterOpen: sqliteSetup,
		migrations: migrator{
			dir: "schema",
			createTable: `CREATE TABLE IF NOT EXISTS _migrations (
				version INTEGER PRIMARY KEY,
				applied_at TEXT DEFAULT (datetime('now'))
			)`,
			record: "INSERT INTO _migrations (version) VALUES (?)",
		},
	}}
}

func sqliteSetup(db *sql.DB, dsn string) error {
	pragmas := "PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"
	if dsn == memoryDSN {
		// each pooled connection would see its own empty database
		db.SetMaxOpenConns(1)
	} else {
		pragmas += " PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;"
	}
	if _, err := db.Exec(pragmas); err != nil {
		return fmt.Errorf("set pragmas: %w", err)
	}
	return nil
}
