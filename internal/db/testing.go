package db

import (
	"context"
	"testing"

	"github.com/randalmurphal/hrdesk/internal/db/driver"
)

// NewTestDB returns a migrated private in-memory SQLite database that is
// closed with the test.
func NewTestDB(t testing.TB) *DB {
	t.Helper()
	d, err := OpenWithDialect(":memory:", driver.DialectSQLite)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return d
}
