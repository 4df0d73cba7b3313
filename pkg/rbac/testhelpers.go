package rbac

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/quizdeck/quizdeck/pkg/observability"
)

// NewTestDB opens an in-memory SQLite database with the authorization
// schema applied. The sqlite3 driver must be imported by the test
// package.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// NewTestCatalog returns a catalog seeded with the default roles
func NewTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	return NewCatalog(DefaultRoles())
}

// NewTestLogger returns a logger that discards output
func NewTestLogger(t *testing.T) *observability.Logger {
	t.Helper()
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}
