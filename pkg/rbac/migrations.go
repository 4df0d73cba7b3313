package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all authorization schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenant_role_customizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenant_role_customizations (
					tenant_id TEXT NOT NULL,
					role_id TEXT NOT NULL,
					display_name TEXT,
					permissions_add TEXT NOT NULL DEFAULT '[]',
					permissions_remove TEXT NOT NULL DEFAULT '[]',
					pages_add TEXT NOT NULL DEFAULT '[]',
					pages_remove TEXT NOT NULL DEFAULT '[]',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_by TEXT,
					notes TEXT,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL,
					PRIMARY KEY (tenant_id, role_id)
				);
			`,
		},
		{
			Version:     2,
			Description: "Index customizations by tenant",
			SQL: `
				CREATE INDEX IF NOT EXISTS idx_customizations_tenant_id
					ON tenant_role_customizations(tenant_id);
			`,
		},
	}
}

// RunMigrations applies pending migrations in version order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS authz_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM authz_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		_, err = db.ExecContext(ctx,
			"INSERT INTO authz_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
			migration.Version, migration.Description, time.Now())
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
