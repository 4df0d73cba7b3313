package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CustomizationStore persists per-tenant role customizations. Get
// returns (nil, nil) when no record exists for the key.
type CustomizationStore interface {
	List(ctx context.Context, tenantID string) ([]*TenantRoleCustomization, error)
	Get(ctx context.Context, tenantID, roleID string) (*TenantRoleCustomization, error)
	Upsert(ctx context.Context, customization *TenantRoleCustomization) error
	Delete(ctx context.Context, tenantID, roleID string) error
}

// SQLStore is the database-backed customization store. Diff sets are
// stored as JSON arrays; each upsert replaces the whole row, so readers
// never observe a half-written customization.
type SQLStore struct {
	db      *sql.DB
	catalog *Catalog
}

// NewSQLStore creates a customization store. The catalog restricts
// writes to customizable roles; a nil catalog skips that check.
func NewSQLStore(db *sql.DB, catalog *Catalog) *SQLStore {
	return &SQLStore{db: db, catalog: catalog}
}

const customizationColumns = `tenant_id, role_id, display_name, permissions_add, permissions_remove,
	pages_add, pages_remove, is_active, created_by, notes, created_at, updated_at`

// List returns all customizations for a tenant, active and inactive
func (s *SQLStore) List(ctx context.Context, tenantID string) ([]*TenantRoleCustomization, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tenant_role_customizations
		WHERE tenant_id = $1
		ORDER BY role_id
	`, customizationColumns)

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customizations: %w", err)
	}
	defer rows.Close()

	var result []*TenantRoleCustomization
	for rows.Next() {
		customization, err := scanCustomization(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, customization)
	}
	return result, rows.Err()
}

// Get returns the customization for (tenantID, roleID), or (nil, nil)
// when none exists. Role ID matching is case-insensitive.
func (s *SQLStore) Get(ctx context.Context, tenantID, roleID string) (*TenantRoleCustomization, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tenant_role_customizations
		WHERE tenant_id = $1 AND role_id = $2
	`, customizationColumns)

	row := s.db.QueryRowContext(ctx, query, tenantID, NormalizeRoleID(roleID))
	customization, err := scanCustomization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return customization, nil
}

// Upsert validates and writes a customization, replacing any existing
// record for the (tenant_id, role_id) key
func (s *SQLStore) Upsert(ctx context.Context, customization *TenantRoleCustomization) error {
	if err := customization.Validate(); err != nil {
		return err
	}

	roleID := NormalizeRoleID(customization.RoleID)
	if s.catalog != nil {
		role, err := s.catalog.Get(roleID)
		if err != nil {
			return err
		}
		if !role.Customizable() {
			return &ValidationError{
				Field:   "role_id",
				Message: fmt.Sprintf("role %s is not customizable", roleID),
			}
		}
	}

	encode := func(set Set) (string, error) {
		if set == nil {
			set = Set{}
		}
		data, err := json.Marshal(set)
		if err != nil {
			return "", fmt.Errorf("failed to marshal customization set: %w", err)
		}
		return string(data), nil
	}

	permsAdd, err := encode(customization.Permissions.Add)
	if err != nil {
		return err
	}
	permsRemove, err := encode(customization.Permissions.Remove)
	if err != nil {
		return err
	}
	pagesAdd, err := encode(customization.Pages.Add)
	if err != nil {
		return err
	}
	pagesRemove, err := encode(customization.Pages.Remove)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `
		INSERT INTO tenant_role_customizations
			(tenant_id, role_id, display_name, permissions_add, permissions_remove,
			 pages_add, pages_remove, is_active, created_by, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (tenant_id, role_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			permissions_add = EXCLUDED.permissions_add,
			permissions_remove = EXCLUDED.permissions_remove,
			pages_add = EXCLUDED.pages_add,
			pages_remove = EXCLUDED.pages_remove,
			is_active = EXCLUDED.is_active,
			created_by = EXCLUDED.created_by,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		customization.TenantID, roleID, customization.DisplayName,
		permsAdd, permsRemove, pagesAdd, pagesRemove,
		customization.IsActive, customization.CreatedBy, customization.Notes,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert customization: %w", err)
	}

	customization.RoleID = roleID
	customization.UpdatedAt = now
	if customization.CreatedAt.IsZero() {
		customization.CreatedAt = now
	}
	return nil
}

// Delete removes the customization for (tenantID, roleID). Deleting a
// missing record is not an error; the effect is visible to the very
// next resolution call.
func (s *SQLStore) Delete(ctx context.Context, tenantID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tenant_role_customizations WHERE tenant_id = $1 AND role_id = $2`,
		tenantID, NormalizeRoleID(roleID))
	if err != nil {
		return fmt.Errorf("failed to delete customization: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomization(row scanner) (*TenantRoleCustomization, error) {
	var c TenantRoleCustomization
	var displayName, createdBy, notes sql.NullString
	var permsAdd, permsRemove, pagesAdd, pagesRemove string

	err := row.Scan(
		&c.TenantID, &c.RoleID, &displayName,
		&permsAdd, &permsRemove, &pagesAdd, &pagesRemove,
		&c.IsActive, &createdBy, &notes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customization: %w", err)
	}

	c.DisplayName = displayName.String
	c.CreatedBy = createdBy.String
	c.Notes = notes.String

	decode := func(data string, target *Set) error {
		if data == "" {
			*target = Set{}
			return nil
		}
		return json.Unmarshal([]byte(data), target)
	}
	if err := decode(permsAdd, &c.Permissions.Add); err != nil {
		return nil, fmt.Errorf("failed to decode permissions add: %w", err)
	}
	if err := decode(permsRemove, &c.Permissions.Remove); err != nil {
		return nil, fmt.Errorf("failed to decode permissions remove: %w", err)
	}
	if err := decode(pagesAdd, &c.Pages.Add); err != nil {
		return nil, fmt.Errorf("failed to decode pages add: %w", err)
	}
	if err := decode(pagesRemove, &c.Pages.Remove); err != nil {
		return nil, fmt.Errorf("failed to decode pages remove: %w", err)
	}
	return &c, nil
}
