package tenants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quizdeck/quizdeck/pkg/plans"
)

// Store handles tenant persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new tenant store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tenants table
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			plan_tier TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create tenants table: %w", err)
	}
	return nil
}

// Create inserts a new tenant
func (s *Store) Create(ctx context.Context, tenant *Tenant) error {
	if tenant.Slug == "" {
		tenant.Slug = GenerateSlug(tenant.Name)
	}
	if tenant.PlanTier == "" {
		tenant.PlanTier = plans.TierFree
	}
	tenant.IsActive = true

	if err := tenant.Validate(); err != nil {
		return err
	}

	now := time.Now()
	query := `
		INSERT INTO tenants (id, slug, name, plan_tier, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		tenant.ID, tenant.Slug, tenant.Name, string(tenant.PlanTier), tenant.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	return nil
}

// Get retrieves a tenant by ID
func (s *Store) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.getBy(ctx, "id", id)
}

// GetBySlug retrieves a tenant by slug
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return s.getBy(ctx, "slug", slug)
}

func (s *Store) getBy(ctx context.Context, column, value string) (*Tenant, error) {
	query := fmt.Sprintf(`
		SELECT id, slug, name, plan_tier, is_active, created_at, updated_at
		FROM tenants
		WHERE %s = $1
	`, column)

	var tenant Tenant
	var tier string
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&tenant.ID, &tenant.Slug, &tenant.Name, &tier,
		&tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{TenantID: value}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	tenant.PlanTier = plans.Tier(tier)
	return &tenant, nil
}

// List returns all tenants, active first, newest within each group
func (s *Store) List(ctx context.Context) ([]*Tenant, error) {
	query := `
		SELECT id, slug, name, plan_tier, is_active, created_at, updated_at
		FROM tenants
		ORDER BY is_active DESC, created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var result []*Tenant
	for rows.Next() {
		var tenant Tenant
		var tier string
		if err := rows.Scan(&tenant.ID, &tenant.Slug, &tenant.Name, &tier,
			&tenant.IsActive, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenant.PlanTier = plans.Tier(tier)
		result = append(result, &tenant)
	}
	return result, rows.Err()
}

// UpdatePlan changes a tenant's subscription tier
func (s *Store) UpdatePlan(ctx context.Context, id string, tier plans.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown plan tier: %s", tier)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET plan_tier = $1, updated_at = $2 WHERE id = $3`,
		string(tier), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update tenant plan: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &NotFoundError{TenantID: id}
	}
	return nil
}

// Deactivate marks a tenant inactive without deleting its data
func (s *Store) Deactivate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET is_active = FALSE, updated_at = $1 WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate tenant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &NotFoundError{TenantID: id}
	}
	return nil
}

// PlanTier resolves a tenant's active plan tier. Inactive tenants
// resolve like active ones; suspension is enforced upstream.
func (s *Store) PlanTier(ctx context.Context, tenantID string) (plans.Tier, error) {
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_tier FROM tenants WHERE id = $1`, tenantID).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", &NotFoundError{TenantID: tenantID}
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve tenant plan: %w", err)
	}
	return plans.Tier(tier), nil
}
