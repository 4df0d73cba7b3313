package tenants

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/quizdeck/quizdeck/pkg/plans"
)

// Tenant is a customer organization on the platform
type Tenant struct {
	ID       string     `json:"id"`
	Slug     string     `json:"slug"`
	Name     string     `json:"name"`
	PlanTier plans.Tier `json:"plan_tier"`
	IsActive bool       `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9-]+`)

// GenerateSlug derives a URL-safe slug from a display name
func GenerateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugPattern.ReplaceAllString(slug, "")
	return strings.Trim(slug, "-")
}

// Validate checks tenant fields before persistence
func (t *Tenant) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if t.Name == "" {
		return fmt.Errorf("tenant name is required")
	}
	if !t.PlanTier.Valid() {
		return fmt.Errorf("unknown plan tier: %s", t.PlanTier)
	}
	return nil
}

// NotFoundError reports a missing tenant
type NotFoundError struct {
	TenantID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tenant not found: %s", e.TenantID)
}

// IsNotFound checks if an error is a tenant not-found error
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
