package plans

import (
	"context"
	"fmt"
	"sync"
)

// TenantPlanLookup resolves a tenant to its active plan tier
type TenantPlanLookup interface {
	PlanTier(ctx context.Context, tenantID string) (Tier, error)
}

// Gate answers plan-feature availability questions
type Gate struct {
	mu     sync.RWMutex
	plans  map[Tier]*Plan
	lookup TenantPlanLookup
}

// NewGate creates a feature gate over the given plan catalog. A nil
// catalog uses the built-in defaults.
func NewGate(catalog map[Tier]*Plan, lookup TenantPlanLookup) *Gate {
	if catalog == nil {
		catalog = DefaultPlans()
	}
	return &Gate{plans: catalog, lookup: lookup}
}

// Plan returns the plan for a tier, or nil for an unknown tier
func (g *Gate) Plan(tier Tier) *Plan {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.plans[tier]
}

// IsEnabled reports whether the plan includes the feature. Unknown
// tiers have no features.
func (g *Gate) IsEnabled(tier Tier, feature FeatureID) bool {
	plan := g.Plan(tier)
	if plan == nil {
		return false
	}
	return plan.HasFeature(feature)
}

// IsEnabledForTenant resolves the tenant's plan and checks the feature.
// Lookup failures return an error so callers can distinguish "feature
// not in plan" from "could not determine the plan".
func (g *Gate) IsEnabledForTenant(ctx context.Context, tenantID string, feature FeatureID) (bool, error) {
	if g.lookup == nil {
		return false, fmt.Errorf("no tenant plan lookup configured")
	}
	tier, err := g.lookup.PlanTier(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve plan for tenant %s: %w", tenantID, err)
	}
	return g.IsEnabled(tier, feature), nil
}

// CheckLimit verifies current usage against a named plan limit
func (g *Gate) CheckLimit(tier Tier, resource string, current int) error {
	plan := g.Plan(tier)
	if plan == nil {
		return fmt.Errorf("unknown plan tier: %s", tier)
	}

	var limit int
	switch resource {
	case "users":
		limit = plan.MaxUsers
	case "tournaments":
		limit = plan.MaxTournaments
	case "questions_per_tournament":
		limit = plan.MaxQuestionsPerTournament
	default:
		return fmt.Errorf("unknown plan resource: %s", resource)
	}

	if !WithinLimit(current, limit) {
		return &LimitExceededError{Resource: resource, Current: current, Limit: limit}
	}
	return nil
}

// SetPlan replaces or adds a plan in the catalog
func (g *Gate) SetPlan(plan *Plan) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.plans[plan.Tier] = plan
}
