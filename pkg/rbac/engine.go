package rbac

import (
	"context"
	"time"

	"github.com/quizdeck/quizdeck/pkg/audit"
	"github.com/quizdeck/quizdeck/pkg/observability"
	"github.com/quizdeck/quizdeck/pkg/plans"
)

// ReasonCode explains a decision outcome. Every denial carries a reason
// specific enough for the caller to render a message without consulting
// anything else.
type ReasonCode string

const (
	ReasonGranted                ReasonCode = "granted"
	ReasonSuperAdmin             ReasonCode = "super_admin"
	ReasonOrgAdminFallback       ReasonCode = "org_admin_fallback"
	ReasonRoleNotAllowed         ReasonCode = "role_not_allowed"
	ReasonPermissionDenied       ReasonCode = "permission_denied"
	ReasonPageDenied             ReasonCode = "page_denied"
	ReasonPlanFeatureUnavailable ReasonCode = "plan_feature_unavailable"
	ReasonComponentFeatureDenied ReasonCode = "component_feature_denied"
)

// Subject is the caller asking for access
type Subject struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

// AccessRequest names the capabilities a caller requires. All fields
// are optional; the engine enforces only the named ones, and all named
// ones must hold.
type AccessRequest struct {
	// RequiredRoles is a coarse allow-list checked before any
	// fine-grained resolution (navigation visibility).
	RequiredRoles []string `json:"required_roles,omitempty"`

	Permission string `json:"permission,omitempty"`
	Page       string `json:"page,omitempty"`

	// ComponentID with an empty FeatureID asks "does the role hold any
	// feature this component exposes".
	ComponentID string `json:"component_id,omitempty"`
	FeatureID   string `json:"feature_id,omitempty"`

	PlanFeature plans.FeatureID `json:"plan_feature,omitempty"`
}

// AccessDecision is the outcome of a decide call
type AccessDecision struct {
	Granted   bool       `json:"granted"`
	Reason    ReasonCode `json:"reason"`
	Detail    string     `json:"detail,omitempty"`
	CheckedAt time.Time  `json:"checked_at"`
}

// PlanGate answers plan-feature availability for a tenant
type PlanGate interface {
	IsEnabledForTenant(ctx context.Context, tenantID string, feature plans.FeatureID) (bool, error)
}

// ComponentRegistry enumerates the feature vocabulary of a component
type ComponentRegistry interface {
	FeaturesFor(componentID string) []string
}

// Engine is the single authorization entry point consulted by every
// protected operation. Decide performs no mutation and is safe for
// arbitrarily many concurrent callers.
type Engine struct {
	catalog  *Catalog
	resolver *Resolver
	gate     PlanGate
	registry ComponentRegistry
	audit    audit.Logger
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// EngineOption configures optional engine collaborators
type EngineOption func(*Engine)

// WithPlanGate wires the plan feature gate
func WithPlanGate(gate PlanGate) EngineOption {
	return func(e *Engine) { e.gate = gate }
}

// WithComponentRegistry wires the component feature registry
func WithComponentRegistry(registry ComponentRegistry) EngineOption {
	return func(e *Engine) { e.registry = registry }
}

// WithAuditLogger wires the audit trail
func WithAuditLogger(logger audit.Logger) EngineOption {
	return func(e *Engine) { e.audit = logger }
}

// WithMetrics wires decision metrics
func WithMetrics(metrics *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = metrics }
}

// NewEngine creates a decision engine
func NewEngine(catalog *Catalog, resolver *Resolver, logger *observability.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:  catalog,
		resolver: resolver,
		audit:    audit.NopLogger{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide evaluates an access request. It never faults on missing
// configuration: unresolved roles deny safely (or trigger the audited
// org_admin fallback). A non-nil error indicates an infrastructure
// failure (store or plan lookup I/O); the accompanying decision is
// still a safe denial.
func (e *Engine) Decide(ctx context.Context, subject Subject, request AccessRequest) (AccessDecision, error) {
	start := time.Now()
	decision, err := e.decide(ctx, subject, request)
	decision.CheckedAt = time.Now()

	if e.metrics != nil {
		e.metrics.ObserveDecision(string(decision.Reason), decision.Granted, time.Since(start))
	}
	if !decision.Granted {
		e.auditDenial(ctx, subject, decision)
	}
	return decision, err
}

func (e *Engine) decide(ctx context.Context, subject Subject, request AccessRequest) (AccessDecision, error) {
	role := NormalizeRoleID(subject.Role)

	// 1. Super-admin bypass.
	if role == RoleSuperAdmin {
		return AccessDecision{Granted: true, Reason: ReasonSuperAdmin}, nil
	}

	// 2. Coarse role allow-list, before any customization lookup.
	if len(request.RequiredRoles) > 0 && !roleAllowed(role, request.RequiredRoles) {
		return AccessDecision{
			Granted: false,
			Reason:  ReasonRoleNotAllowed,
			Detail:  "role " + role + " is not in the allowed list",
		}, nil
	}

	// 3-4. Permission and page checks share one resolution.
	if request.Permission != "" || request.Page != "" {
		effective, err := e.resolver.Resolve(ctx, subject.TenantID, role)
		if err != nil {
			if IsRoleNotFound(err) {
				return e.roleNotFound(ctx, subject, role, request)
			}
			// Store I/O failure: deny safely, surface the error.
			return AccessDecision{
				Granted: false,
				Reason:  denialReason(request),
				Detail:  "authorization data unavailable",
			}, err
		}

		if request.Permission != "" && !effective.Permissions.Has(request.Permission) {
			return AccessDecision{
				Granted: false,
				Reason:  ReasonPermissionDenied,
				Detail:  "missing permission " + request.Permission,
			}, nil
		}
		if request.Page != "" && !effective.Pages.Has(request.Page) {
			return AccessDecision{
				Granted: false,
				Reason:  ReasonPageDenied,
				Detail:  "no access to page " + request.Page,
			}, nil
		}
	}

	// 5. Plan feature gate.
	if request.PlanFeature != "" {
		if e.gate == nil {
			return AccessDecision{
				Granted: false,
				Reason:  ReasonPlanFeatureUnavailable,
				Detail:  "no plan gate configured",
			}, nil
		}
		enabled, err := e.gate.IsEnabledForTenant(ctx, subject.TenantID, request.PlanFeature)
		if err != nil {
			return AccessDecision{
				Granted: false,
				Reason:  ReasonPlanFeatureUnavailable,
				Detail:  "plan lookup failed",
			}, err
		}
		if !enabled {
			return AccessDecision{
				Granted: false,
				Reason:  ReasonPlanFeatureUnavailable,
				Detail:  "plan does not include " + string(request.PlanFeature),
			}, nil
		}
	}

	// 6. Component features are role-intrinsic, never customized.
	if request.ComponentID != "" {
		catalogRole, err := e.catalog.Get(role)
		if err != nil {
			return e.roleNotFound(ctx, subject, role, request)
		}
		if !e.componentAllowed(catalogRole, request.ComponentID, request.FeatureID) {
			detail := "component " + request.ComponentID
			if request.FeatureID != "" {
				detail += " feature " + request.FeatureID
			}
			return AccessDecision{
				Granted: false,
				Reason:  ReasonComponentFeatureDenied,
				Detail:  detail + " not granted to role " + role,
			}, nil
		}
	}

	// 7. Everything named passed (or nothing was named).
	return AccessDecision{Granted: true, Reason: ReasonGranted}, nil
}

// roleNotFound handles an unresolvable role: org_admin gets the audited
// fallback grant, every other role denies safely.
func (e *Engine) roleNotFound(ctx context.Context, subject Subject, role string, request AccessRequest) (AccessDecision, error) {
	if e.metrics != nil {
		e.metrics.RoleNotFoundTotal.Inc()
	}

	if role == RoleOrgAdmin {
		e.auditFallback(ctx, subject, request)
		return AccessDecision{
			Granted: true,
			Reason:  ReasonOrgAdminFallback,
			Detail:  "role catalog entry missing; org_admin safety net applied",
		}, nil
	}

	e.logger.WithFields(map[string]interface{}{
		"role":   role,
		"tenant": subject.TenantID,
	}).Warn("Denying access for unresolvable role")
	return AccessDecision{
		Granted: false,
		Reason:  denialReason(request),
		Detail:  "role not found: " + role,
	}, nil
}

// denialReason picks the reason matching the first check the request
// named, so the caller's error message points at the right capability.
func denialReason(request AccessRequest) ReasonCode {
	switch {
	case request.Permission != "":
		return ReasonPermissionDenied
	case request.Page != "":
		return ReasonPageDenied
	case request.ComponentID != "":
		return ReasonComponentFeatureDenied
	default:
		return ReasonPermissionDenied
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, candidate := range allowed {
		if NormalizeRoleID(candidate) == role {
			return true
		}
	}
	return false
}

// componentAllowed checks the role's intrinsic componentFeatures set.
// With a specific feature the feature must be held; with only a
// component, any feature the registry maps for that component suffices.
func (e *Engine) componentAllowed(role *Role, componentID, featureID string) bool {
	if role.ComponentFeatures.HasWildcard() {
		return true
	}
	if featureID != "" {
		return role.ComponentFeatures.Contains(featureID)
	}
	if e.registry == nil {
		return false
	}
	for _, feature := range e.registry.FeaturesFor(componentID) {
		if role.ComponentFeatures.Contains(feature) {
			return true
		}
	}
	return false
}

// auditFallback records the org_admin safety net firing. The event type
// is distinct so it can be alerted on: the fallback papers over missing
// seed data and every occurrence deserves investigation.
func (e *Engine) auditFallback(ctx context.Context, subject Subject, request AccessRequest) {
	if e.metrics != nil {
		e.metrics.FallbackTotal.WithLabelValues(fallbackCheck(request)).Inc()
	}
	e.logger.WithFields(map[string]interface{}{
		"user":   subject.UserID,
		"tenant": subject.TenantID,
	}).Warn("org_admin fallback fired; role catalog entry missing")

	event := audit.NewEvent(ctx, audit.EventTypeAuthzOrgAdminFallback, audit.EventStatusSuccess)
	event.UserID = subject.UserID
	event.Role = subject.Role
	event.TenantID = subject.TenantID
	event.ResourceType = audit.ResourceTypeRole
	event.ResourceID = RoleOrgAdmin
	event.Message = "access granted via org_admin fallback; role catalog entry missing"
	if err := e.audit.Log(ctx, event); err != nil {
		e.logger.WithError(err).Error("Failed to audit org_admin fallback")
	}
}

func (e *Engine) auditDenial(ctx context.Context, subject Subject, decision AccessDecision) {
	event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied)
	event.UserID = subject.UserID
	event.Role = subject.Role
	event.TenantID = subject.TenantID
	event.ResourceType = audit.ResourceTypePermission
	event.Message = decision.Detail
	event.Metadata = map[string]interface{}{"reason": string(decision.Reason)}
	if err := e.audit.Log(ctx, event); err != nil {
		e.logger.WithError(err).Error("Failed to audit access denial")
	}
}

func fallbackCheck(request AccessRequest) string {
	switch {
	case request.Permission != "":
		return "permission"
	case request.Page != "":
		return "page"
	case request.ComponentID != "":
		return "component"
	default:
		return "other"
	}
}
