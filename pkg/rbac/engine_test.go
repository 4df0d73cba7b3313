package rbac

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/quizdeck/quizdeck/pkg/audit"
	"github.com/quizdeck/quizdeck/pkg/plans"
)

// recordingAuditLogger captures events for assertions
type recordingAuditLogger struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAuditLogger) Log(ctx context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAuditLogger) Close() error { return nil }

func (r *recordingAuditLogger) byType(eventType audit.EventType) []*audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*audit.Event
	for _, e := range r.events {
		if e.EventType == eventType {
			result = append(result, e)
		}
	}
	return result
}

// fakeGate is a PlanGate returning canned answers
type fakeGate struct {
	enabled map[plans.FeatureID]bool
	err     error
}

func (f *fakeGate) IsEnabledForTenant(ctx context.Context, tenantID string, feature plans.FeatureID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.enabled[feature], nil
}

// fakeRegistry maps one component to a fixed feature list
type fakeRegistry struct {
	features map[string][]string
}

func (f *fakeRegistry) FeaturesFor(componentID string) []string {
	return f.features[componentID]
}

func newTestEngine(t *testing.T, store CustomizationStore, opts ...EngineOption) *Engine {
	t.Helper()
	catalog := NewTestCatalog(t)
	return NewEngine(catalog, NewResolver(catalog, store), NewTestLogger(t), opts...)
}

func decide(t *testing.T, engine *Engine, subject Subject, request AccessRequest) AccessDecision {
	t.Helper()
	decision, err := engine.Decide(context.Background(), subject, request)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	return decision
}

func TestDecideSuperAdminBypassesEverything(t *testing.T) {
	// The store errors on every call; super_admin must never reach it.
	store := newMapStore()
	store.err = errors.New("store down")
	engine := newTestEngine(t, store)
	subject := Subject{UserID: "u1", Role: "super_admin", TenantID: "t1"}

	requests := []AccessRequest{
		{Permission: "questions.delete"},
		{Page: "billing"},
		{RequiredRoles: []string{"org_admin"}},
		{ComponentID: "question-editor", FeatureID: "bulk-import"},
		{PlanFeature: plans.FeatureCustomBranding},
	}
	for _, request := range requests {
		decision := decide(t, engine, subject, request)
		if !decision.Granted {
			t.Errorf("super_admin denied for %+v: %s", request, decision.Reason)
		}
		if decision.Reason != ReasonSuperAdmin {
			t.Errorf("Reason = %s, want %s", decision.Reason, ReasonSuperAdmin)
		}
	}
}

func TestDecideRequiredRoles(t *testing.T) {
	engine := newTestEngine(t, newMapStore())

	allowed := decide(t, engine,
		Subject{UserID: "u1", Role: "inspector", TenantID: "t1"},
		AccessRequest{RequiredRoles: []string{"org_admin", "inspector"}})
	if !allowed.Granted {
		t.Errorf("listed role denied: %s", allowed.Reason)
	}

	denied := decide(t, engine,
		Subject{UserID: "u1", Role: "question_manager", TenantID: "t1"},
		AccessRequest{RequiredRoles: []string{"org_admin", "inspector"}})
	if denied.Granted {
		t.Error("unlisted role granted")
	}
	if denied.Reason != ReasonRoleNotAllowed {
		t.Errorf("Reason = %s, want %s", denied.Reason, ReasonRoleNotAllowed)
	}
}

func TestDecideRoleCasingIsEquivalent(t *testing.T) {
	engine := newTestEngine(t, newMapStore())
	request := AccessRequest{
		RequiredRoles: []string{"Org_Admin"},
		Permission:    "tournaments.delete",
	}

	for _, role := range []string{"org_admin", "Org_Admin", "ORG_ADMIN"} {
		decision := decide(t, engine, Subject{UserID: "u1", Role: role, TenantID: "t1"}, request)
		if !decision.Granted {
			t.Errorf("role %q denied: %s", role, decision.Reason)
		}
	}
}

func TestDecidePermission(t *testing.T) {
	store := newMapStore()
	ctx := context.Background()
	err := store.Upsert(ctx, &TenantRoleCustomization{
		TenantID: "t1",
		RoleID:   "question_manager",
		Permissions: Diff{
			Add:    NewSet("questions.manage-categories"),
			Remove: NewSet("questions.create"),
		},
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	engine := newTestEngine(t, store)

	tests := []struct {
		name       string
		tenantID   string
		permission string
		granted    bool
		reason     ReasonCode
	}{
		{"base grant", "t1", "questions.read", true, ReasonGranted},
		{"customized add", "t1", "questions.manage-categories", true, ReasonGranted},
		{"customized remove", "t1", "questions.create", false, ReasonPermissionDenied},
		{"never granted", "t1", "billing.manage", false, ReasonPermissionDenied},
		{"other tenant keeps base", "t2", "questions.create", true, ReasonGranted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := decide(t, engine,
				Subject{UserID: "u1", Role: "question_manager", TenantID: tt.tenantID},
				AccessRequest{Permission: tt.permission})
			if decision.Granted != tt.granted {
				t.Errorf("Granted = %v, want %v", decision.Granted, tt.granted)
			}
			if decision.Reason != tt.reason {
				t.Errorf("Reason = %s, want %s", decision.Reason, tt.reason)
			}
		})
	}
}

func TestDecidePage(t *testing.T) {
	engine := newTestEngine(t, newMapStore())
	subject := Subject{UserID: "u1", Role: "inspector", TenantID: "t1"}

	granted := decide(t, engine, subject, AccessRequest{Page: "reports"})
	if !granted.Granted {
		t.Errorf("base page denied: %s", granted.Reason)
	}

	denied := decide(t, engine, subject, AccessRequest{Page: "billing"})
	if denied.Granted {
		t.Error("unlisted page granted")
	}
	if denied.Reason != ReasonPageDenied {
		t.Errorf("Reason = %s, want %s", denied.Reason, ReasonPageDenied)
	}
}

func TestDecidePlanFeature(t *testing.T) {
	gate := &fakeGate{enabled: map[plans.FeatureID]bool{plans.FeatureBulkImport: true}}
	engine := newTestEngine(t, newMapStore(), WithPlanGate(gate))
	subject := Subject{UserID: "u1", Role: "org_admin", TenantID: "t1"}

	granted := decide(t, engine, subject, AccessRequest{PlanFeature: plans.FeatureBulkImport})
	if !granted.Granted {
		t.Errorf("enabled plan feature denied: %s", granted.Reason)
	}

	denied := decide(t, engine, subject, AccessRequest{PlanFeature: plans.FeatureCustomBranding})
	if denied.Granted {
		t.Error("disabled plan feature granted")
	}
	if denied.Reason != ReasonPlanFeatureUnavailable {
		t.Errorf("Reason = %s, want %s", denied.Reason, ReasonPlanFeatureUnavailable)
	}
}

func TestDecidePlanGateFailureDeniesSafely(t *testing.T) {
	gate := &fakeGate{err: errors.New("tenant store down")}
	engine := newTestEngine(t, newMapStore(), WithPlanGate(gate))

	decision, err := engine.Decide(context.Background(),
		Subject{UserID: "u1", Role: "org_admin", TenantID: "t1"},
		AccessRequest{PlanFeature: plans.FeatureBulkImport})
	if err == nil {
		t.Fatal("gate failure must surface as an error")
	}
	if decision.Granted {
		t.Error("gate failure must deny")
	}
	if decision.Reason != ReasonPlanFeatureUnavailable {
		t.Errorf("Reason = %s, want %s", decision.Reason, ReasonPlanFeatureUnavailable)
	}
}

func TestDecideComponentFeature(t *testing.T) {
	registry := &fakeRegistry{features: map[string][]string{
		"question-editor":  {"rich-text", "bulk-import", "category-manager"},
		"tournament-board": {"live-scores", "bracket-edit"},
	}}
	engine := newTestEngine(t, newMapStore(), WithComponentRegistry(registry))

	tests := []struct {
		name        string
		role        string
		componentID string
		featureID   string
		granted     bool
	}{
		{"specific feature held", "question_manager", "question-editor", "bulk-import", true},
		{"specific feature not held", "inspector", "question-editor", "bulk-import", false},
		{"any feature of component", "question_manager", "question-editor", "", true},
		{"no feature of component", "question_manager", "tournament-board", "", false},
		{"wildcard role", "org_admin", "tournament-board", "bracket-edit", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := decide(t, engine,
				Subject{UserID: "u1", Role: tt.role, TenantID: "t1"},
				AccessRequest{ComponentID: tt.componentID, FeatureID: tt.featureID})
			if decision.Granted != tt.granted {
				t.Errorf("Granted = %v (%s), want %v", decision.Granted, decision.Reason, tt.granted)
			}
			if !tt.granted && decision.Reason != ReasonComponentFeatureDenied {
				t.Errorf("Reason = %s, want %s", decision.Reason, ReasonComponentFeatureDenied)
			}
		})
	}
}

func TestDecideOrgAdminFallback(t *testing.T) {
	// A corrupt catalog resolves no roles at all.
	recorder := &recordingAuditLogger{}
	catalog := NewCatalog(nil)
	engine := NewEngine(catalog, NewResolver(catalog, newMapStore()), NewTestLogger(t),
		WithAuditLogger(recorder))
	ctx := context.Background()

	// org_admin is granted by the safety net.
	decision, err := engine.Decide(ctx,
		Subject{UserID: "u1", Role: "org_admin", TenantID: "t1"},
		AccessRequest{Permission: "tournaments.delete"})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !decision.Granted {
		t.Fatalf("org_admin fallback did not grant: %s", decision.Reason)
	}
	if decision.Reason != ReasonOrgAdminFallback {
		t.Errorf("Reason = %s, want %s", decision.Reason, ReasonOrgAdminFallback)
	}

	// Every fallback grant leaves an audit event.
	events := recorder.byType(audit.EventTypeAuthzOrgAdminFallback)
	if len(events) != 1 {
		t.Fatalf("fallback audit events = %d, want 1", len(events))
	}
	if events[0].UserID != "u1" || events[0].TenantID != "t1" {
		t.Errorf("fallback event subject = %s/%s, want u1/t1", events[0].UserID, events[0].TenantID)
	}

	// A non-admin role with the same missing catalog is denied.
	denied, err := engine.Decide(ctx,
		Subject{UserID: "u2", Role: "inspector", TenantID: "t1"},
		AccessRequest{Permission: "questions.read"})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if denied.Granted {
		t.Error("non-admin role granted with missing catalog entry")
	}
	if denied.Reason != ReasonPermissionDenied {
		t.Errorf("Reason = %s, want %s", denied.Reason, ReasonPermissionDenied)
	}
}

func TestDecideStoreFailureDeniesSafely(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("connection refused")
	engine := newTestEngine(t, store)

	decision, err := engine.Decide(context.Background(),
		Subject{UserID: "u1", Role: "question_manager", TenantID: "t1"},
		AccessRequest{Permission: "questions.read"})
	if err == nil {
		t.Fatal("store failure must surface as an error")
	}
	if decision.Granted {
		t.Error("store failure must deny")
	}
	if decision.Reason != ReasonPermissionDenied {
		t.Errorf("Reason = %s, want %s", decision.Reason, ReasonPermissionDenied)
	}
}

func TestDecideDenialsAreAudited(t *testing.T) {
	recorder := &recordingAuditLogger{}
	engine := newTestEngine(t, newMapStore(), WithAuditLogger(recorder))

	decide(t, engine,
		Subject{UserID: "u1", Role: "inspector", TenantID: "t1"},
		AccessRequest{Permission: "questions.delete"})

	events := recorder.byType(audit.EventTypeAuthzAccessDenied)
	if len(events) != 1 {
		t.Fatalf("denial audit events = %d, want 1", len(events))
	}
	if events[0].Metadata["reason"] != string(ReasonPermissionDenied) {
		t.Errorf("denial reason metadata = %v", events[0].Metadata["reason"])
	}
}

func TestDecideEmptyRequestGrants(t *testing.T) {
	engine := newTestEngine(t, newMapStore())

	decision := decide(t, engine,
		Subject{UserID: "u1", Role: "inspector", TenantID: "t1"},
		AccessRequest{})
	if !decision.Granted {
		t.Errorf("request naming no checks should grant: %s", decision.Reason)
	}
	if decision.Reason != ReasonGranted {
		t.Errorf("Reason = %s, want %s", decision.Reason, ReasonGranted)
	}
}

func TestDecideCombinedChecksAllMustHold(t *testing.T) {
	gate := &fakeGate{enabled: map[plans.FeatureID]bool{plans.FeatureLiveScoring: true}}
	engine := newTestEngine(t, newMapStore(), WithPlanGate(gate))
	subject := Subject{UserID: "u1", Role: "inspector", TenantID: "t1"}

	granted := decide(t, engine, subject, AccessRequest{
		Permission:  "reports.read",
		Page:        "reports",
		PlanFeature: plans.FeatureLiveScoring,
	})
	if !granted.Granted {
		t.Errorf("all-holding combined request denied: %s", granted.Reason)
	}

	denied := decide(t, engine, subject, AccessRequest{
		Permission:  "reports.read",
		Page:        "billing",
		PlanFeature: plans.FeatureLiveScoring,
	})
	if denied.Granted {
		t.Error("combined request with one failing check granted")
	}
	if denied.Reason != ReasonPageDenied {
		t.Errorf("Reason = %s, want %s", denied.Reason, ReasonPageDenied)
	}
}
