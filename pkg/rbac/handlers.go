package rbac

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quizdeck/quizdeck/pkg/audit"
	"github.com/quizdeck/quizdeck/pkg/httputil"
	"github.com/quizdeck/quizdeck/pkg/middleware"
	"github.com/quizdeck/quizdeck/pkg/observability"
)

// Handlers provides the HTTP surface for the authorization core: the
// role catalog, tenant customization CRUD, effective-permission
// previews, and the decision endpoint.
type Handlers struct {
	catalog     *Catalog
	store       CustomizationStore
	resolver    *Resolver
	engine      *Engine
	seeder      *Seeder
	auditLogger audit.Logger
	logger      *observability.Logger
}

// NewHandlers creates the authorization handlers
func NewHandlers(catalog *Catalog, store CustomizationStore, resolver *Resolver, engine *Engine, seeder *Seeder, auditLogger audit.Logger, logger *observability.Logger) *Handlers {
	return &Handlers{
		catalog:     catalog,
		store:       store,
		resolver:    resolver,
		engine:      engine,
		seeder:      seeder,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// RegisterRoutes registers all authorization routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Role catalog (read-only at runtime)
	router.HandleFunc("/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/roles/{role_id}", h.GetRole).Methods("GET")

	// Admin repair path
	router.HandleFunc("/admin/roles/reseed", h.ReseedRoles).Methods("POST")

	// Tenant customization CRUD
	router.HandleFunc("/tenants/{tenant_id}/roles", h.ListCustomizations).Methods("GET")
	router.HandleFunc("/tenants/{tenant_id}/roles/{role_id}/customization", h.GetCustomization).Methods("GET")
	router.HandleFunc("/tenants/{tenant_id}/roles/{role_id}/customization", h.UpsertCustomization).Methods("PUT")
	router.HandleFunc("/tenants/{tenant_id}/roles/{role_id}/customization", h.DeleteCustomization).Methods("DELETE")

	// Resolved view for the tenant-admin UI preview
	router.HandleFunc("/tenants/{tenant_id}/roles/{role_id}/effective", h.GetEffectivePermissions).Methods("GET")

	// Decision endpoint
	router.HandleFunc("/authz/check", h.CheckAccess).Methods("POST")
}

// ListRoles returns the role catalog
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"roles":   h.catalog.Roles(),
		"version": h.catalog.Version(),
	})
}

// GetRole returns a single catalog role
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.catalog.Get(httputil.PathVar(r, "role_id"))
	if err != nil {
		httputil.WriteNotFound(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, role)
}

// ReseedRoles re-runs the catalog seed to repair bad data
func (h *Handlers) ReseedRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.seeder.Reseed(); err != nil {
		h.logger.WithError(err).Error("Catalog reseed failed")
		httputil.WriteInternalError(w, err)
		return
	}

	event := audit.NewEvent(ctx, audit.EventTypeConfigRoleReseed, audit.EventStatusSuccess)
	if identity := middleware.GetIdentity(r); identity != nil {
		event.UserID = identity.UserID
		event.Role = identity.Role
	}
	event.ResourceType = audit.ResourceTypeCatalog
	event.Message = "role catalog reseeded"
	if err := h.auditLogger.Log(ctx, event); err != nil {
		h.logger.WithError(err).Error("Failed to audit catalog reseed")
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"version": h.catalog.Version(),
	})
}

// ListCustomizations returns all customizations for a tenant
func (h *Handlers) ListCustomizations(w http.ResponseWriter, r *http.Request) {
	customizations, err := h.store.List(r.Context(), httputil.PathVar(r, "tenant_id"))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if customizations == nil {
		customizations = []*TenantRoleCustomization{}
	}
	httputil.WriteSuccess(w, customizations)
}

// GetCustomization returns the customization for (tenant, role)
func (h *Handlers) GetCustomization(w http.ResponseWriter, r *http.Request) {
	tenantID := httputil.PathVar(r, "tenant_id")
	roleID := httputil.PathVar(r, "role_id")

	customization, err := h.store.Get(r.Context(), tenantID, roleID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if customization == nil {
		httputil.WriteNotFound(w, "no customization for this role")
		return
	}
	httputil.WriteSuccess(w, customization)
}

// UpsertCustomization creates or replaces a tenant role customization
func (h *Handlers) UpsertCustomization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := httputil.PathVar(r, "tenant_id")
	roleID := httputil.PathVar(r, "role_id")

	var customization TenantRoleCustomization
	if err := httputil.DecodeJSON(r, &customization); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	// Path wins over body for the key.
	customization.TenantID = tenantID
	customization.RoleID = roleID
	if identity := middleware.GetIdentity(r); identity != nil && customization.CreatedBy == "" {
		customization.CreatedBy = identity.UserID
	}

	if err := h.store.Upsert(ctx, &customization); err != nil {
		switch {
		case IsValidation(err):
			httputil.WriteValidationError(w, err.Error())
		case IsRoleNotFound(err):
			httputil.WriteNotFound(w, err.Error())
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	h.auditMutation(r, audit.EventTypeCustomizationUpdate, tenantID, roleID)
	httputil.WriteSuccess(w, customization)
}

// DeleteCustomization removes a customization; users holding the role
// revert to base permissions immediately
func (h *Handlers) DeleteCustomization(w http.ResponseWriter, r *http.Request) {
	tenantID := httputil.PathVar(r, "tenant_id")
	roleID := httputil.PathVar(r, "role_id")

	if err := h.store.Delete(r.Context(), tenantID, roleID); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditMutation(r, audit.EventTypeCustomizationDelete, tenantID, roleID)
	httputil.WriteNoContent(w)
}

// GetEffectivePermissions returns the resolved permission and page sets
// for a (tenant, role) pair
func (h *Handlers) GetEffectivePermissions(w http.ResponseWriter, r *http.Request) {
	tenantID := httputil.PathVar(r, "tenant_id")
	roleID := httputil.PathVar(r, "role_id")

	effective, err := h.resolver.Resolve(r.Context(), tenantID, roleID)
	if err != nil {
		if IsRoleNotFound(err) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"tenant_id": effective.TenantID,
		"role_id":   effective.RoleID,
		"permissions": map[string]interface{}{
			"wildcard": effective.Permissions.Wildcard(),
			"members":  effective.Permissions.Members(),
			"removed":  effective.Permissions.Removed(),
		},
		"pages": map[string]interface{}{
			"wildcard": effective.Pages.Wildcard(),
			"members":  effective.Pages.Members(),
			"removed":  effective.Pages.Removed(),
		},
	})
}

// CheckAccess evaluates an access request and returns the decision
func (h *Handlers) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject Subject       `json:"subject"`
		Request AccessRequest `json:"request"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.Subject.Role == "" {
		httputil.WriteValidationError(w, "subject role is required")
		return
	}

	decision, err := h.engine.Decide(r.Context(), req.Subject, req.Request)
	if err != nil {
		// The decision is still a safe denial; report the outage.
		h.logger.WithError(err).Error("Access decision hit an infrastructure failure")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, decision)
}

func (h *Handlers) auditMutation(r *http.Request, eventType audit.EventType, tenantID, roleID string) {
	ctx := r.Context()
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	if identity := middleware.GetIdentity(r); identity != nil {
		event.UserID = identity.UserID
		event.Role = identity.Role
	}
	event.TenantID = tenantID
	event.ResourceType = audit.ResourceTypeCustomization
	event.ResourceID = NormalizeRoleID(roleID)
	if err := h.auditLogger.Log(ctx, event); err != nil {
		h.logger.WithError(err).Error("Failed to audit customization change")
	}
}
