package rbac

import (
	"net/http"

	"github.com/quizdeck/quizdeck/pkg/httputil"
	"github.com/quizdeck/quizdeck/pkg/middleware"
)

// requireDecision runs the engine for the identified caller and blocks
// the request unless access is granted
func requireDecision(engine *Engine, request AccessRequest) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := middleware.GetIdentity(r)
			if identity == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			subject := Subject{
				UserID:   identity.UserID,
				Role:     identity.Role,
				TenantID: identity.TenantID,
			}
			decision, err := engine.Decide(r.Context(), subject, request)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if !decision.Granted {
				httputil.WriteForbidden(w, string(decision.Reason)+": "+decision.Detail)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission blocks callers lacking the permission
func RequirePermission(engine *Engine, permission string) func(http.Handler) http.Handler {
	return requireDecision(engine, AccessRequest{Permission: permission})
}

// RequirePage blocks callers without access to the page
func RequirePage(engine *Engine, page string) func(http.Handler) http.Handler {
	return requireDecision(engine, AccessRequest{Page: page})
}

// RequireRoles blocks callers whose role is outside the allow-list
func RequireRoles(engine *Engine, roles ...string) func(http.Handler) http.Handler {
	return requireDecision(engine, AccessRequest{RequiredRoles: roles})
}
