package middleware

import (
	"net/http"
	"strings"

	"github.com/quizdeck/quizdeck/pkg/contextkeys"
	"github.com/quizdeck/quizdeck/pkg/httputil"
)

// Header names injected by the upstream gateway after authentication.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
	HeaderTenantID = "X-Tenant-ID"
)

// Identity is the authenticated caller as asserted by the gateway
type Identity struct {
	UserID   string
	Role     string
	TenantID string
}

// IdentityMiddleware extracts the caller identity from gateway headers
type IdentityMiddleware struct {
	optional bool // If true, allow requests without identity headers
}

// NewIdentityMiddleware creates identity extraction middleware. When
// optional is true, requests without identity headers pass through
// unauthenticated (health checks, public catalog reads).
func NewIdentityMiddleware(optional bool) *IdentityMiddleware {
	return &IdentityMiddleware{optional: optional}
}

// Handler wraps an HTTP handler with identity extraction
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		role := strings.TrimSpace(r.Header.Get(HeaderUserRole))
		tenantID := strings.TrimSpace(r.Header.Get(HeaderTenantID))

		if userID == "" || role == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing identity headers")
			return
		}

		identity := &Identity{
			UserID:   userID,
			Role:     role,
			TenantID: tenantID,
		}

		ctx := contextkeys.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity extracts the caller identity from request context, or nil
func GetIdentity(r *http.Request) *Identity {
	identity, ok := r.Context().Value(contextkeys.IdentityKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
