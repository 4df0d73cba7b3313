// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *middleware.Identity
	// Set by: middleware.IdentityMiddleware (pkg/middleware/auth.go)
	// Required by: authorization middleware and all protected endpoints
	IdentityKey Key = "identity"

	// TenantKey contains *tenants.Tenant
	// Set by: middleware.TenantMiddleware
	// Required by: tenant-scoped endpoints and the plan feature gate
	TenantKey Key = "tenant"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that need structured logging with request context
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger
	// Set by: audit wiring in cmd/quizdeck
	// Used by: handlers and the decision engine when recording events
	AuditLoggerKey Key = "audit_logger"
)

// WithIdentity adds the caller identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithTenant adds the tenant to the context
func WithTenant(ctx context.Context, tenant interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context, or "" if unset
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
