package audit

import (
	"context"
	"time"

	"github.com/quizdeck/quizdeck/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the logger
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextkeys.AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context, falling back to a
// no-op logger so callers never need a nil check.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards all events
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                { return nil }

// NewEvent builds an event with the timestamp and request ID populated
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.RequestID(ctx),
	}
}

// LogAuthorization records an authorization event for a subject and resource
func LogAuthorization(ctx context.Context, logger Logger, eventType EventType, status EventStatus, userID, role, tenantID string, resourceType ResourceType, resourceID, message string) error {
	event := NewEvent(ctx, eventType, status)
	event.UserID = userID
	event.Role = role
	event.TenantID = tenantID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return logger.Log(ctx, event)
}

// LogMutation records a create/update/delete against a resource
func LogMutation(ctx context.Context, logger Logger, eventType EventType, userID, tenantID string, resourceType ResourceType, resourceID, message string) error {
	event := NewEvent(ctx, eventType, EventStatusSuccess)
	event.UserID = userID
	event.TenantID = tenantID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return logger.Log(ctx, event)
}
