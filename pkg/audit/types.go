package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAuthzCheck        EventType = "authz.permission_check"
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// EventTypeAuthzOrgAdminFallback fires when access is granted to an
	// org-admin despite a failed role catalog lookup. This is a safety net
	// over broken seed data, not policy; every firing is worth alerting on.
	EventTypeAuthzOrgAdminFallback EventType = "authz.org_admin_fallback"

	// Customization events
	EventTypeCustomizationCreate EventType = "customization.create"
	EventTypeCustomizationUpdate EventType = "customization.update"
	EventTypeCustomizationDelete EventType = "customization.delete"

	// Configuration events
	EventTypeConfigRoleReseed EventType = "config.role_reseed"

	// Tenant events
	EventTypeTenantCreate     EventType = "tenant.create"
	EventTypeTenantPlanChange EventType = "tenant.plan_change"
	EventTypeTenantDeactivate EventType = "tenant.deactivate"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource an event refers to
type ResourceType string

const (
	ResourceTypeRole          ResourceType = "role"
	ResourceTypeCustomization ResourceType = "customization"
	ResourceTypeTenant        ResourceType = "tenant"
	ResourceTypePermission    ResourceType = "permission"
	ResourceTypePage          ResourceType = "page"
	ResourceTypeComponent     ResourceType = "component"
	ResourceTypePlanFeature   ResourceType = "plan_feature"
	ResourceTypeCatalog       ResourceType = "catalog"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID   string `json:"user_id,omitempty"`
	Role     string `json:"role,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`

	// Resource
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`

	// Details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON serializes the event
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for querying audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID   string
	TenantID string

	EventTypes []EventType
	Status     *EventStatus

	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}

// RetentionPolicy defines how long audit events are kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit events
	RetentionDays int

	// Schedule is the cron expression driving the cleanup sweep
	Schedule string
}

// DefaultRetentionPolicy returns the default retention policy (90 days,
// swept nightly).
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays: 90,
		Schedule:      "0 3 * * *",
	}
}
