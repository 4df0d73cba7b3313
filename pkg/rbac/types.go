package rbac

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Wildcard is the sentinel meaning "matches any candidate" within a
// permission, page, or component-feature set.
const Wildcard = "*"

// Built-in role IDs. Role IDs compare case-insensitively everywhere.
const (
	RoleSuperAdmin      = "super_admin"
	RoleOrgAdmin        = "org_admin"
	RoleQuestionManager = "question_manager"
	RoleInspector       = "inspector"
)

// NormalizeRoleID canonicalizes a role ID for comparison and storage
func NormalizeRoleID(roleID string) string {
	return strings.ToLower(strings.TrimSpace(roleID))
}

// Set is an unordered collection of identifiers. It marshals as a
// sorted JSON array so stored rows and API responses are stable.
type Set map[string]struct{}

// NewSet builds a set from its members
func NewSet(members ...string) Set {
	s := make(Set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Contains reports membership
func (s Set) Contains(member string) bool {
	_, ok := s[member]
	return ok
}

// HasWildcard reports whether the set contains the wildcard sentinel
func (s Set) HasWildcard() bool {
	return s.Contains(Wildcard)
}

// Members returns the sorted member list
func (s Set) Members() []string {
	members := make([]string, 0, len(s))
	for m := range s {
		members = append(members, m)
	}
	sort.Strings(members)
	return members
}

// Clone returns an independent copy
func (s Set) Clone() Set {
	clone := make(Set, len(s))
	for m := range s {
		clone[m] = struct{}{}
	}
	return clone
}

// Intersect returns members present in both sets
func (s Set) Intersect(other Set) Set {
	result := Set{}
	for m := range s {
		if other.Contains(m) {
			result[m] = struct{}{}
		}
	}
	return result
}

// MarshalJSON encodes the set as a sorted array
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

// UnmarshalJSON decodes an array into the set
func (s *Set) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewSet(members...)
	return nil
}

// Role is a system-defined, versioned role. Roles are immutable at
// runtime outside the seed/re-seed path.
type Role struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Permissions       Set    `json:"permissions"`
	Pages             Set    `json:"pages"`
	ComponentFeatures Set    `json:"component_features"`
	IsSystemRole      bool   `json:"is_system_role"`
}

// Customizable reports whether tenants may customize this role. Only
// the two non-privileged roles are customizable; system roles never are.
func (r *Role) Customizable() bool {
	if r.IsSystemRole {
		return false
	}
	switch NormalizeRoleID(r.ID) {
	case RoleQuestionManager, RoleInspector:
		return true
	}
	return false
}

// Diff is an add/remove pair layered over a role's base set. Add and
// Remove are disjoint; Validate enforces it and the Toggle helpers
// preserve it.
type Diff struct {
	Add    Set `json:"add"`
	Remove Set `json:"remove"`
}

// NewDiff returns an empty diff
func NewDiff() Diff {
	return Diff{Add: Set{}, Remove: Set{}}
}

// ToggleAdd puts item in Add, evicting it from Remove
func (d *Diff) ToggleAdd(item string) {
	if d.Add == nil {
		d.Add = Set{}
	}
	d.Add[item] = struct{}{}
	delete(d.Remove, item)
}

// ToggleRemove puts item in Remove, evicting it from Add
func (d *Diff) ToggleRemove(item string) {
	if d.Remove == nil {
		d.Remove = Set{}
	}
	d.Remove[item] = struct{}{}
	delete(d.Add, item)
}

// Clear drops item from both sets
func (d *Diff) Clear(item string) {
	delete(d.Add, item)
	delete(d.Remove, item)
}

// Validate checks the disjointness invariant
func (d *Diff) Validate(field string) error {
	if overlap := d.Add.Intersect(d.Remove); len(overlap) > 0 {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("items in both add and remove: %v", overlap.Members()),
		}
	}
	return nil
}

// TenantRoleCustomization is a tenant's add/remove diff over a role's
// base permissions and pages. At most one record exists per
// (tenant_id, role_id); inactive records are retained but ignored by
// resolution.
type TenantRoleCustomization struct {
	TenantID string `json:"tenant_id"`
	RoleID   string `json:"role_id"`

	// DisplayName is cosmetic only and never affects resolution.
	DisplayName string `json:"display_name,omitempty"`

	Permissions Diff `json:"permissions"`
	Pages       Diff `json:"pages"`

	IsActive bool `json:"is_active"`

	// Audit metadata, not consulted by resolution.
	CreatedBy string `json:"created_by,omitempty"`
	Notes     string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the customization before persistence
func (c *TenantRoleCustomization) Validate() error {
	if c.TenantID == "" {
		return &ValidationError{Field: "tenant_id", Message: "tenant ID is required"}
	}
	if NormalizeRoleID(c.RoleID) == "" {
		return &ValidationError{Field: "role_id", Message: "role ID is required"}
	}
	if err := c.Permissions.Validate("permissions"); err != nil {
		return err
	}
	return c.Pages.Validate("pages")
}

// RoleNotFoundError reports a role ID that does not resolve in the
// catalog
type RoleNotFoundError struct {
	RoleID string
}

func (e *RoleNotFoundError) Error() string {
	return fmt.Sprintf("role not found: %s", e.RoleID)
}

// IsRoleNotFound checks if an error is a role lookup failure
func IsRoleNotFound(err error) bool {
	_, ok := err.(*RoleNotFoundError)
	return ok
}

// ValidationError reports an invalid customization write. It is
// surfaced to the caller for correction and never corrupts the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}
