package rbac

import (
	"context"
)

// EffectiveSet is the result of merging a base set with a tenant's
// add/remove diff. When the base carries the wildcard, Remove acts as
// an explicit block list evaluated against candidates rather than a
// finite-set subtraction.
type EffectiveSet struct {
	wildcard bool
	members  Set
	removed  Set
}

// Has reports whether a candidate passes this effective set. Removed
// items are denied even under a wildcard base.
func (e EffectiveSet) Has(candidate string) bool {
	if e.removed.Contains(candidate) {
		return false
	}
	if e.wildcard {
		return true
	}
	return e.members.Contains(candidate)
}

// Wildcard reports whether the base set was wildcarded
func (e EffectiveSet) Wildcard() bool {
	return e.wildcard
}

// Members returns the sorted finite members. Under a wildcard base this
// lists only the explicitly added items.
func (e EffectiveSet) Members() []string {
	return e.members.Members()
}

// Removed returns the sorted block list
func (e EffectiveSet) Removed() []string {
	return e.removed.Members()
}

// EffectivePermissions is the resolved grant state for a (tenant, role)
// pair
type EffectivePermissions struct {
	TenantID string
	RoleID   string

	Permissions EffectiveSet
	Pages       EffectiveSet
}

// Resolver combines the role catalog with the customization store to
// produce effective permission and page sets.
type Resolver struct {
	catalog *Catalog
	store   CustomizationStore
}

// NewResolver creates a resolver
func NewResolver(catalog *Catalog, store CustomizationStore) *Resolver {
	return &Resolver{catalog: catalog, store: store}
}

// Resolve produces the effective sets for (tenantID, roleID).
// An absent or inactive customization leaves the base sets unmodified.
// Returns RoleNotFoundError when the role does not resolve; any other
// error is a store I/O failure.
func (r *Resolver) Resolve(ctx context.Context, tenantID, roleID string) (*EffectivePermissions, error) {
	role, err := r.catalog.Get(roleID)
	if err != nil {
		return nil, err
	}

	var customization *TenantRoleCustomization
	if r.store != nil {
		customization, err = r.store.Get(ctx, tenantID, roleID)
		if err != nil {
			return nil, err
		}
	}
	if customization != nil && !customization.IsActive {
		customization = nil
	}

	result := &EffectivePermissions{
		TenantID: tenantID,
		RoleID:   NormalizeRoleID(roleID),
	}
	if customization == nil {
		result.Permissions = mergeSet(role.Permissions, NewDiff())
		result.Pages = mergeSet(role.Pages, NewDiff())
	} else {
		result.Permissions = mergeSet(role.Permissions, customization.Permissions)
		result.Pages = mergeSet(role.Pages, customization.Pages)
	}
	return result, nil
}

// mergeSet computes (base ∖ remove) ∪ add, carrying the wildcard flag
// and the remove block list through
func mergeSet(base Set, diff Diff) EffectiveSet {
	effective := EffectiveSet{
		wildcard: base.HasWildcard(),
		members:  Set{},
		removed:  diff.Remove.Clone(),
	}
	if effective.removed == nil {
		effective.removed = Set{}
	}

	for member := range base {
		if member == Wildcard {
			continue
		}
		if effective.removed.Contains(member) {
			continue
		}
		effective.members[member] = struct{}{}
	}
	for member := range diff.Add {
		effective.members[member] = struct{}{}
	}
	return effective
}
