package rbac

import (
	"sort"
	"sync"
)

// Catalog is the registry of system roles. It is seeded once at startup
// and read-only thereafter; Replace exists solely for the administrative
// re-seed path and swaps the whole role map atomically, so concurrent
// readers always see a complete catalog version.
type Catalog struct {
	mu      sync.RWMutex
	roles   map[string]*Role // keyed by normalized role ID
	version int
}

// NewCatalog creates a catalog seeded with the given roles
func NewCatalog(roles []*Role) *Catalog {
	c := &Catalog{}
	c.Replace(roles)
	return c
}

// Get looks up a role by ID, case-insensitively
func (c *Catalog) Get(roleID string) (*Role, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	role, ok := c.roles[NormalizeRoleID(roleID)]
	if !ok {
		return nil, &RoleNotFoundError{RoleID: roleID}
	}
	return role, nil
}

// Roles returns all roles sorted by ID
func (c *Catalog) Roles() []*Role {
	c.mu.RLock()
	defer c.mu.RUnlock()

	roles := make([]*Role, 0, len(c.roles))
	for _, role := range c.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles
}

// Replace swaps the entire role set and bumps the catalog version.
// Later entries with a duplicate normalized ID win.
func (c *Catalog) Replace(roles []*Role) {
	next := make(map[string]*Role, len(roles))
	for _, role := range roles {
		next[NormalizeRoleID(role.ID)] = role
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles = next
	c.version++
}

// Version returns the current catalog version, starting at 1 after the
// initial seed
func (c *Catalog) Version() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
