package permission

import (
	"errors"
	"fmt"
)

// Resolver derives effective permissions from roles using a frozen role table.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	registry *Registry

	roles  []Role
	grants map[Role][]Permission
	masks  map[Role]Mask64
}

// NewResolver registers every known permission, then compiles table into
// per-role masks. Every row must name a known role, appear once, and grant at
// least one known permission.
func NewResolver(table Table) (*Resolver, error) {
	registry := NewRegistry()
	for _, p := range AllPermissions {
		if _, err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("register %s: %w", p, err)
		}
	}
	registry.Freeze()

	r := &Resolver{
		registry: registry,
		roles:    make([]Role, 0, len(table)),
		grants:   make(map[Role][]Permission, len(table)),
		masks:    make(map[Role]Mask64, len(table)),
	}

	for _, grant := range table {
		if _, ok := ParseRole(string(grant.Role)); !ok {
			return nil, fmt.Errorf("unknown role %q", grant.Role)
		}
		if _, exists := r.masks[grant.Role]; exists {
			return nil, fmt.Errorf("role %q listed twice", grant.Role)
		}
		if len(grant.Permissions) == 0 {
			return nil, fmt.Errorf("role %q grants no permissions", grant.Role)
		}

		var mask Mask64
		perms := make([]Permission, 0, len(grant.Permissions))
		for _, p := range grant.Permissions {
			bit, ok := registry.Bit(p)
			if !ok {
				return nil, errors.New("permission not registered: " + string(p))
			}
			if mask.Has(bit) {
				continue
			}
			mask.Set(bit)
			perms = append(perms, p)
		}

		r.roles = append(r.roles, grant.Role)
		r.grants[grant.Role] = perms
		r.masks[grant.Role] = mask
	}

	return r, nil
}

// Resolve returns explicit ∪ every permission implied by roles, deduplicated.
// Explicit permissions come first in their given order, then role grants in role
// order. Unknown roles add nothing; unknown permissions are dropped.
func (r *Resolver) Resolve(roles []Role, explicit []Permission) []Permission {
	var seen Mask64
	out := make([]Permission, 0, len(explicit)+len(AllPermissions))

	add := func(p Permission) {
		bit, ok := r.registry.Bit(p)
		if !ok || seen.Has(bit) {
			return
		}
		seen.Set(bit)
		out = append(out, p)
	}

	for _, p := range explicit {
		add(p)
	}
	for _, role := range roles {
		for _, p := range r.grants[role] {
			add(p)
		}
	}

	return out
}

// Mask returns the union of the grant masks of roles.
func (r *Resolver) Mask(roles []Role) Mask64 {
	var out Mask64
	for _, role := range roles {
		out = out.Union(r.masks[role])
	}
	return out
}

// Allows reports whether any of roles grants p.
func (r *Resolver) Allows(roles []Role, p Permission) bool {
	bit, ok := r.registry.Bit(p)
	if !ok {
		return false
	}
	return r.Mask(roles).Has(bit)
}

// Grants returns a copy of the permissions granted to role.
func (r *Resolver) Grants(role Role) ([]Permission, bool) {
	perms, ok := r.grants[role]
	if !ok {
		return nil, false
	}
	return append([]Permission(nil), perms...), true
}

// Roles returns the roles of the table in row order.
func (r *Resolver) Roles() []Role {
	return append([]Role(nil), r.roles...)
}
