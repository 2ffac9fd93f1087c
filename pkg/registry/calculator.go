package registry

import (
	"fmt"

	"github.com/platinummonkey/axle/pkg/identity"
)

// RoleCalculator computes the effective role set of a user: directly assigned
// roles, roles inherited through the parent hierarchy, and roles assigned to
// the enabled groups the user belongs to.
type RoleCalculator struct {
	roles RoleReader
	users UserGroupReader
}

// NewRoleCalculator creates a calculator over a role reader and a user/group
// reader, typically the two services of one registry pair.
func NewRoleCalculator(roles RoleReader, users UserGroupReader) *RoleCalculator {
	return &RoleCalculator{roles: roles, users: users}
}

// EffectiveRoles returns the user's complete role set, sorted by name.
// Membership in a disabled group contributes nothing.
func (c *RoleCalculator) EffectiveRoles(username string) ([]*identity.Role, error) {
	collected := make(map[string]*identity.Role)

	for _, role := range c.roles.RolesForUser(username) {
		if err := c.addWithAncestors(role, collected); err != nil {
			return nil, err
		}
	}
	for _, group := range c.users.GroupsForUser(username) {
		if !group.Enabled {
			continue
		}
		for _, role := range c.roles.RolesForGroup(group.Name) {
			if err := c.addWithAncestors(role, collected); err != nil {
				return nil, err
			}
		}
	}

	roles := make([]*identity.Role, 0, len(collected))
	for _, role := range collected {
		roles = append(roles, role)
	}
	identity.SortRoles(roles)
	return roles, nil
}

// addWithAncestors adds a role and every role above it in the hierarchy.
func (c *RoleCalculator) addWithAncestors(role *identity.Role, collected map[string]*identity.Role) error {
	for role != nil {
		if _, ok := collected[role.Name]; ok {
			return nil
		}
		collected[role.Name] = role
		parent, err := c.roles.ParentRole(role.Name)
		if err != nil {
			return fmt.Errorf("resolving parent of role %q: %w", role.Name, err)
		}
		role = parent
	}
	return nil
}
