package registry

import (
	"github.com/platinummonkey/axle/pkg/identity"
	"github.com/platinummonkey/axle/pkg/xmlreg"
)

// roleSnapshot is one complete, internally consistent copy of the role
// registry maps. Snapshots are built in private before publication and never
// mutated afterwards; store sessions work on deep copies.
type roleSnapshot struct {
	roles      map[string]*identity.Role
	parents    map[string]string              // child role name -> parent role name
	userRoles  map[string]map[string]struct{} // username -> role names
	groupRoles map[string]map[string]struct{} // group name -> role names
}

func newRoleSnapshot() *roleSnapshot {
	return &roleSnapshot{
		roles:      make(map[string]*identity.Role),
		parents:    make(map[string]string),
		userRoles:  make(map[string]map[string]struct{}),
		groupRoles: make(map[string]map[string]struct{}),
	}
}

// roleSnapshotFromRegistry adopts the maps of a freshly decoded registry.
// The decoder builds everything from scratch, so no copying is needed.
func roleSnapshotFromRegistry(reg *xmlreg.RoleRegistry) *roleSnapshot {
	return &roleSnapshot{
		roles:      reg.Roles,
		parents:    reg.ParentRoles,
		userRoles:  reg.UserRoles,
		groupRoles: reg.GroupRoles,
	}
}

// toRegistry exposes the snapshot maps to the serializer. The serializer only
// reads, and the caller holds the only mutable reference.
func (s *roleSnapshot) toRegistry() *xmlreg.RoleRegistry {
	return &xmlreg.RoleRegistry{
		Roles:       s.roles,
		ParentRoles: s.parents,
		UserRoles:   s.userRoles,
		GroupRoles:  s.groupRoles,
	}
}

// clone returns a deep copy, down to the role property maps.
func (s *roleSnapshot) clone() *roleSnapshot {
	c := &roleSnapshot{
		roles:      make(map[string]*identity.Role, len(s.roles)),
		parents:    make(map[string]string, len(s.parents)),
		userRoles:  make(map[string]map[string]struct{}, len(s.userRoles)),
		groupRoles: make(map[string]map[string]struct{}, len(s.groupRoles)),
	}
	for name, role := range s.roles {
		c.roles[name] = role.Clone()
	}
	for child, parent := range s.parents {
		c.parents[child] = parent
	}
	for owner, set := range s.userRoles {
		c.userRoles[owner] = cloneNameSet(set)
	}
	for owner, set := range s.groupRoles {
		c.groupRoles[owner] = cloneNameSet(set)
	}
	return c
}

// userSnapshot is one complete copy of the user/group registry maps,
// including the symmetric membership relations and the property-name index.
type userSnapshot struct {
	users         map[string]*identity.User
	groups        map[string]*identity.Group
	groupMembers  map[string]map[string]struct{} // group name -> usernames
	userGroups    map[string]map[string]struct{} // username -> group names
	propertyUsers map[string]map[string]struct{} // property name -> usernames
}

func newUserSnapshot() *userSnapshot {
	return &userSnapshot{
		users:         make(map[string]*identity.User),
		groups:        make(map[string]*identity.Group),
		groupMembers:  make(map[string]map[string]struct{}),
		userGroups:    make(map[string]map[string]struct{}),
		propertyUsers: make(map[string]map[string]struct{}),
	}
}

func userSnapshotFromRegistry(reg *xmlreg.UserRegistry) *userSnapshot {
	return &userSnapshot{
		users:         reg.Users,
		groups:        reg.Groups,
		groupMembers:  reg.GroupMembers,
		userGroups:    reg.UserGroups,
		propertyUsers: reg.PropertyUsers,
	}
}

func (s *userSnapshot) toRegistry() *xmlreg.UserRegistry {
	return &xmlreg.UserRegistry{
		Users:         s.users,
		Groups:        s.groups,
		GroupMembers:  s.groupMembers,
		UserGroups:    s.userGroups,
		PropertyUsers: s.propertyUsers,
	}
}

func (s *userSnapshot) clone() *userSnapshot {
	c := &userSnapshot{
		users:         make(map[string]*identity.User, len(s.users)),
		groups:        make(map[string]*identity.Group, len(s.groups)),
		groupMembers:  make(map[string]map[string]struct{}, len(s.groupMembers)),
		userGroups:    make(map[string]map[string]struct{}, len(s.userGroups)),
		propertyUsers: make(map[string]map[string]struct{}, len(s.propertyUsers)),
	}
	for name, user := range s.users {
		c.users[name] = user.Clone()
	}
	for name, group := range s.groups {
		c.groups[name] = group.Clone()
	}
	for owner, set := range s.groupMembers {
		c.groupMembers[owner] = cloneNameSet(set)
	}
	for owner, set := range s.userGroups {
		c.userGroups[owner] = cloneNameSet(set)
	}
	for owner, set := range s.propertyUsers {
		c.propertyUsers[owner] = cloneNameSet(set)
	}
	return c
}

func cloneNameSet(set map[string]struct{}) map[string]struct{} {
	c := make(map[string]struct{}, len(set))
	for k := range set {
		c[k] = struct{}{}
	}
	return c
}

// addToNameSet inserts member into the set stored under owner, allocating the
// set on first use.
func addToNameSet(m map[string]map[string]struct{}, owner, member string) {
	set, ok := m[owner]
	if !ok {
		set = make(map[string]struct{})
		m[owner] = set
	}
	set[member] = struct{}{}
}

// removeFromNameSet removes member from the set stored under owner, dropping
// the set entirely once empty. It reports whether the member was present.
func removeFromNameSet(m map[string]map[string]struct{}, owner, member string) bool {
	set, ok := m[owner]
	if !ok {
		return false
	}
	if _, ok := set[member]; !ok {
		return false
	}
	delete(set, member)
	if len(set) == 0 {
		delete(m, owner)
	}
	return true
}

// removeMemberEverywhere removes member from every set in the relation.
func removeMemberEverywhere(m map[string]map[string]struct{}, member string) {
	for owner := range m {
		removeFromNameSet(m, owner, member)
	}
}
