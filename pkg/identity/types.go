// Package identity defines the shared entity types and error sentinels of
// the registry subsystem.
package identity

import (
	"sort"
)

// Role is a named role in the registry. The parent link is kept by name in
// the registry snapshot rather than as a pointer, so serialization never has
// to walk an object graph.
type Role struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

// NewRole creates a role with an empty property map.
func NewRole(name string) *Role {
	return &Role{Name: name, Properties: make(map[string]string)}
}

// Clone returns a deep copy of the role.
func (r *Role) Clone() *Role {
	c := &Role{Name: r.Name, Properties: make(map[string]string, len(r.Properties))}
	for k, v := range r.Properties {
		c.Properties[k] = v
	}
	return c
}

// User is a principal in the registry. Password is a pointer so that an
// absent password (externally authenticated user) stays distinguishable from
// an empty one through serialization round-trips.
type User struct {
	Username   string            `json:"username"`
	Password   *string           `json:"password,omitempty"`
	Enabled    bool              `json:"enabled"`
	Properties map[string]string `json:"properties,omitempty"`
}

// NewUser creates an enabled user with an empty property map and no password.
func NewUser(username string) *User {
	return &User{Username: username, Enabled: true, Properties: make(map[string]string)}
}

// HasPassword reports whether the user carries a local password attribute,
// even an empty one.
func (u *User) HasPassword() bool {
	return u.Password != nil
}

// SetPassword sets the local password. Use ClearPassword to remove it.
func (u *User) SetPassword(password string) {
	u.Password = &password
}

// ClearPassword removes the local password attribute entirely.
func (u *User) ClearPassword() {
	u.Password = nil
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	c := &User{Username: u.Username, Enabled: u.Enabled, Properties: make(map[string]string, len(u.Properties))}
	if u.Password != nil {
		pw := *u.Password
		c.Password = &pw
	}
	for k, v := range u.Properties {
		c.Properties[k] = v
	}
	return c
}

// Group is a named collection of users. Membership is tracked in the registry
// snapshot, not on the group itself.
type Group struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// NewGroup creates an enabled group.
func NewGroup(name string) *Group {
	return &Group{Name: name, Enabled: true}
}

// Clone returns a copy of the group.
func (g *Group) Clone() *Group {
	c := *g
	return &c
}

// SortRoles orders roles by name for deterministic iteration and serialization.
func SortRoles(roles []*Role) {
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
}

// SortUsers orders users by username.
func SortUsers(users []*User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}

// SortGroups orders groups by name.
func SortGroups(groups []*Group) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
}

// SortedNames returns the keys of a name set in sorted order.
func SortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
