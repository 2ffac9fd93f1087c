package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/axle/pkg/identity"
	"github.com/platinummonkey/axle/pkg/observability"
	"github.com/platinummonkey/axle/pkg/xmlreg"
)

// RoleStore is a mutable session derived from a role service. All mutations
// operate on a private deep copy of the registry maps and stay invisible to
// the service and to other sessions until Store commits them.
type RoleStore struct {
	svc       *RoleService
	sessionID string
	snap      *roleSnapshot
	modified  bool
	logger    *observability.Logger
}

func newRoleStore(svc *RoleService) *RoleStore {
	sessionID := uuid.NewString()
	return &RoleStore{
		svc:       svc,
		sessionID: sessionID,
		snap:      svc.snap.Load().clone(),
		logger:    svc.logger.WithField("session_id", sessionID),
	}
}

// SessionID identifies this store session in logs.
func (st *RoleStore) SessionID() string { return st.sessionID }

// IsModified reports whether the session holds uncommitted changes.
func (st *RoleStore) IsModified() bool { return st.modified }

func (st *RoleStore) GetRole(name string) (*identity.Role, error) {
	return snapGetRole(st.snap, name)
}

func (st *RoleStore) Roles() []*identity.Role {
	return snapRoles(st.snap)
}

func (st *RoleStore) ParentRole(name string) (*identity.Role, error) {
	return snapParentRole(st.snap, name)
}

func (st *RoleStore) RolesForUser(username string) []*identity.Role {
	return snapResolveRoles(st.snap, st.snap.userRoles[username])
}

func (st *RoleStore) RolesForGroup(groupname string) []*identity.Role {
	return snapResolveRoles(st.snap, st.snap.groupRoles[groupname])
}

func (st *RoleStore) UserNamesForRole(name string) []string {
	return snapOwnersOfRole(st.snap.userRoles, name)
}

func (st *RoleStore) GroupNamesForRole(name string) []string {
	return snapOwnersOfRole(st.snap.groupRoles, name)
}

// AddRole stages a new role. Adding a role that already exists means the
// session's view is stale.
func (st *RoleStore) AddRole(role *identity.Role) error {
	if role == nil || role.Name == "" {
		return fmt.Errorf("role name must not be empty")
	}
	if _, ok := st.snap.roles[role.Name]; ok {
		return fmt.Errorf("role %q already exists: %w", role.Name, identity.ErrConcurrentModification)
	}
	st.snap.roles[role.Name] = role.Clone()
	st.modified = true
	return nil
}

// UpdateRole stages a property update for an existing role.
func (st *RoleStore) UpdateRole(role *identity.Role) error {
	if role == nil || role.Name == "" {
		return fmt.Errorf("role name must not be empty")
	}
	if _, ok := st.snap.roles[role.Name]; !ok {
		return fmt.Errorf("role %q does not exist: %w", role.Name, identity.ErrConcurrentModification)
	}
	st.snap.roles[role.Name] = role.Clone()
	st.modified = true
	return nil
}

// RemoveRole stages removal of a role. Children of the removed role are
// re-parented onto its own parent so the hierarchy stays connected, and all
// user and group assignments of the role are dropped.
func (st *RoleStore) RemoveRole(name string) error {
	if _, ok := st.snap.roles[name]; !ok {
		return fmt.Errorf("role %q does not exist: %w", name, identity.ErrConcurrentModification)
	}
	grandparent, hadParent := st.snap.parents[name]
	for child, parent := range st.snap.parents {
		if parent != name {
			continue
		}
		if hadParent {
			st.snap.parents[child] = grandparent
		} else {
			delete(st.snap.parents, child)
		}
	}
	delete(st.snap.parents, name)
	delete(st.snap.roles, name)
	removeMemberEverywhere(st.snap.userRoles, name)
	removeMemberEverywhere(st.snap.groupRoles, name)
	st.modified = true
	return nil
}

// SetParentRole stages a parent link change. An empty parent name clears the
// link. Both roles must exist, and the link must not close a cycle.
func (st *RoleStore) SetParentRole(name, parent string) error {
	if _, ok := st.snap.roles[name]; !ok {
		return fmt.Errorf("role %q does not exist: %w", name, identity.ErrConcurrentModification)
	}
	if parent == "" {
		delete(st.snap.parents, name)
		st.modified = true
		return nil
	}
	if _, ok := st.snap.roles[parent]; !ok {
		return fmt.Errorf("parent role %q does not exist: %w", parent, identity.ErrConcurrentModification)
	}
	for ancestor := parent; ancestor != ""; ancestor = st.snap.parents[ancestor] {
		if ancestor == name {
			return fmt.Errorf("setting parent of role %q to %q would create a cycle", name, parent)
		}
	}
	st.snap.parents[name] = parent
	st.modified = true
	return nil
}

// AssociateRoleToUser stages a user-role assignment. The role must exist in
// the session's view.
func (st *RoleStore) AssociateRoleToUser(name, username string) error {
	if _, ok := st.snap.roles[name]; !ok {
		return fmt.Errorf("role %q does not exist: %w", name, identity.ErrConcurrentModification)
	}
	addToNameSet(st.snap.userRoles, username, name)
	st.modified = true
	return nil
}

// DisassociateRoleFromUser stages removal of a user-role assignment. Removing
// an assignment that does not exist is a no-op and does not mark the session
// modified.
func (st *RoleStore) DisassociateRoleFromUser(name, username string) error {
	if removeFromNameSet(st.snap.userRoles, username, name) {
		st.modified = true
	}
	return nil
}

// AssociateRoleToGroup stages a group-role assignment.
func (st *RoleStore) AssociateRoleToGroup(name, groupname string) error {
	if _, ok := st.snap.roles[name]; !ok {
		return fmt.Errorf("role %q does not exist: %w", name, identity.ErrConcurrentModification)
	}
	addToNameSet(st.snap.groupRoles, groupname, name)
	st.modified = true
	return nil
}

// DisassociateRoleFromGroup stages removal of a group-role assignment.
func (st *RoleStore) DisassociateRoleFromGroup(name, groupname string) error {
	if removeFromNameSet(st.snap.groupRoles, groupname, name) {
		st.modified = true
	}
	return nil
}

// Store serializes the session's private copy to the durable document,
// schema-validating first when enabled, and atomically publishes it as the
// service's new snapshot. Concurrent Store calls against the same registry
// must be serialized by the caller.
func (st *RoleStore) Store(ctx context.Context) error {
	data, err := xmlreg.EncodeRoles(st.snap.toRegistry())
	if err != nil {
		st.countCommitError()
		return err
	}
	if st.svc.validate {
		if err := xmlreg.ValidateBytes(data, xmlreg.KindRoles); err != nil {
			st.countCommitError()
			return fmt.Errorf("refusing to commit role registry %q: %w", st.svc.name, err)
		}
	}
	if err := st.svc.backing.Write(data); err != nil {
		st.countCommitError()
		return err
	}
	st.svc.publish(st.snap.clone())
	st.modified = false
	if st.svc.metrics != nil {
		st.svc.metrics.StoreCommitsTotal.WithLabelValues(st.svc.name).Inc()
	}
	st.logger.WithField("roles", len(st.snap.roles)).Info("role registry committed")
	return nil
}

// Load discards all staged mutations and re-reads the session's private copy
// from the durable document. The published service snapshot is not touched.
func (st *RoleStore) Load(ctx context.Context) error {
	data, err := st.svc.backing.Read()
	if err != nil {
		return err
	}
	reg, err := xmlreg.DecodeRoles(data, xmlreg.Options{
		Validate: st.svc.validate,
		Strict:   st.svc.strict,
		Logger:   st.logger,
	})
	if err != nil {
		return fmt.Errorf("reloading role registry %q: %w", st.svc.name, err)
	}
	st.snap = roleSnapshotFromRegistry(reg)
	st.modified = false
	return nil
}

func (st *RoleStore) countCommitError() {
	if st.svc.metrics != nil {
		st.svc.metrics.StoreCommitErrors.WithLabelValues(st.svc.name).Inc()
	}
}
