package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/axle/pkg/identity"
	"github.com/platinummonkey/axle/pkg/observability"
	"github.com/platinummonkey/axle/pkg/xmlreg"
)

// UserGroupStore is a mutable session derived from a user/group service.
// Mutations operate on a private deep copy and stay invisible to the service
// and to other sessions until Store commits them.
type UserGroupStore struct {
	svc       *UserGroupService
	sessionID string
	snap      *userSnapshot
	modified  bool
	logger    *observability.Logger
}

func newUserGroupStore(svc *UserGroupService) *UserGroupStore {
	sessionID := uuid.NewString()
	return &UserGroupStore{
		svc:       svc,
		sessionID: sessionID,
		snap:      svc.snap.Load().clone(),
		logger:    svc.logger.WithField("session_id", sessionID),
	}
}

// SessionID identifies this store session in logs.
func (st *UserGroupStore) SessionID() string { return st.sessionID }

// IsModified reports whether the session holds uncommitted changes.
func (st *UserGroupStore) IsModified() bool { return st.modified }

func (st *UserGroupStore) GetUserByUsername(username string) (*identity.User, error) {
	return snapGetUser(st.snap, username)
}

func (st *UserGroupStore) Users() []*identity.User {
	return snapUsers(st.snap)
}

func (st *UserGroupStore) GetGroupByGroupname(groupname string) (*identity.Group, error) {
	return snapGetGroup(st.snap, groupname)
}

func (st *UserGroupStore) Groups() []*identity.Group {
	return snapGroups(st.snap)
}

func (st *UserGroupStore) GroupsForUser(username string) []*identity.Group {
	return snapResolveGroups(st.snap, st.snap.userGroups[username])
}

func (st *UserGroupStore) UsersForGroup(groupname string) []*identity.User {
	return snapResolveUsers(st.snap, st.snap.groupMembers[groupname])
}

func (st *UserGroupStore) UsersHavingProperty(name string) []*identity.User {
	return snapResolveUsers(st.snap, st.snap.propertyUsers[name])
}

func (st *UserGroupStore) UsersHavingPropertyValue(name, value string) []*identity.User {
	var users []*identity.User
	for username := range st.snap.propertyUsers[name] {
		if user, ok := st.snap.users[username]; ok && user.Properties[name] == value {
			users = append(users, user)
		}
	}
	identity.SortUsers(users)
	return users
}

// AddUser stages a new user. The configured password policy is applied when
// the user carries a local password.
func (st *UserGroupStore) AddUser(user *identity.User) error {
	if user == nil || user.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if _, ok := st.snap.users[user.Username]; ok {
		return fmt.Errorf("user %q already exists: %w", user.Username, identity.ErrConcurrentModification)
	}
	if err := st.checkPassword(user); err != nil {
		return err
	}
	st.putUser(user)
	return nil
}

// UpdateUser stages an update of an existing user.
func (st *UserGroupStore) UpdateUser(user *identity.User) error {
	if user == nil || user.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if _, ok := st.snap.users[user.Username]; !ok {
		return fmt.Errorf("user %q does not exist: %w", user.Username, identity.ErrConcurrentModification)
	}
	if err := st.checkPassword(user); err != nil {
		return err
	}
	st.dropPropertyIndex(user.Username)
	st.putUser(user)
	return nil
}

func (st *UserGroupStore) checkPassword(user *identity.User) error {
	if st.svc.pwValidator == nil || !user.HasPassword() {
		return nil
	}
	if err := st.svc.pwValidator(*user.Password); err != nil {
		return fmt.Errorf("password for user %q rejected by policy: %w", user.Username, err)
	}
	return nil
}

func (st *UserGroupStore) putUser(user *identity.User) {
	clone := user.Clone()
	st.snap.users[clone.Username] = clone
	for name := range clone.Properties {
		addToNameSet(st.snap.propertyUsers, name, clone.Username)
	}
	st.modified = true
}

func (st *UserGroupStore) dropPropertyIndex(username string) {
	removeMemberEverywhere(st.snap.propertyUsers, username)
}

// RemoveUser stages removal of a user together with all group memberships and
// property index entries.
func (st *UserGroupStore) RemoveUser(username string) error {
	if _, ok := st.snap.users[username]; !ok {
		return fmt.Errorf("user %q does not exist: %w", username, identity.ErrConcurrentModification)
	}
	delete(st.snap.users, username)
	st.dropPropertyIndex(username)
	for groupname := range st.snap.userGroups[username] {
		removeFromNameSet(st.snap.groupMembers, groupname, username)
	}
	delete(st.snap.userGroups, username)
	st.modified = true
	return nil
}

// AddGroup stages a new group.
func (st *UserGroupStore) AddGroup(group *identity.Group) error {
	if group == nil || group.Name == "" {
		return fmt.Errorf("group name must not be empty")
	}
	if _, ok := st.snap.groups[group.Name]; ok {
		return fmt.Errorf("group %q already exists: %w", group.Name, identity.ErrConcurrentModification)
	}
	st.snap.groups[group.Name] = group.Clone()
	st.snap.groupMembers[group.Name] = make(map[string]struct{})
	st.modified = true
	return nil
}

// UpdateGroup stages an update of an existing group.
func (st *UserGroupStore) UpdateGroup(group *identity.Group) error {
	if group == nil || group.Name == "" {
		return fmt.Errorf("group name must not be empty")
	}
	if _, ok := st.snap.groups[group.Name]; !ok {
		return fmt.Errorf("group %q does not exist: %w", group.Name, identity.ErrConcurrentModification)
	}
	st.snap.groups[group.Name] = group.Clone()
	st.modified = true
	return nil
}

// RemoveGroup stages removal of a group and all its memberships.
func (st *UserGroupStore) RemoveGroup(groupname string) error {
	if _, ok := st.snap.groups[groupname]; !ok {
		return fmt.Errorf("group %q does not exist: %w", groupname, identity.ErrConcurrentModification)
	}
	delete(st.snap.groups, groupname)
	for username := range st.snap.groupMembers[groupname] {
		removeFromNameSet(st.snap.userGroups, username, groupname)
	}
	delete(st.snap.groupMembers, groupname)
	st.modified = true
	return nil
}

// AssociateUserToGroup stages a membership. Both the user and the group must
// exist in the session's view.
func (st *UserGroupStore) AssociateUserToGroup(username, groupname string) error {
	if _, ok := st.snap.users[username]; !ok {
		return fmt.Errorf("user %q does not exist: %w", username, identity.ErrConcurrentModification)
	}
	if _, ok := st.snap.groups[groupname]; !ok {
		return fmt.Errorf("group %q does not exist: %w", groupname, identity.ErrConcurrentModification)
	}
	addToNameSet(st.snap.groupMembers, groupname, username)
	addToNameSet(st.snap.userGroups, username, groupname)
	st.modified = true
	return nil
}

// DisassociateUserFromGroup stages removal of a membership. Removing a
// membership that does not exist is a no-op and does not mark the session
// modified.
func (st *UserGroupStore) DisassociateUserFromGroup(username, groupname string) error {
	removed := removeFromNameSet(st.snap.groupMembers, groupname, username)
	if removeFromNameSet(st.snap.userGroups, username, groupname) {
		removed = true
	}
	if removed {
		st.modified = true
	}
	return nil
}

// Store serializes the session's private copy to the durable document,
// schema-validating first when enabled, and atomically publishes it as the
// service's new snapshot.
func (st *UserGroupStore) Store(ctx context.Context) error {
	data, err := xmlreg.EncodeUsers(st.snap.toRegistry())
	if err != nil {
		st.countCommitError()
		return err
	}
	if st.svc.validate {
		if err := xmlreg.ValidateBytes(data, xmlreg.KindUsers); err != nil {
			st.countCommitError()
			return fmt.Errorf("refusing to commit user registry %q: %w", st.svc.name, err)
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
	st.logger.WithFields(map[string]interface{}{
		"users":  len(st.snap.users),
		"groups": len(st.snap.groups),
	}).Info("user registry committed")
	return nil
}

// Load discards all staged mutations and re-reads the session's private copy
// from the durable document.
func (st *UserGroupStore) Load(ctx context.Context) error {
	data, err := st.svc.backing.Read()
	if err != nil {
		return err
	}
	reg, err := xmlreg.DecodeUsers(data, xmlreg.Options{
		Validate: st.svc.validate,
		Strict:   st.svc.strict,
		Logger:   st.logger,
	})
	if err != nil {
		return fmt.Errorf("reloading user registry %q: %w", st.svc.name, err)
	}
	st.snap = userSnapshotFromRegistry(reg)
	st.modified = false
	return nil
}

func (st *UserGroupStore) countCommitError() {
	if st.svc.metrics != nil {
		st.svc.metrics.StoreCommitErrors.WithLabelValues(st.svc.name).Inc()
	}
}
