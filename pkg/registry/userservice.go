package registry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/axle/pkg/identity"
	"github.com/platinummonkey/axle/pkg/observability"
	"github.com/platinummonkey/axle/pkg/xmlreg"
)

// UserGroupReader is the read-only capability shared by the user/group
// service and its store sessions.
type UserGroupReader interface {
	// GetUserByUsername returns the user, or ErrNotFound.
	GetUserByUsername(username string) (*identity.User, error)
	// Users returns all users sorted by username.
	Users() []*identity.User
	// GetGroupByGroupname returns the group, or ErrNotFound.
	GetGroupByGroupname(groupname string) (*identity.Group, error)
	// Groups returns all groups sorted by name.
	Groups() []*identity.Group
	// GroupsForUser returns the groups a user belongs to, sorted by name.
	GroupsForUser(username string) []*identity.Group
	// UsersForGroup returns the members of a group, sorted by username.
	UsersForGroup(groupname string) []*identity.User
	// UsersHavingProperty returns all users carrying a property with the
	// given name, regardless of value.
	UsersHavingProperty(name string) []*identity.User
	// UsersHavingPropertyValue returns all users carrying a property with
	// the given name and value.
	UsersHavingPropertyValue(name, value string) []*identity.User
}

// UserGroupServiceConfig configures one named user/group registry.
type UserGroupServiceConfig struct {
	Name    string
	DataDir string
	// FileName is the data file name, conventionally users.xml.
	FileName         string
	ValidateSchema   bool
	StrictReferences bool
	// PasswordEncoderName names the encoder used for local passwords in
	// this registry. Exposed to the authentication layer, not interpreted
	// here.
	PasswordEncoderName string
	// PasswordValidator checks candidate passwords on AddUser/UpdateUser.
	// Optional; nil disables policy checks.
	PasswordValidator func(password string) error
}

// UserGroupService is the read-only façade over the published user/group
// registry snapshot.
type UserGroupService struct {
	name        string
	backing     *FileBacking
	validate    bool
	strict      bool
	encoderName string
	pwValidator func(string) error
	readOnly    bool

	logger  *observability.Logger
	metrics *observability.Metrics

	snap   *atomic.Pointer[userSnapshot]
	reload *singleflight.Group
}

// NewUserGroupService prepares the file backing, seeds a fresh registry from
// the bundled template when needed, and performs the initial load.
func NewUserGroupService(cfg UserGroupServiceConfig, logger *observability.Logger, metrics *observability.Metrics) (*UserGroupService, error) {
	if cfg.FileName == "" {
		cfg.FileName = "users.xml"
	}
	backing, err := NewFileBacking(cfg.DataDir, cfg.FileName, []byte(usersTemplate), []byte(usersSchema), "users.xsd")
	if err != nil {
		return nil, err
	}
	s := &UserGroupService{
		name:        cfg.Name,
		backing:     backing,
		validate:    cfg.ValidateSchema,
		strict:      cfg.StrictReferences,
		encoderName: cfg.PasswordEncoderName,
		pwValidator: cfg.PasswordValidator,
		logger:      logger.WithField("registry", cfg.Name),
		metrics:     metrics,
		snap:        &atomic.Pointer[userSnapshot]{},
		reload:      &singleflight.Group{},
	}
	s.snap.Store(newUserSnapshot())
	if err := s.Load(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Load re-reads the durable document and publishes a fresh snapshot.
// Concurrent calls are coalesced; the previous snapshot stays published if
// the load fails.
func (s *UserGroupService) Load(ctx context.Context) error {
	_, err, _ := s.reload.Do("load", func() (interface{}, error) {
		start := time.Now()
		data, err := s.backing.Read()
		if err != nil {
			s.countLoadError("io")
			return nil, err
		}
		reg, err := xmlreg.DecodeUsers(data, xmlreg.Options{
			Validate: s.validate,
			Strict:   s.strict,
			Logger:   s.logger,
		})
		if err != nil {
			s.countLoadError("decode")
			return nil, fmt.Errorf("loading user registry %q: %w", s.name, err)
		}
		s.publish(userSnapshotFromRegistry(reg))
		if s.metrics != nil {
			s.metrics.RegistryLoadsTotal.WithLabelValues(s.name).Inc()
			s.metrics.RegistryLoadDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		}
		s.logger.WithFields(map[string]interface{}{
			"users":  len(reg.Users),
			"groups": len(reg.Groups),
		}).Debug("user registry loaded")
		return nil, nil
	})
	return err
}

func (s *UserGroupService) countLoadError(kind string) {
	if s.metrics != nil {
		s.metrics.RegistryLoadErrors.WithLabelValues(s.name, kind).Inc()
	}
}

func (s *UserGroupService) publish(snap *userSnapshot) {
	s.snap.Store(snap)
	if s.metrics != nil {
		s.metrics.UsersTotal.Set(float64(len(snap.users)))
		s.metrics.GroupsTotal.Set(float64(len(snap.groups)))
	}
}

// Name returns the registry name.
func (s *UserGroupService) Name() string { return s.name }

// Backing exposes the durable document backing, for the change watcher.
func (s *UserGroupService) Backing() *FileBacking { return s.backing }

// PasswordEncoderName returns the encoder configured for this registry.
func (s *UserGroupService) PasswordEncoderName() string { return s.encoderName }

// CanCreateStore reports whether this registry scope permits mutation.
func (s *UserGroupService) CanCreateStore() bool { return !s.readOnly }

// CreateStore derives a mutable store session over a private deep copy of the
// current snapshot. Read-only scopes reject store creation.
func (s *UserGroupService) CreateStore() (*UserGroupStore, error) {
	if s.readOnly {
		return nil, fmt.Errorf("user registry %q: %w", s.name, identity.ErrReadOnly)
	}
	return newUserGroupStore(s), nil
}

// ReadOnlyScope returns a view of the same registry that cannot create
// stores, sharing the published snapshot.
func (s *UserGroupService) ReadOnlyScope() *UserGroupService {
	scoped := *s
	scoped.readOnly = true
	return &scoped
}

func (s *UserGroupService) GetUserByUsername(username string) (*identity.User, error) {
	return snapGetUser(s.snap.Load(), username)
}

func (s *UserGroupService) Users() []*identity.User {
	return snapUsers(s.snap.Load())
}

func (s *UserGroupService) GetGroupByGroupname(groupname string) (*identity.Group, error) {
	return snapGetGroup(s.snap.Load(), groupname)
}

func (s *UserGroupService) Groups() []*identity.Group {
	return snapGroups(s.snap.Load())
}

func (s *UserGroupService) GroupsForUser(username string) []*identity.Group {
	snap := s.snap.Load()
	return snapResolveGroups(snap, snap.userGroups[username])
}

func (s *UserGroupService) UsersForGroup(groupname string) []*identity.User {
	snap := s.snap.Load()
	return snapResolveUsers(snap, snap.groupMembers[groupname])
}

func (s *UserGroupService) UsersHavingProperty(name string) []*identity.User {
	snap := s.snap.Load()
	return snapResolveUsers(snap, snap.propertyUsers[name])
}

func (s *UserGroupService) UsersHavingPropertyValue(name, value string) []*identity.User {
	snap := s.snap.Load()
	var users []*identity.User
	for username := range snap.propertyUsers[name] {
		if user, ok := snap.users[username]; ok && user.Properties[name] == value {
			users = append(users, user)
		}
	}
	identity.SortUsers(users)
	return users
}

// Shared read implementations over a snapshot.

func snapGetUser(snap *userSnapshot, username string) (*identity.User, error) {
	user, ok := snap.users[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, identity.ErrNotFound)
	}
	return user, nil
}

func snapUsers(snap *userSnapshot) []*identity.User {
	users := make([]*identity.User, 0, len(snap.users))
	for _, user := range snap.users {
		users = append(users, user)
	}
	identity.SortUsers(users)
	return users
}

func snapGetGroup(snap *userSnapshot, groupname string) (*identity.Group, error) {
	group, ok := snap.groups[groupname]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", groupname, identity.ErrNotFound)
	}
	return group, nil
}

func snapGroups(snap *userSnapshot) []*identity.Group {
	groups := make([]*identity.Group, 0, len(snap.groups))
	for _, group := range snap.groups {
		groups = append(groups, group)
	}
	identity.SortGroups(groups)
	return groups
}

func snapResolveUsers(snap *userSnapshot, names map[string]struct{}) []*identity.User {
	users := make([]*identity.User, 0, len(names))
	for name := range names {
		if user, ok := snap.users[name]; ok {
			users = append(users, user)
		}
	}
	identity.SortUsers(users)
	return users
}

func snapResolveGroups(snap *userSnapshot, names map[string]struct{}) []*identity.Group {
	groups := make([]*identity.Group, 0, len(names))
	for name := range names {
		if group, ok := snap.groups[name]; ok {
			groups = append(groups, group)
		}
	}
	identity.SortGroups(groups)
	return groups
}
