package registry

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/axle/pkg/identity"
	"github.com/platinummonkey/axle/pkg/observability"
	"github.com/platinummonkey/axle/pkg/xmlreg"
)

// RoleReader is the read-only capability shared by the role service and role
// store sessions.
type RoleReader interface {
	// GetRole returns the role with the given name, or ErrNotFound.
	GetRole(name string) (*identity.Role, error)
	// Roles returns all roles sorted by name.
	Roles() []*identity.Role
	// ParentRole returns the parent of a role, or nil when the role has no
	// parent. Unknown roles return ErrNotFound.
	ParentRole(name string) (*identity.Role, error)
	// RolesForUser returns the roles directly assigned to a username,
	// sorted by name.
	RolesForUser(username string) []*identity.Role
	// RolesForGroup returns the roles assigned to a group, sorted by name.
	RolesForGroup(groupname string) []*identity.Role
	// UserNamesForRole returns the usernames directly holding a role.
	UserNamesForRole(name string) []string
	// GroupNamesForRole returns the groups holding a role.
	GroupNamesForRole(name string) []string
}

// RoleServiceConfig configures one named role registry.
type RoleServiceConfig struct {
	// Name identifies the registry in logs and metrics.
	Name string
	// DataDir is the directory holding the data file, its schema copy, and
	// seeded templates. Required.
	DataDir string
	// FileName is the data file name, conventionally roles.xml.
	FileName string
	// ValidateSchema runs the structural validator on every load and before
	// every commit.
	ValidateSchema bool
	// StrictReferences fails a load on dangling role references instead of
	// skipping them with a warning.
	StrictReferences bool
	// AdminRole and GroupAdminRole name the administrative roles for this
	// registry.
	AdminRole      string
	GroupAdminRole string
}

// RoleService is the read-only façade over the published role registry
// snapshot. The snapshot is swapped atomically on load and commit, so readers
// always see either the old or the new registry in full.
type RoleService struct {
	name           string
	backing        *FileBacking
	validate       bool
	strict         bool
	adminRole      string
	groupAdminRole string
	readOnly       bool

	logger  *observability.Logger
	metrics *observability.Metrics

	// snap is shared between the service and its read-only scoped views.
	snap   *atomic.Pointer[roleSnapshot]
	reload *singleflight.Group
}

// NewRoleService prepares the file backing, seeds a fresh registry from the
// bundled template when needed, and performs the initial load.
func NewRoleService(cfg RoleServiceConfig, logger *observability.Logger, metrics *observability.Metrics) (*RoleService, error) {
	if cfg.FileName == "" {
		cfg.FileName = "roles.xml"
	}
	backing, err := NewFileBacking(cfg.DataDir, cfg.FileName, []byte(rolesTemplate), []byte(rolesSchema), "roles.xsd")
	if err != nil {
		return nil, err
	}
	s := &RoleService{
		name:           cfg.Name,
		backing:        backing,
		validate:       cfg.ValidateSchema,
		strict:         cfg.StrictReferences,
		adminRole:      cfg.AdminRole,
		groupAdminRole: cfg.GroupAdminRole,
		logger:         logger.WithField("registry", cfg.Name),
		metrics:        metrics,
		snap:           &atomic.Pointer[roleSnapshot]{},
		reload:         &singleflight.Group{},
	}
	s.snap.Store(newRoleSnapshot())
	if err := s.Load(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Load re-reads the durable document and publishes a fresh snapshot.
// Concurrent calls are coalesced; the previous snapshot stays published if
// the load fails.
func (s *RoleService) Load(ctx context.Context) error {
	_, err, _ := s.reload.Do("load", func() (interface{}, error) {
		start := time.Now()
		data, err := s.backing.Read()
		if err != nil {
			s.countLoadError("io")
			return nil, err
		}
		reg, err := xmlreg.DecodeRoles(data, xmlreg.Options{
			Validate: s.validate,
			Strict:   s.strict,
			Logger:   s.logger,
		})
		if err != nil {
			s.countLoadError("decode")
			return nil, fmt.Errorf("loading role registry %q: %w", s.name, err)
		}
		s.publish(roleSnapshotFromRegistry(reg))
		if s.metrics != nil {
			s.metrics.RegistryLoadsTotal.WithLabelValues(s.name).Inc()
			s.metrics.RegistryLoadDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		}
		s.logger.WithField("roles", len(reg.Roles)).Debug("role registry loaded")
		return nil, nil
	})
	return err
}

func (s *RoleService) countLoadError(kind string) {
	if s.metrics != nil {
		s.metrics.RegistryLoadErrors.WithLabelValues(s.name, kind).Inc()
	}
}

// publish atomically replaces the current snapshot.
func (s *RoleService) publish(snap *roleSnapshot) {
	s.snap.Store(snap)
	if s.metrics != nil {
		s.metrics.RolesTotal.Set(float64(len(snap.roles)))
	}
}

// Name returns the registry name.
func (s *RoleService) Name() string { return s.name }

// Backing exposes the durable document backing, for the change watcher.
func (s *RoleService) Backing() *FileBacking { return s.backing }

// AdminRoleName returns the configured administrative role name.
func (s *RoleService) AdminRoleName() string { return s.adminRole }

// GroupAdminRoleName returns the configured group-administrative role name.
func (s *RoleService) GroupAdminRoleName() string { return s.groupAdminRole }

// CanCreateStore reports whether this registry scope permits mutation.
func (s *RoleService) CanCreateStore() bool { return !s.readOnly }

// CreateStore derives a mutable store session over a private deep copy of the
// current snapshot. Read-only scopes reject store creation.
func (s *RoleService) CreateStore() (*RoleStore, error) {
	if s.readOnly {
		return nil, fmt.Errorf("role registry %q: %w", s.name, identity.ErrReadOnly)
	}
	return newRoleStore(s), nil
}

// GroupAdminScope returns a read-only view of the same registry for
// group-administrator callers. The view shares the published snapshot but
// cannot create stores.
func (s *RoleService) GroupAdminScope() *RoleService {
	scoped := *s
	scoped.readOnly = true
	return &scoped
}

func (s *RoleService) GetRole(name string) (*identity.Role, error) {
	return snapGetRole(s.snap.Load(), name)
}

func (s *RoleService) Roles() []*identity.Role {
	return snapRoles(s.snap.Load())
}

func (s *RoleService) ParentRole(name string) (*identity.Role, error) {
	return snapParentRole(s.snap.Load(), name)
}

func (s *RoleService) RolesForUser(username string) []*identity.Role {
	snap := s.snap.Load()
	return snapResolveRoles(snap, snap.userRoles[username])
}

func (s *RoleService) RolesForGroup(groupname string) []*identity.Role {
	snap := s.snap.Load()
	return snapResolveRoles(snap, snap.groupRoles[groupname])
}

func (s *RoleService) UserNamesForRole(name string) []string {
	return snapOwnersOfRole(s.snap.Load().userRoles, name)
}

func (s *RoleService) GroupNamesForRole(name string) []string {
	return snapOwnersOfRole(s.snap.Load().groupRoles, name)
}

// Shared read implementations over a snapshot, used by both the service and
// store sessions.

func snapGetRole(snap *roleSnapshot, name string) (*identity.Role, error) {
	role, ok := snap.roles[name]
	if !ok {
		return nil, fmt.Errorf("role %q: %w", name, identity.ErrNotFound)
	}
	return role, nil
}

func snapRoles(snap *roleSnapshot) []*identity.Role {
	roles := make([]*identity.Role, 0, len(snap.roles))
	for _, role := range snap.roles {
		roles = append(roles, role)
	}
	identity.SortRoles(roles)
	return roles
}

func snapParentRole(snap *roleSnapshot, name string) (*identity.Role, error) {
	if _, ok := snap.roles[name]; !ok {
		return nil, fmt.Errorf("role %q: %w", name, identity.ErrNotFound)
	}
	parent, ok := snap.parents[name]
	if !ok {
		return nil, nil
	}
	return snap.roles[parent], nil
}

func snapResolveRoles(snap *roleSnapshot, names map[string]struct{}) []*identity.Role {
	roles := make([]*identity.Role, 0, len(names))
	for name := range names {
		if role, ok := snap.roles[name]; ok {
			roles = append(roles, role)
		}
	}
	identity.SortRoles(roles)
	return roles
}

func snapOwnersOfRole(relation map[string]map[string]struct{}, role string) []string {
	var owners []string
	for owner, set := range relation {
		if _, ok := set[role]; ok {
			owners = append(owners, owner)
		}
	}
	sort.Strings(owners)
	return owners
}
