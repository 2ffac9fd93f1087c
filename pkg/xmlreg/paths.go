package xmlreg

import (
	"fmt"
	"sync"

	"github.com/beevik/etree"

	"github.com/platinummonkey/axle/pkg/identity"
)

// Document versions with a path provider and schema registered. New versions
// are added here together with their provider wiring below.
const (
	VersionRoles10 = "1.0"
	VersionUsers10 = "1.0"
)

// Attribute names shared across document versions.
const (
	attrVersion  = "version"
	attrID       = "id"
	attrParentID = "parentID"
	attrName     = "name"
	attrUsername = "username"
	attrGroup    = "groupname"
	attrRoleID   = "roleID"
	attrPassword = "password"
	attrEnabled  = "enabled"
)

// rolePaths is the precompiled accessor set for one role-registry document
// version. Providers are stateless value objects shared freely across
// goroutines once built.
type rolePaths struct {
	version    string
	roles      etree.Path
	userRoles  etree.Path
	groupRoles etree.Path
	roleRefs   etree.Path
	properties etree.Path
}

// userPaths is the precompiled accessor set for one user-registry document
// version.
type userPaths struct {
	version    string
	users      etree.Path
	groups     etree.Path
	members    etree.Path
	properties etree.Path
}

var (
	pathsOnce sync.Once
	rolePathv map[string]*rolePaths
	userPathv map[string]*userPaths
)

// compilePaths builds the version keyed provider maps. Guarded by pathsOnce so
// concurrent first users cannot observe a partially built map.
func compilePaths() {
	rolePathv = map[string]*rolePaths{
		VersionRoles10: {
			version:    VersionRoles10,
			roles:      etree.MustCompilePath("./roleList/role"),
			userRoles:  etree.MustCompilePath("./userList/userRoles"),
			groupRoles: etree.MustCompilePath("./groupList/groupRoles"),
			roleRefs:   etree.MustCompilePath("./roleRef"),
			properties: etree.MustCompilePath("./property"),
		},
	}
	userPathv = map[string]*userPaths{
		VersionUsers10: {
			version:    VersionUsers10,
			users:      etree.MustCompilePath("./users/user"),
			groups:     etree.MustCompilePath("./groups/group"),
			members:    etree.MustCompilePath("./member"),
			properties: etree.MustCompilePath("./property"),
		},
	}
}

// rolePathsFor returns the provider for a role-registry document version.
// An unknown version is a configuration error, never silently defaulted.
func rolePathsFor(version string) (*rolePaths, error) {
	pathsOnce.Do(compilePaths)
	p, ok := rolePathv[version]
	if !ok {
		return nil, fmt.Errorf("no role registry path provider for version %q: %w", version, identity.ErrUnsupportedVersion)
	}
	return p, nil
}

// userPathsFor returns the provider for a user-registry document version.
func userPathsFor(version string) (*userPaths, error) {
	pathsOnce.Do(compilePaths)
	p, ok := userPathv[version]
	if !ok {
		return nil, fmt.Errorf("no user registry path provider for version %q: %w", version, identity.ErrUnsupportedVersion)
	}
	return p, nil
}

// documentVersion reads the declared version attribute from a document root.
func documentVersion(root *etree.Element) string {
	return root.SelectAttrValue(attrVersion, "")
}
