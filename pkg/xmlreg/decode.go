package xmlreg

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/platinummonkey/axle/pkg/identity"
	"github.com/platinummonkey/axle/pkg/observability"
)

// RoleRegistry is the decoded form of a role-registry document: roles with
// properties, parent links by name, and the user/group role-assignment sets.
type RoleRegistry struct {
	Roles       map[string]*identity.Role
	ParentRoles map[string]string              // child role name -> parent role name
	UserRoles   map[string]map[string]struct{} // username -> role names
	GroupRoles  map[string]map[string]struct{} // group name -> role names
}

// NewRoleRegistry returns an empty role registry with all maps allocated.
func NewRoleRegistry() *RoleRegistry {
	return &RoleRegistry{
		Roles:       make(map[string]*identity.Role),
		ParentRoles: make(map[string]string),
		UserRoles:   make(map[string]map[string]struct{}),
		GroupRoles:  make(map[string]map[string]struct{}),
	}
}

// UserRegistry is the decoded form of a user-registry document: users and
// groups plus the symmetric membership relations and the property-name index.
type UserRegistry struct {
	Users         map[string]*identity.User
	Groups        map[string]*identity.Group
	GroupMembers  map[string]map[string]struct{} // group name -> usernames
	UserGroups    map[string]map[string]struct{} // username -> group names
	PropertyUsers map[string]map[string]struct{} // property name -> usernames
}

// NewUserRegistry returns an empty user registry with all maps allocated.
func NewUserRegistry() *UserRegistry {
	return &UserRegistry{
		Users:         make(map[string]*identity.User),
		Groups:        make(map[string]*identity.Group),
		GroupMembers:  make(map[string]map[string]struct{}),
		UserGroups:    make(map[string]map[string]struct{}),
		PropertyUsers: make(map[string]map[string]struct{}),
	}
}

// Options control decoding behavior for both document kinds.
type Options struct {
	// Validate runs the structural schema validator before trusting the
	// document.
	Validate bool
	// Strict fails the whole load on a dangling reference (a roleRef or
	// member naming an entity absent from the document). When false the
	// reference is skipped with a warning.
	Strict bool
	// Logger receives dangling-reference warnings. Optional.
	Logger *observability.Logger
}

func (o Options) warn(msg string, fields map[string]interface{}) {
	if o.Logger != nil {
		o.Logger.WithFields(fields).Warn(msg)
	}
}

// parseDocument turns raw bytes into an etree document, returning the version
// dispatched root. Parse failures surface as ErrMalformedDocument.
func parseDocument(data []byte) (*etree.Document, *etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, nil, fmt.Errorf("parsing registry document: %v: %w", err, identity.ErrMalformedDocument)
	}
	root := doc.Root()
	if root == nil {
		return nil, nil, fmt.Errorf("registry document has no root element: %w", identity.ErrMalformedDocument)
	}
	return doc, root, nil
}

// DecodeRoles reads a role-registry document into fresh registry maps. The
// result replaces any previous registry wholesale; partial results are never
// returned alongside an error.
func DecodeRoles(data []byte, opts Options) (*RoleRegistry, error) {
	doc, root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := Validate(doc, KindRoles); err != nil {
			return nil, err
		}
	}
	paths, err := rolePathsFor(documentVersion(root))
	if err != nil {
		return nil, err
	}

	reg := NewRoleRegistry()

	// Pass 1: register every role so parent links can resolve regardless of
	// declaration order. An element without an id never registers an
	// empty-named role, even with validation disabled.
	roleElements := root.FindElementsPath(paths.roles)
	for _, el := range roleElements {
		name := el.SelectAttrValue(attrID, "")
		if name == "" {
			if opts.Strict {
				return nil, fmt.Errorf("role element has no id: %w", identity.ErrSchemaViolation)
			}
			opts.warn("skipping role element with empty id", map[string]interface{}{"index": el.Index()})
			continue
		}
		role := identity.NewRole(name)
		for _, prop := range el.FindElementsPath(paths.properties) {
			role.Properties[prop.SelectAttrValue(attrName, "")] = prop.Text()
		}
		reg.Roles[role.Name] = role
	}

	// Pass 2: parent links against the now complete role map.
	for _, el := range roleElements {
		parentID := el.SelectAttrValue(attrParentID, "")
		if parentID == "" {
			continue
		}
		name := el.SelectAttrValue(attrID, "")
		if _, ok := reg.Roles[name]; !ok {
			continue // skipped in pass 1
		}
		if _, ok := reg.Roles[parentID]; !ok {
			if opts.Strict {
				return nil, fmt.Errorf("role %q references unknown parent role %q: %w", name, parentID, identity.ErrSchemaViolation)
			}
			opts.warn("skipping unknown parent role reference", map[string]interface{}{"role": name, "parent": parentID})
			continue
		}
		reg.ParentRoles[name] = parentID
	}

	for _, el := range root.FindElementsPath(paths.userRoles) {
		username := el.SelectAttrValue(attrUsername, "")
		set, err := decodeRoleRefs(el, paths, reg, opts, "user", username)
		if err != nil {
			return nil, err
		}
		reg.UserRoles[username] = set
	}
	for _, el := range root.FindElementsPath(paths.groupRoles) {
		groupname := el.SelectAttrValue(attrGroup, "")
		set, err := decodeRoleRefs(el, paths, reg, opts, "group", groupname)
		if err != nil {
			return nil, err
		}
		reg.GroupRoles[groupname] = set
	}
	return reg, nil
}

// decodeRoleRefs resolves the roleRef children of an assignment element
// against the role map. A reference to a role absent from the document is
// never inserted: it either fails the load (strict) or is skipped with a
// warning.
func decodeRoleRefs(el *etree.Element, paths *rolePaths, reg *RoleRegistry, opts Options, ownerKind, owner string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	for _, ref := range el.FindElementsPath(paths.roleRefs) {
		roleID := ref.SelectAttrValue(attrRoleID, "")
		if _, ok := reg.Roles[roleID]; !ok {
			if opts.Strict {
				return nil, fmt.Errorf("%s %q references unknown role %q: %w", ownerKind, owner, roleID, identity.ErrSchemaViolation)
			}
			opts.warn("skipping unknown role reference", map[string]interface{}{ownerKind: owner, "role": roleID})
			continue
		}
		set[roleID] = struct{}{}
	}
	return set, nil
}

// DecodeUsers reads a user-registry document into fresh registry maps.
func DecodeUsers(data []byte, opts Options) (*UserRegistry, error) {
	doc, root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := Validate(doc, KindUsers); err != nil {
			return nil, err
		}
	}
	paths, err := userPathsFor(documentVersion(root))
	if err != nil {
		return nil, err
	}

	reg := NewUserRegistry()

	for _, el := range root.FindElementsPath(paths.users) {
		username := el.SelectAttrValue(attrName, "")
		if username == "" {
			if opts.Strict {
				return nil, fmt.Errorf("user element has no name: %w", identity.ErrSchemaViolation)
			}
			opts.warn("skipping user element with empty name", map[string]interface{}{"index": el.Index()})
			continue
		}
		user := identity.NewUser(username)
		// Presence of the password attribute is meaningful even when the
		// value is empty, so SelectAttr rather than SelectAttrValue.
		if attr := el.SelectAttr(attrPassword); attr != nil {
			user.SetPassword(attr.Value)
		}
		user.Enabled = el.SelectAttrValue(attrEnabled, "true") != "false"
		for _, prop := range el.FindElementsPath(paths.properties) {
			name := prop.SelectAttrValue(attrName, "")
			user.Properties[name] = prop.Text()
			set, ok := reg.PropertyUsers[name]
			if !ok {
				set = make(map[string]struct{})
				reg.PropertyUsers[name] = set
			}
			set[user.Username] = struct{}{}
		}
		reg.Users[user.Username] = user
	}

	for _, el := range root.FindElementsPath(paths.groups) {
		groupname := el.SelectAttrValue(attrName, "")
		if groupname == "" {
			if opts.Strict {
				return nil, fmt.Errorf("group element has no name: %w", identity.ErrSchemaViolation)
			}
			opts.warn("skipping group element with empty name", map[string]interface{}{"index": el.Index()})
			continue
		}
		group := identity.NewGroup(groupname)
		group.Enabled = el.SelectAttrValue(attrEnabled, "true") != "false"
		reg.Groups[group.Name] = group
		members := make(map[string]struct{})
		for _, member := range el.FindElementsPath(paths.members) {
			username := member.SelectAttrValue(attrUsername, "")
			if _, ok := reg.Users[username]; !ok {
				if opts.Strict {
					return nil, fmt.Errorf("group %q references unknown user %q: %w", group.Name, username, identity.ErrSchemaViolation)
				}
				opts.warn("skipping unknown group member", map[string]interface{}{"group": group.Name, "user": username})
				continue
			}
			members[username] = struct{}{}
			set, ok := reg.UserGroups[username]
			if !ok {
				set = make(map[string]struct{})
				reg.UserGroups[username] = set
			}
			set[group.Name] = struct{}{}
		}
		reg.GroupMembers[group.Name] = members
	}
	return reg, nil
}
