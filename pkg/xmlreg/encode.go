package xmlreg

import (
	"fmt"
	"sort"

	"github.com/beevik/etree"

	"github.com/platinummonkey/axle/pkg/identity"
)

// EncodeRoles serializes a role registry to its XML document form. Output is
// deterministic: roles, assignments, references, and properties are emitted
// in sorted order so that commits of an unchanged registry are byte-stable.
func EncodeRoles(reg *RoleRegistry) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("roleRegistry")
	root.CreateAttr(attrVersion, VersionRoles10)

	roleList := root.CreateElement("roleList")
	roleNames := make([]string, 0, len(reg.Roles))
	for name := range reg.Roles {
		roleNames = append(roleNames, name)
	}
	sort.Strings(roleNames)
	for _, name := range roleNames {
		role := reg.Roles[name]
		el := roleList.CreateElement("role")
		el.CreateAttr(attrID, role.Name)
		if parent, ok := reg.ParentRoles[role.Name]; ok {
			el.CreateAttr(attrParentID, parent)
		}
		writeProperties(el, role.Properties)
	}

	userList := root.CreateElement("userList")
	for _, username := range sortedKeys(reg.UserRoles) {
		el := userList.CreateElement("userRoles")
		el.CreateAttr(attrUsername, username)
		writeRoleRefs(el, reg.UserRoles[username])
	}

	groupList := root.CreateElement("groupList")
	for _, groupname := range sortedKeys(reg.GroupRoles) {
		el := groupList.CreateElement("groupRoles")
		el.CreateAttr(attrGroup, groupname)
		writeRoleRefs(el, reg.GroupRoles[groupname])
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing role registry: %w", err)
	}
	return data, nil
}

// EncodeUsers serializes a user registry to its XML document form. A user
// without a local password gets no password attribute at all; an empty
// password is emitted as an empty attribute value. The two must stay
// distinguishable through round-trips.
func EncodeUsers(reg *UserRegistry) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("userRegistry")
	root.CreateAttr(attrVersion, VersionUsers10)

	users := root.CreateElement("users")
	usernames := make([]string, 0, len(reg.Users))
	for name := range reg.Users {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)
	for _, name := range usernames {
		user := reg.Users[name]
		el := users.CreateElement("user")
		el.CreateAttr(attrName, user.Username)
		if user.Password != nil {
			el.CreateAttr(attrPassword, *user.Password)
		}
		if !user.Enabled {
			el.CreateAttr(attrEnabled, "false")
		}
		writeProperties(el, user.Properties)
	}

	groups := root.CreateElement("groups")
	groupNames := make([]string, 0, len(reg.Groups))
	for name := range reg.Groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		group := reg.Groups[name]
		el := groups.CreateElement("group")
		el.CreateAttr(attrName, group.Name)
		if !group.Enabled {
			el.CreateAttr(attrEnabled, "false")
		}
		for _, username := range identity.SortedNames(reg.GroupMembers[group.Name]) {
			member := el.CreateElement("member")
			member.CreateAttr(attrUsername, username)
		}
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing user registry: %w", err)
	}
	return data, nil
}

func writeProperties(el *etree.Element, props map[string]string) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		prop := el.CreateElement("property")
		prop.CreateAttr(attrName, k)
		prop.SetText(props[k])
	}
}

func writeRoleRefs(el *etree.Element, roles map[string]struct{}) {
	for _, roleID := range identity.SortedNames(roles) {
		ref := el.CreateElement("roleRef")
		ref.CreateAttr(attrRoleID, roleID)
	}
}

func sortedKeys(m map[string]map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
