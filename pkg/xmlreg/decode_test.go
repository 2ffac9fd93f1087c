package xmlreg

import (
	"errors"
	"reflect"
	"testing"

	"github.com/platinummonkey/axle/pkg/identity"
)

const rolesDoc = `<?xml version="1.0" encoding="UTF-8"?>
<roleRegistry version="1.0">
  <roleList>
    <role id="ROLE_AUTHENTICATED"/>
    <role id="ROLE_EDITOR" parentID="ROLE_AUTHENTICATED">
      <property name="scope">content</property>
    </role>
    <role id="ROLE_ADMIN" parentID="ROLE_EDITOR"/>
  </roleList>
  <userList>
    <userRoles username="alice">
      <roleRef roleID="ROLE_ADMIN"/>
      <roleRef roleID="ROLE_EDITOR"/>
    </userRoles>
    <userRoles username="bob"/>
  </userList>
  <groupList>
    <groupRoles groupname="editors">
      <roleRef roleID="ROLE_EDITOR"/>
    </groupRoles>
  </groupList>
</roleRegistry>`

const usersDoc = `<?xml version="1.0" encoding="UTF-8"?>
<userRegistry version="1.0">
  <users>
    <user name="alice" password="digest1:abc">
      <property name="email">alice@example.com</property>
    </user>
    <user name="bob" password="" enabled="false"/>
    <user name="carol"/>
  </users>
  <groups>
    <group name="editors">
      <member username="alice"/>
      <member username="bob"/>
    </group>
    <group name="retired" enabled="false"/>
  </groups>
</userRegistry>`

func TestDecodeRoles(t *testing.T) {
	reg, err := DecodeRoles([]byte(rolesDoc), Options{Validate: true})
	if err != nil {
		t.Fatalf("DecodeRoles failed: %v", err)
	}

	if len(reg.Roles) != 3 {
		t.Fatalf("Expected 3 roles, got %d", len(reg.Roles))
	}
	if reg.Roles["ROLE_EDITOR"].Properties["scope"] != "content" {
		t.Errorf("Expected scope property on ROLE_EDITOR")
	}
	if reg.ParentRoles["ROLE_EDITOR"] != "ROLE_AUTHENTICATED" {
		t.Errorf("Expected ROLE_EDITOR parent ROLE_AUTHENTICATED, got %q", reg.ParentRoles["ROLE_EDITOR"])
	}
	if reg.ParentRoles["ROLE_ADMIN"] != "ROLE_EDITOR" {
		t.Errorf("Expected ROLE_ADMIN parent ROLE_EDITOR, got %q", reg.ParentRoles["ROLE_ADMIN"])
	}

	wantAlice := map[string]struct{}{"ROLE_ADMIN": {}, "ROLE_EDITOR": {}}
	if !reflect.DeepEqual(reg.UserRoles["alice"], wantAlice) {
		t.Errorf("Expected alice roles %v, got %v", wantAlice, reg.UserRoles["alice"])
	}
	if set, ok := reg.UserRoles["bob"]; !ok || len(set) != 0 {
		t.Errorf("Expected empty role set for bob, got %v (present=%v)", set, ok)
	}
	if _, ok := reg.GroupRoles["editors"]["ROLE_EDITOR"]; !ok {
		t.Errorf("Expected editors group to hold ROLE_EDITOR")
	}
}

func TestDecodeRoles_ForwardParentReference(t *testing.T) {
	// The child is declared before its parent; a single pass would leave
	// the reference unresolved.
	doc := `<roleRegistry version="1.0">
  <roleList>
    <role id="CHILD" parentID="PARENT"/>
    <role id="PARENT"/>
  </roleList>
  <userList/>
  <groupList/>
</roleRegistry>`

	reg, err := DecodeRoles([]byte(doc), Options{})
	if err != nil {
		t.Fatalf("DecodeRoles failed: %v", err)
	}
	if reg.ParentRoles["CHILD"] != "PARENT" {
		t.Errorf("Expected forward parent reference to resolve, got %q", reg.ParentRoles["CHILD"])
	}
}

func TestDecodeRoles_DanglingReference(t *testing.T) {
	doc := `<roleRegistry version="1.0">
  <roleList>
    <role id="ROLE_A"/>
  </roleList>
  <userList>
    <userRoles username="alice">
      <roleRef roleID="NOPE"/>
      <roleRef roleID="ROLE_A"/>
    </userRoles>
  </userList>
  <groupList/>
</roleRegistry>`

	reg, err := DecodeRoles([]byte(doc), Options{})
	if err != nil {
		t.Fatalf("Expected dangling reference to be skipped, got error: %v", err)
	}
	if _, ok := reg.UserRoles["alice"]["NOPE"]; ok {
		t.Errorf("Dangling reference must not be inserted")
	}
	if _, ok := reg.UserRoles["alice"]["ROLE_A"]; !ok {
		t.Errorf("Valid reference must survive alongside a skipped one")
	}

	if _, err := DecodeRoles([]byte(doc), Options{Strict: true}); !errors.Is(err, identity.ErrSchemaViolation) {
		t.Errorf("Expected strict mode to fail the load, got %v", err)
	}
}

func TestDecodeRoles_EmptyIdentifierSkipped(t *testing.T) {
	// An id-less role must not register a role named "", even with
	// validation off, and its parent link must not resolve.
	doc := `<roleRegistry version="1.0">
  <roleList>
    <role/>
    <role id="" parentID="ROLE_A"/>
    <role id="ROLE_A"/>
  </roleList>
  <userList/>
  <groupList/>
</roleRegistry>`

	reg, err := DecodeRoles([]byte(doc), Options{})
	if err != nil {
		t.Fatalf("DecodeRoles failed: %v", err)
	}
	if _, ok := reg.Roles[""]; ok {
		t.Errorf("Empty role id must not register a role")
	}
	if len(reg.Roles) != 1 {
		t.Errorf("Expected 1 role, got %d", len(reg.Roles))
	}
	if _, ok := reg.ParentRoles[""]; ok {
		t.Errorf("Skipped role must not contribute a parent link")
	}

	if _, err := DecodeRoles([]byte(doc), Options{Strict: true}); !errors.Is(err, identity.ErrSchemaViolation) {
		t.Errorf("Expected strict mode to fail the load, got %v", err)
	}
}

func TestDecodeUsers_EmptyIdentifierSkipped(t *testing.T) {
	doc := `<userRegistry version="1.0">
  <users>
    <user/>
    <user name="alice"/>
  </users>
  <groups>
    <group>
      <member username="alice"/>
    </group>
    <group name="editors"/>
  </groups>
</userRegistry>`

	reg, err := DecodeUsers([]byte(doc), Options{})
	if err != nil {
		t.Fatalf("DecodeUsers failed: %v", err)
	}
	if _, ok := reg.Users[""]; ok {
		t.Errorf("Empty user name must not register a user")
	}
	if _, ok := reg.Groups[""]; ok {
		t.Errorf("Empty group name must not register a group")
	}
	if len(reg.Users) != 1 || len(reg.Groups) != 1 {
		t.Errorf("Expected 1 user and 1 group, got %d and %d", len(reg.Users), len(reg.Groups))
	}
	if _, ok := reg.UserGroups["alice"]; ok {
		t.Errorf("Skipped group must not contribute memberships")
	}

	if _, err := DecodeUsers([]byte(doc), Options{Strict: true}); !errors.Is(err, identity.ErrSchemaViolation) {
		t.Errorf("Expected strict mode to fail the load, got %v", err)
	}
}

func TestDecodeRoles_MalformedDocument(t *testing.T) {
	_, err := DecodeRoles([]byte("<roleRegistry version=\"1.0\""), Options{})
	if !errors.Is(err, identity.ErrMalformedDocument) {
		t.Errorf("Expected ErrMalformedDocument, got %v", err)
	}
}

func TestDecodeRoles_UnsupportedVersion(t *testing.T) {
	doc := `<roleRegistry version="9.9"><roleList/><userList/><groupList/></roleRegistry>`
	_, err := DecodeRoles([]byte(doc), Options{})
	if !errors.Is(err, identity.ErrUnsupportedVersion) {
		t.Errorf("Expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeRoles_SchemaToggle(t *testing.T) {
	// Well-formed but structurally invalid: unknown element under roleList.
	doc := `<roleRegistry version="1.0">
  <roleList>
    <bogus/>
  </roleList>
  <userList/>
  <groupList/>
</roleRegistry>`

	if _, err := DecodeRoles([]byte(doc), Options{Validate: false}); err != nil {
		t.Errorf("Expected load to succeed with validation disabled, got %v", err)
	}
	if _, err := DecodeRoles([]byte(doc), Options{Validate: true}); !errors.Is(err, identity.ErrSchemaViolation) {
		t.Errorf("Expected ErrSchemaViolation with validation enabled, got %v", err)
	}
}

func TestDecodeUsers(t *testing.T) {
	reg, err := DecodeUsers([]byte(usersDoc), Options{Validate: true})
	if err != nil {
		t.Fatalf("DecodeUsers failed: %v", err)
	}

	alice := reg.Users["alice"]
	if alice == nil {
		t.Fatal("Expected user alice")
	}
	if !alice.Enabled {
		t.Errorf("Expected enabled to default to true")
	}
	if !alice.HasPassword() || *alice.Password != "digest1:abc" {
		t.Errorf("Expected alice password to be present")
	}
	if alice.Properties["email"] != "alice@example.com" {
		t.Errorf("Expected email property on alice")
	}

	bob := reg.Users["bob"]
	if bob.Enabled {
		t.Errorf("Expected bob to be disabled")
	}
	if !bob.HasPassword() || *bob.Password != "" {
		t.Errorf("Expected bob to have an empty but present password")
	}

	if reg.Users["carol"].HasPassword() {
		t.Errorf("Expected carol to have no password attribute")
	}

	if _, ok := reg.GroupMembers["editors"]["alice"]; !ok {
		t.Errorf("Expected alice in editors")
	}
	if _, ok := reg.UserGroups["bob"]["editors"]; !ok {
		t.Errorf("Expected symmetric membership relation for bob")
	}
	if reg.Groups["retired"].Enabled {
		t.Errorf("Expected retired group to be disabled")
	}
	if _, ok := reg.PropertyUsers["email"]["alice"]; !ok {
		t.Errorf("Expected property index entry for alice")
	}
}

func TestDecodeUsers_DanglingMember(t *testing.T) {
	doc := `<userRegistry version="1.0">
  <users>
    <user name="alice"/>
  </users>
  <groups>
    <group name="g">
      <member username="ghost"/>
      <member username="alice"/>
    </group>
  </groups>
</userRegistry>`

	reg, err := DecodeUsers([]byte(doc), Options{})
	if err != nil {
		t.Fatalf("Expected dangling member to be skipped, got %v", err)
	}
	if _, ok := reg.GroupMembers["g"]["ghost"]; ok {
		t.Errorf("Dangling member must not be inserted")
	}
	if _, err := DecodeUsers([]byte(doc), Options{Strict: true}); !errors.Is(err, identity.ErrSchemaViolation) {
		t.Errorf("Expected strict mode to fail the load, got %v", err)
	}
}

func TestRoundTrip_Roles(t *testing.T) {
	reg, err := DecodeRoles([]byte(rolesDoc), Options{Validate: true})
	if err != nil {
		t.Fatalf("DecodeRoles failed: %v", err)
	}
	data, err := EncodeRoles(reg)
	if err != nil {
		t.Fatalf("EncodeRoles failed: %v", err)
	}
	reg2, err := DecodeRoles(data, Options{Validate: true})
	if err != nil {
		t.Fatalf("Decode of encoded document failed: %v", err)
	}

	if !reflect.DeepEqual(reg.Roles, reg2.Roles) {
		t.Errorf("Role maps differ after round-trip")
	}
	if !reflect.DeepEqual(reg.ParentRoles, reg2.ParentRoles) {
		t.Errorf("Parent links differ after round-trip")
	}
	if !reflect.DeepEqual(reg.UserRoles, reg2.UserRoles) {
		t.Errorf("User role assignments differ after round-trip")
	}
	if !reflect.DeepEqual(reg.GroupRoles, reg2.GroupRoles) {
		t.Errorf("Group role assignments differ after round-trip")
	}
}

func TestRoundTrip_Users(t *testing.T) {
	reg, err := DecodeUsers([]byte(usersDoc), Options{Validate: true})
	if err != nil {
		t.Fatalf("DecodeUsers failed: %v", err)
	}
	data, err := EncodeUsers(reg)
	if err != nil {
		t.Fatalf("EncodeUsers failed: %v", err)
	}
	reg2, err := DecodeUsers(data, Options{Validate: true})
	if err != nil {
		t.Fatalf("Decode of encoded document failed: %v", err)
	}

	if !reflect.DeepEqual(reg.Users, reg2.Users) {
		t.Errorf("User maps differ after round-trip")
	}
	if !reflect.DeepEqual(reg.Groups, reg2.Groups) {
		t.Errorf("Group maps differ after round-trip")
	}
	if !reflect.DeepEqual(reg.GroupMembers, reg2.GroupMembers) {
		t.Errorf("Membership relations differ after round-trip")
	}
	if !reflect.DeepEqual(reg.PropertyUsers, reg2.PropertyUsers) {
		t.Errorf("Property index differs after round-trip")
	}

	// Password presence vs emptiness survives the round-trip.
	if !reg2.Users["bob"].HasPassword() || *reg2.Users["bob"].Password != "" {
		t.Errorf("Empty-but-present password lost in round-trip")
	}
	if reg2.Users["carol"].HasPassword() {
		t.Errorf("Absent password gained an attribute in round-trip")
	}
}

func TestEncodeRoles_Deterministic(t *testing.T) {
	reg, err := DecodeRoles([]byte(rolesDoc), Options{})
	if err != nil {
		t.Fatalf("DecodeRoles failed: %v", err)
	}
	first, err := EncodeRoles(reg)
	if err != nil {
		t.Fatalf("EncodeRoles failed: %v", err)
	}
	second, err := EncodeRoles(reg)
	if err != nil {
		t.Fatalf("EncodeRoles failed: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("Expected byte-stable serialization of an unchanged registry")
	}
}
