package registry

import (
	"context"
	"testing"

	"github.com/platinummonkey/axle/pkg/identity"
)

// Builds a pair of committed registries:
//
//	ROOT <- STAFF <- EDITOR
//	alice: EDITOR (direct)
//	bob:   member of "writers" (enabled, carries STAFF) and "legacy" (disabled, carries ROOT)
func newCalculatorFixture(t *testing.T) (*RoleService, *UserGroupService) {
	t.Helper()
	ctx := context.Background()

	roles := newTestRoleService(t)
	rs, err := roles.CreateStore()
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	for _, name := range []string{"ROOT", "STAFF", "EDITOR"} {
		if err := rs.AddRole(identity.NewRole(name)); err != nil {
			t.Fatalf("AddRole failed: %v", err)
		}
	}
	if err := rs.SetParentRole("STAFF", "ROOT"); err != nil {
		t.Fatalf("SetParentRole failed: %v", err)
	}
	if err := rs.SetParentRole("EDITOR", "STAFF"); err != nil {
		t.Fatalf("SetParentRole failed: %v", err)
	}
	if err := rs.AssociateRoleToUser("EDITOR", "alice"); err != nil {
		t.Fatalf("AssociateRoleToUser failed: %v", err)
	}
	if err := rs.AssociateRoleToGroup("STAFF", "writers"); err != nil {
		t.Fatalf("AssociateRoleToGroup failed: %v", err)
	}
	if err := rs.AssociateRoleToGroup("ROOT", "legacy"); err != nil {
		t.Fatalf("AssociateRoleToGroup failed: %v", err)
	}
	if err := rs.Store(ctx); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	users := newTestUserService(t)
	us, err := users.CreateStore()
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	if err := us.AddUser(identity.NewUser("alice")); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if err := us.AddUser(identity.NewUser("bob")); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if err := us.AddGroup(identity.NewGroup("writers")); err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	legacy := identity.NewGroup("legacy")
	legacy.Enabled = false
	if err := us.AddGroup(legacy); err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}
	if err := us.AssociateUserToGroup("bob", "writers"); err != nil {
		t.Fatalf("AssociateUserToGroup failed: %v", err)
	}
	if err := us.AssociateUserToGroup("bob", "legacy"); err != nil {
		t.Fatalf("AssociateUserToGroup failed: %v", err)
	}
	if err := us.Store(ctx); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	return roles, users
}

func roleNames(roles []*identity.Role) map[string]bool {
	names := make(map[string]bool, len(roles))
	for _, r := range roles {
		names[r.Name] = true
	}
	return names
}

func TestRoleCalculator_DirectRolesExpandAncestors(t *testing.T) {
	roles, users := newCalculatorFixture(t)
	calc := NewRoleCalculator(roles, users)

	effective, err := calc.EffectiveRoles("alice")
	if err != nil {
		t.Fatalf("EffectiveRoles failed: %v", err)
	}
	got := roleNames(effective)
	for _, want := range []string{"EDITOR", "STAFF", "ROOT"} {
		if !got[want] {
			t.Errorf("Expected alice to hold %s, got %v", want, got)
		}
	}
	if len(got) != 3 {
		t.Errorf("Expected exactly 3 effective roles, got %v", got)
	}
}

func TestRoleCalculator_DisabledGroupContributesNothing(t *testing.T) {
	roles, users := newCalculatorFixture(t)
	calc := NewRoleCalculator(roles, users)

	effective, err := calc.EffectiveRoles("bob")
	if err != nil {
		t.Fatalf("EffectiveRoles failed: %v", err)
	}
	got := roleNames(effective)
	// "writers" carries STAFF, which in turn inherits ROOT. The disabled
	// "legacy" group must not contribute anything on its own.
	if !got["STAFF"] || !got["ROOT"] {
		t.Errorf("Expected bob to inherit STAFF chain via writers, got %v", got)
	}
	if got["EDITOR"] {
		t.Errorf("Expected bob not to hold EDITOR, got %v", got)
	}
	if len(got) != 2 {
		t.Errorf("Expected exactly 2 effective roles, got %v", got)
	}
}

func TestRoleCalculator_UnknownUser(t *testing.T) {
	roles, users := newCalculatorFixture(t)
	calc := NewRoleCalculator(roles, users)

	got, err := calc.EffectiveRoles("nobody")
	if err != nil {
		t.Fatalf("EffectiveRoles failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no roles for unknown user, got %v", got)
	}
}
