package roles

import (
	"errors"
	"testing"
)

var (
	RolRole1 = Declare("RolRole1",
		WithPermission("permission1", true),
		WithPermission("permission2", true),
	)

	RolRole2 = Declare("RolRole2",
		WithPermission("permission3", true),
		WithPermission("permission4", false),
	)

	RolRole3 = Declare("RolRole3",
		WithName("new_name"),
		WithPermission("permission5", false),
		WithPermission("permission6", false),
	)
)

func TestRole_Name(t *testing.T) {
	tests := []struct {
		role     *Role
		expected string
	}{
		{RolRole1, "rol_role1"},
		{RolRole2, "rol_role2"},
		{RolRole3, "new_name"},
	}

	for _, tt := range tests {
		if got := tt.role.Name(); got != tt.expected {
			t.Errorf("%s: Name() = %q, want %q", tt.role.Identifier(), got, tt.expected)
		}
	}
}

func TestRole_PermissionNames(t *testing.T) {
	assertStrings(t, RolRole1.PermissionNames(), []string{"permission1", "permission2"})
	assertStrings(t, RolRole2.PermissionNames(), []string{"permission3", "permission4"})
	assertStrings(t, RolRole3.PermissionNames(), []string{"permission5", "permission6"})
}

func TestRole_DefaultTruePermissionNames(t *testing.T) {
	assertStrings(t, RolRole1.DefaultTruePermissionNames(), []string{"permission1", "permission2"})
	assertStrings(t, RolRole2.DefaultTruePermissionNames(), []string{"permission3"})
	assertStrings(t, RolRole3.DefaultTruePermissionNames(), nil)
}

func TestRole_Default(t *testing.T) {
	granted, err := RolRole2.Default("permission3")
	if err != nil || !granted {
		t.Errorf("Default(permission3) = %v, %v; want true, nil", granted, err)
	}

	granted, err = RolRole2.Default("permission4")
	if err != nil || granted {
		t.Errorf("Default(permission4) = %v, %v; want false, nil", granted, err)
	}

	_, err = RolRole2.Default("permission1")
	if !errors.Is(err, ErrUnknownPermission) {
		t.Errorf("expected ErrUnknownPermission, got: %v", err)
	}
}

func TestRole_HasPermission(t *testing.T) {
	if !RolRole2.HasPermission("permission4") {
		t.Error("rol_role2 should declare permission4")
	}
	if RolRole2.HasPermission("permission1") {
		t.Error("rol_role2 should not declare permission1")
	}
}

func TestNewRole_RedeclaredPermissionKeepsPosition(t *testing.T) {
	role := NewRole("Reviewer",
		WithPermission("read", true),
		WithPermission("comment", false),
		WithPermissions(Grant{Name: "read", Default: false}, Grant{Name: "approve", Default: true}),
	)

	assertStrings(t, role.PermissionNames(), []string{"read", "comment", "approve"})
	assertStrings(t, role.DefaultTruePermissionNames(), []string{"approve"})
}

func TestRole_GrantsIsACopy(t *testing.T) {
	grants := RolRole1.Grants()
	grants[0].Default = false

	if granted, _ := RolRole1.Default("permission1"); !granted {
		t.Error("mutating Grants() result should not change the role")
	}
}

func TestNewRole_DoesNotRegister(t *testing.T) {
	role := NewRole("UnregisteredThing")
	if _, ok := Retrieve(role.Name()); ok {
		t.Error("NewRole should not register the role")
	}
}

func assertStrings(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
