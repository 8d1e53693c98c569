package authdb

import (
	"context"
	"errors"
	"testing"
)

// runStoreTests exercises the Store contract against any backend.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetUser", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user, err := store.CreateUser(ctx, "alice")
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.ID == "" {
			t.Fatal("CreateUser should assign an ID")
		}

		got, err := store.GetUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if got.Username != "alice" {
			t.Errorf("Username mismatch: got %q, want %q", got.Username, "alice")
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		if _, err := store.CreateUser(ctx, "bob"); err != nil {
			t.Fatalf("first CreateUser failed: %v", err)
		}
		_, err := store.CreateUser(ctx, "bob")
		if !errors.Is(err, ErrUsernameExists) {
			t.Errorf("expected ErrUsernameExists, got: %v", err)
		}
	})

	t.Run("EmptyUsername", func(t *testing.T) {
		store := newStore(t)
		_, err := store.CreateUser(context.Background(), "")
		if !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("expected ErrInvalidUsername, got: %v", err)
		}
	})

	t.Run("GetUserByUsername", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user, err := store.CreateUser(ctx, "carol")
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}

		got, err := store.GetUserByUsername(ctx, "carol")
		if err != nil {
			t.Fatalf("GetUserByUsername failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("ID mismatch: got %q, want %q", got.ID, user.ID)
		}

		if _, err := store.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got: %v", err)
		}
	})

	t.Run("GetUserNotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetUser(context.Background(), "nonexistent")
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got: %v", err)
		}
	})

	t.Run("GetOrCreateGroup", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		group, created, err := store.GetOrCreateGroup(ctx, "editor")
		if err != nil {
			t.Fatalf("GetOrCreateGroup failed: %v", err)
		}
		if !created {
			t.Error("first call should create the group")
		}

		again, created, err := store.GetOrCreateGroup(ctx, "editor")
		if err != nil {
			t.Fatalf("second GetOrCreateGroup failed: %v", err)
		}
		if created {
			t.Error("second call should not create the group")
		}
		if again.ID != group.ID {
			t.Errorf("ID mismatch: got %q, want %q", again.ID, group.ID)
		}
	})

	t.Run("GetGroupNotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetGroup(context.Background(), "missing")
		if !errors.Is(err, ErrGroupNotFound) {
			t.Errorf("expected ErrGroupNotFound, got: %v", err)
		}
	})

	t.Run("GetOrCreatePermission", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		permission, created, err := store.GetOrCreatePermission(ctx, UserScope, "edit_post")
		if err != nil {
			t.Fatalf("GetOrCreatePermission failed: %v", err)
		}
		if !created {
			t.Error("first call should create the permission")
		}
		if permission.Scope != UserScope || permission.Codename != "edit_post" {
			t.Errorf("unexpected permission: %+v", permission)
		}

		again, created, err := store.GetOrCreatePermission(ctx, UserScope, "edit_post")
		if err != nil {
			t.Fatalf("second GetOrCreatePermission failed: %v", err)
		}
		if created {
			t.Error("second call should not create the permission")
		}
		if again.ID != permission.ID {
			t.Errorf("ID mismatch: got %q, want %q", again.ID, permission.ID)
		}

		other, created, err := store.GetOrCreatePermission(ctx, "post", "edit_post")
		if err != nil {
			t.Fatalf("GetOrCreatePermission in another scope failed: %v", err)
		}
		if !created || other.ID == permission.ID {
			t.Error("same codename in a different scope should be a distinct permission")
		}
	})

	t.Run("GetOrCreatePermissionInvalid", func(t *testing.T) {
		store := newStore(t)
		_, _, err := store.GetOrCreatePermission(context.Background(), UserScope, "")
		if !errors.Is(err, ErrInvalidPermission) {
			t.Errorf("expected ErrInvalidPermission, got: %v", err)
		}
	})

	t.Run("FilterPermissions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, codename := range []string{"a", "b", "c"} {
			if _, _, err := store.GetOrCreatePermission(ctx, UserScope, codename); err != nil {
				t.Fatalf("GetOrCreatePermission(%q) failed: %v", codename, err)
			}
		}
		if _, _, err := store.GetOrCreatePermission(ctx, "post", "d"); err != nil {
			t.Fatalf("GetOrCreatePermission failed: %v", err)
		}

		found, err := store.FilterPermissions(ctx, UserScope, []string{"a", "c", "d", "missing"})
		if err != nil {
			t.Fatalf("FilterPermissions failed: %v", err)
		}
		if got := codenames(found); !equalStrings(got, []string{"a", "c"}) {
			t.Errorf("FilterPermissions = %v, want [a c]", got)
		}

		none, err := store.FilterPermissions(ctx, UserScope, nil)
		if err != nil {
			t.Fatalf("FilterPermissions(nil) failed: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("FilterPermissions(nil) should be empty, got %d", len(none))
		}
	})

	t.Run("UserGroupsAddRemove", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user, _ := store.CreateUser(ctx, "carol")
		writers, _, _ := store.GetOrCreateGroup(ctx, "writers")
		readers, _, _ := store.GetOrCreateGroup(ctx, "readers")

		if err := store.AddUserGroups(ctx, user.ID, writers, readers); err != nil {
			t.Fatalf("AddUserGroups failed: %v", err)
		}
		// Adding again is a no-op.
		if err := store.AddUserGroups(ctx, user.ID, writers); err != nil {
			t.Fatalf("repeated AddUserGroups failed: %v", err)
		}

		groups, err := store.UserGroups(ctx, user.ID)
		if err != nil {
			t.Fatalf("UserGroups failed: %v", err)
		}
		if len(groups) != 2 || groups[0].Name != "readers" || groups[1].Name != "writers" {
			t.Errorf("unexpected groups: %v", groupNames(groups))
		}

		if err := store.RemoveUserGroups(ctx, user.ID, writers); err != nil {
			t.Fatalf("RemoveUserGroups failed: %v", err)
		}
		// Removing an absent membership is a no-op.
		if err := store.RemoveUserGroups(ctx, user.ID, writers); err != nil {
			t.Fatalf("repeated RemoveUserGroups failed: %v", err)
		}

		groups, _ = store.UserGroups(ctx, user.ID)
		if len(groups) != 1 || groups[0].Name != "readers" {
			t.Errorf("unexpected groups after remove: %v", groupNames(groups))
		}
	})

	t.Run("UserPermissionsAddRemove", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user, _ := store.CreateUser(ctx, "dave")
		read, _, _ := store.GetOrCreatePermission(ctx, UserScope, "read")
		write, _, _ := store.GetOrCreatePermission(ctx, UserScope, "write")

		if err := store.AddUserPermissions(ctx, user.ID, write, read); err != nil {
			t.Fatalf("AddUserPermissions failed: %v", err)
		}
		if err := store.AddUserPermissions(ctx, user.ID, read); err != nil {
			t.Fatalf("repeated AddUserPermissions failed: %v", err)
		}

		permissions, err := store.UserPermissions(ctx, user.ID)
		if err != nil {
			t.Fatalf("UserPermissions failed: %v", err)
		}
		if got := codenames(permissions); !equalStrings(got, []string{"read", "write"}) {
			t.Errorf("UserPermissions = %v, want [read write]", got)
		}

		if err := store.RemoveUserPermissions(ctx, user.ID, write); err != nil {
			t.Fatalf("RemoveUserPermissions failed: %v", err)
		}
		permissions, _ = store.UserPermissions(ctx, user.ID)
		if got := codenames(permissions); !equalStrings(got, []string{"read"}) {
			t.Errorf("UserPermissions after remove = %v, want [read]", got)
		}
	})

	t.Run("RelationsRequireUser", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		group, _, _ := store.GetOrCreateGroup(ctx, "orphans")
		if err := store.AddUserGroups(ctx, "nonexistent", group); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("AddUserGroups: expected ErrUserNotFound, got: %v", err)
		}
		permission, _, _ := store.GetOrCreatePermission(ctx, UserScope, "orphan")
		if err := store.AddUserPermissions(ctx, "nonexistent", permission); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("AddUserPermissions: expected ErrUserNotFound, got: %v", err)
		}
		if _, err := store.UserPermissions(ctx, "nonexistent"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("UserPermissions: expected ErrUserNotFound, got: %v", err)
		}
		if _, err := store.UserGroups(ctx, "nonexistent"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("UserGroups: expected ErrUserNotFound, got: %v", err)
		}
	})
}

func codenames(permissions []*Permission) []string {
	names := make([]string, 0, len(permissions))
	for _, permission := range permissions {
		names = append(names, permission.Codename)
	}
	return names
}

func groupNames(groups []*Group) []string {
	names := make([]string, 0, len(groups))
	for _, group := range groups {
		names = append(names, group.Name)
	}
	return names
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
