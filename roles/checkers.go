package roles

import (
	"context"
	"fmt"

	"github.com/talosaether/rolechassis/authdb"
)

// UserRoles returns the registered roles whose group the user belongs to.
// Groups that do not match a registered role are ignored.
func UserRoles(ctx context.Context, store authdb.Store, registry *Registry, userID string) ([]*Role, error) {
	groups, err := store.UserGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}

	var roles []*Role
	for _, group := range groups {
		if role, ok := registry.Retrieve(group.Name); ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// HasRole reports whether the user holds any of the named roles.
func HasRole(ctx context.Context, store authdb.Store, userID string, roleNames ...string) (bool, error) {
	groups, err := store.UserGroups(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list user groups: %w", err)
	}

	for _, group := range groups {
		for _, name := range roleNames {
			if group.Name == name {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasPermission reports whether the user holds the named permission as a direct grant.
func HasPermission(ctx context.Context, store authdb.Store, userID, permissionName string) (bool, error) {
	permissions, err := store.UserPermissions(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list user permissions: %w", err)
	}

	for _, permission := range permissions {
		if permission.Scope == authdb.UserScope && permission.Codename == permissionName {
			return true, nil
		}
	}
	return false, nil
}

// GrantPermission grants a permission that one of the user's roles declares,
// including permissions whose default is false.
func GrantPermission(ctx context.Context, store authdb.Store, registry *Registry, userID, permissionName string) error {
	if err := requireDeclared(ctx, store, registry, userID, permissionName); err != nil {
		return err
	}

	permission, _, err := store.GetOrCreatePermission(ctx, authdb.UserScope, permissionName)
	if err != nil {
		return fmt.Errorf("failed to get permission %q: %w", permissionName, err)
	}
	if err := store.AddUserPermissions(ctx, userID, permission); err != nil {
		return fmt.Errorf("failed to grant permission %q: %w", permissionName, err)
	}
	return nil
}

// RevokePermission revokes a permission that one of the user's roles declares.
func RevokePermission(ctx context.Context, store authdb.Store, registry *Registry, userID, permissionName string) error {
	if err := requireDeclared(ctx, store, registry, userID, permissionName); err != nil {
		return err
	}

	permissions, err := Resolve(ctx, store, []string{permissionName})
	if err != nil {
		return err
	}
	if err := store.RemoveUserPermissions(ctx, userID, permissions...); err != nil {
		return fmt.Errorf("failed to revoke permission %q: %w", permissionName, err)
	}
	return nil
}

// ClearRoles removes every registered role the user holds and returns them.
func ClearRoles(ctx context.Context, store authdb.Store, registry *Registry, userID string) ([]*Role, error) {
	held, err := UserRoles(ctx, store, registry, userID)
	if err != nil {
		return nil, err
	}

	for _, role := range held {
		if _, err := role.RemoveFromUser(ctx, store, userID); err != nil {
			return nil, err
		}
	}
	return held, nil
}

func requireDeclared(ctx context.Context, store authdb.Store, registry *Registry, userID, permissionName string) error {
	held, err := UserRoles(ctx, store, registry, userID)
	if err != nil {
		return err
	}

	for _, role := range held {
		if role.HasPermission(permissionName) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrPermissionNotInRoles, permissionName)
}
