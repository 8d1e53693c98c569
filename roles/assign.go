package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/talosaether/rolechassis/authdb"
)

// AssignToUser gives the role to a user. The user joins the role's group,
// created on first use, and is granted every default-true permission.
// Roles the user already holds are left untouched. Repeated calls are no-ops.
func (role *Role) AssignToUser(ctx context.Context, store authdb.Store, userID string) (*authdb.Group, error) {
	if _, err := store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", userID, err)
	}

	group, _, err := store.GetOrCreateGroup(ctx, role.name)
	if err != nil {
		return nil, fmt.Errorf("failed to get group for role %q: %w", role.name, err)
	}

	if err := store.AddUserGroups(ctx, userID, group); err != nil {
		return nil, fmt.Errorf("failed to add user to group %q: %w", group.Name, err)
	}

	defaults := role.DefaultTruePermissionNames()
	if len(defaults) == 0 {
		return group, nil
	}

	permissions, err := ResolveOrCreate(ctx, store, defaults)
	if err != nil {
		return nil, err
	}
	if err := store.AddUserPermissions(ctx, userID, permissions...); err != nil {
		return nil, fmt.Errorf("failed to grant permissions for role %q: %w", role.name, err)
	}

	return group, nil
}

// RemoveFromUser takes the role away from a user: the user leaves the role's
// group and loses every permission the role declares, default or not.
// Nothing is created. The returned group is nil if the role was never assigned
// to anyone.
func (role *Role) RemoveFromUser(ctx context.Context, store authdb.Store, userID string) (*authdb.Group, error) {
	group, err := store.GetGroup(ctx, role.name)
	if err != nil && !errors.Is(err, authdb.ErrGroupNotFound) {
		return nil, fmt.Errorf("failed to get group for role %q: %w", role.name, err)
	}

	if group != nil {
		if err := store.RemoveUserGroups(ctx, userID, group); err != nil {
			return nil, fmt.Errorf("failed to remove user from group %q: %w", group.Name, err)
		}
	}

	permissions, err := Resolve(ctx, store, role.PermissionNames())
	if err != nil {
		return nil, err
	}
	if err := store.RemoveUserPermissions(ctx, userID, permissions...); err != nil {
		return nil, fmt.Errorf("failed to revoke permissions for role %q: %w", role.name, err)
	}

	return group, nil
}
