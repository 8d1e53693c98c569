package roles

import (
	"context"
	"fmt"

	"github.com/talosaether/rolechassis/authdb"
)

// ResolveOrCreate returns the user-scoped permission records for names,
// creating any that do not exist yet. The result order is unspecified.
func ResolveOrCreate(ctx context.Context, store authdb.Store, names []string) ([]*authdb.Permission, error) {
	existing, err := store.FilterPermissions(ctx, authdb.UserScope, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	if len(existing) >= countUnique(names) {
		return existing, nil
	}

	permissions := existing
	seen := make(map[string]struct{}, len(existing))
	for _, permission := range existing {
		seen[permission.ID] = struct{}{}
	}
	for _, name := range names {
		// A concurrent assigner may have created it since the filter ran,
		// so keep it whether or not this call created it.
		permission, _, err := store.GetOrCreatePermission(ctx, authdb.UserScope, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create permission %q: %w", name, err)
		}
		if _, ok := seen[permission.ID]; ok {
			continue
		}
		seen[permission.ID] = struct{}{}
		permissions = append(permissions, permission)
	}
	return permissions, nil
}

// Resolve returns the user-scoped permission records that already exist for names.
func Resolve(ctx context.Context, store authdb.Store, names []string) ([]*authdb.Permission, error) {
	permissions, err := store.FilterPermissions(ctx, authdb.UserScope, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	return permissions, nil
}

func countUnique(names []string) int {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		seen[name] = struct{}{}
	}
	return len(seen)
}
