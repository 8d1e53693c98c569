package authdb

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using in-memory maps.
type MemoryStore struct {
	mu              sync.RWMutex
	users           map[string]*User                  // userID -> User
	groups          map[string]*Group                 // name -> Group
	permissions     map[string]*Permission            // scope + "." + codename -> Permission
	userGroups      map[string]map[string]*Group      // userID -> groupID -> Group
	userPermissions map[string]map[string]*Permission // userID -> permissionID -> Permission
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[string]*User),
		groups:          make(map[string]*Group),
		permissions:     make(map[string]*Permission),
		userGroups:      make(map[string]map[string]*Group),
		userPermissions: make(map[string]map[string]*Permission),
	}
}

func permissionKey(scope, codename string) string {
	return scope + "." + codename
}

// CreateUser adds a new user.
func (store *MemoryStore) CreateUser(ctx context.Context, username string) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	for _, existing := range store.users {
		if existing.Username == username {
			return nil, ErrUsernameExists
		}
	}

	user := &User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now(),
	}
	store.users[user.ID] = user
	return copyUser(user), nil
}

// GetUser retrieves a user by ID.
func (store *MemoryStore) GetUser(ctx context.Context, id string) (*User, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	user, ok := store.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

// GetUserByUsername retrieves a user by username.
func (store *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	for _, user := range store.users {
		if user.Username == username {
			return copyUser(user), nil
		}
	}
	return nil, ErrUserNotFound
}

// GetOrCreateGroup returns the named group, creating it if needed.
func (store *MemoryStore) GetOrCreateGroup(ctx context.Context, name string) (*Group, bool, error) {
	if err := validateGroupName(name); err != nil {
		return nil, false, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if group, ok := store.groups[name]; ok {
		return copyGroup(group), false, nil
	}

	group := &Group{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	store.groups[name] = group
	return copyGroup(group), true, nil
}

// GetGroup retrieves a group by name.
func (store *MemoryStore) GetGroup(ctx context.Context, name string) (*Group, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	group, ok := store.groups[name]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return copyGroup(group), nil
}

// GetOrCreatePermission returns the permission for scope and codename, creating it if needed.
func (store *MemoryStore) GetOrCreatePermission(ctx context.Context, scope, codename string) (*Permission, bool, error) {
	if err := validateCodename(scope, codename); err != nil {
		return nil, false, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	key := permissionKey(scope, codename)
	if permission, ok := store.permissions[key]; ok {
		return copyPermission(permission), false, nil
	}

	permission := &Permission{
		ID:        uuid.New().String(),
		Scope:     scope,
		Codename:  codename,
		CreatedAt: time.Now(),
	}
	store.permissions[key] = permission
	return copyPermission(permission), true, nil
}

// FilterPermissions returns the existing permissions in scope whose codename is listed.
func (store *MemoryStore) FilterPermissions(ctx context.Context, scope string, codenames []string) ([]*Permission, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var permissions []*Permission
	seen := make(map[string]bool, len(codenames))
	for _, codename := range codenames {
		if seen[codename] {
			continue
		}
		seen[codename] = true
		if permission, ok := store.permissions[permissionKey(scope, codename)]; ok {
			permissions = append(permissions, copyPermission(permission))
		}
	}
	sortPermissions(permissions)
	return permissions, nil
}

// AddUserGroups adds the user to each group. Existing memberships are kept as is.
func (store *MemoryStore) AddUserGroups(ctx context.Context, userID string, groups ...*Group) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.users[userID]; !ok {
		return ErrUserNotFound
	}
	if store.userGroups[userID] == nil {
		store.userGroups[userID] = make(map[string]*Group)
	}
	for _, group := range groups {
		store.userGroups[userID][group.ID] = copyGroup(group)
	}
	return nil
}

// RemoveUserGroups removes the user from each group.
func (store *MemoryStore) RemoveUserGroups(ctx context.Context, userID string, groups ...*Group) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.users[userID]; !ok {
		return ErrUserNotFound
	}
	for _, group := range groups {
		delete(store.userGroups[userID], group.ID)
	}
	return nil
}

// UserGroups lists the groups a user belongs to, ordered by name.
func (store *MemoryStore) UserGroups(ctx context.Context, userID string) ([]*Group, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if _, ok := store.users[userID]; !ok {
		return nil, ErrUserNotFound
	}

	groups := make([]*Group, 0, len(store.userGroups[userID]))
	for _, group := range store.userGroups[userID] {
		groups = append(groups, copyGroup(group))
	}
	slices.SortFunc(groups, func(a, b *Group) int {
		return strings.Compare(a.Name, b.Name)
	})
	return groups, nil
}

// AddUserPermissions grants each permission directly to the user.
func (store *MemoryStore) AddUserPermissions(ctx context.Context, userID string, permissions ...*Permission) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.users[userID]; !ok {
		return ErrUserNotFound
	}
	if store.userPermissions[userID] == nil {
		store.userPermissions[userID] = make(map[string]*Permission)
	}
	for _, permission := range permissions {
		store.userPermissions[userID][permission.ID] = copyPermission(permission)
	}
	return nil
}

// RemoveUserPermissions revokes each directly granted permission.
func (store *MemoryStore) RemoveUserPermissions(ctx context.Context, userID string, permissions ...*Permission) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.users[userID]; !ok {
		return ErrUserNotFound
	}
	for _, permission := range permissions {
		delete(store.userPermissions[userID], permission.ID)
	}
	return nil
}

// UserPermissions lists the permissions granted directly to a user, ordered by codename.
func (store *MemoryStore) UserPermissions(ctx context.Context, userID string) ([]*Permission, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if _, ok := store.users[userID]; !ok {
		return nil, ErrUserNotFound
	}

	permissions := make([]*Permission, 0, len(store.userPermissions[userID]))
	for _, permission := range store.userPermissions[userID] {
		permissions = append(permissions, copyPermission(permission))
	}
	sortPermissions(permissions)
	return permissions, nil
}

// Close is a no-op for the in-memory store.
func (store *MemoryStore) Close() error {
	return nil
}

func sortPermissions(permissions []*Permission) {
	slices.SortFunc(permissions, func(a, b *Permission) int {
		return strings.Compare(a.Codename, b.Codename)
	})
}

func copyUser(user *User) *User {
	clone := *user
	return &clone
}

func copyGroup(group *Group) *Group {
	clone := *group
	return &clone
}

func copyPermission(permission *Permission) *Permission {
	clone := *permission
	return &clone
}
