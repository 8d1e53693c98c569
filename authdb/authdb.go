// Package authdb provides the user, group and permission records that the
// roles package materializes roles into.
//
// Three backends implement the Store interface:
//
//	authdb.NewSQLiteStore("./data/roles.db")        // default, modernc.org/sqlite
//	authdb.NewPostgresStore(ctx, os.Getenv("DSN"))  // jackc/pgx connection pool
//	authdb.NewMemoryStore()                         // tests and throwaway apps
//
// A user holds a set of groups and a set of directly granted permissions.
// Permissions are identified by a scope (the record type they apply to) and
// a codename. Every add and remove operation is idempotent.
package authdb

import (
	"context"
	"errors"
	"time"
)

// UserScope is the permission scope for permissions that apply to users.
const UserScope = "user"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrGroupNotFound      = errors.New("group not found")
	ErrInvalidGroupName   = errors.New("invalid group name")
	ErrInvalidPermission  = errors.New("invalid permission codename")
	ErrPermissionNotFound = errors.New("permission not found")
)

// User is an account that groups and permissions are attached to.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// Group is a named collection of users.
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Permission is a named capability scoped to a record type.
type Permission struct {
	ID        string
	Scope     string
	Codename  string
	CreatedAt time.Time
}

// Store defines the persistence operations the roles layer relies on.
// Implement this interface to use a different database backend.
type Store interface {
	CreateUser(ctx context.Context, username string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetOrCreateGroup returns the group with the given name, creating it
	// when missing. The bool reports whether it was created.
	GetOrCreateGroup(ctx context.Context, name string) (*Group, bool, error)
	GetGroup(ctx context.Context, name string) (*Group, error)

	// GetOrCreatePermission returns the permission identified by scope and
	// codename, creating it when missing. The bool reports whether it was created.
	GetOrCreatePermission(ctx context.Context, scope, codename string) (*Permission, bool, error)
	FilterPermissions(ctx context.Context, scope string, codenames []string) ([]*Permission, error)

	AddUserGroups(ctx context.Context, userID string, groups ...*Group) error
	RemoveUserGroups(ctx context.Context, userID string, groups ...*Group) error
	UserGroups(ctx context.Context, userID string) ([]*Group, error)

	AddUserPermissions(ctx context.Context, userID string, permissions ...*Permission) error
	RemoveUserPermissions(ctx context.Context, userID string, permissions ...*Permission) error
	UserPermissions(ctx context.Context, userID string) ([]*Permission, error)

	Close() error
}

func validateUsername(username string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	return nil
}

func validateGroupName(name string) error {
	if name == "" {
		return ErrInvalidGroupName
	}
	return nil
}

func validateCodename(scope, codename string) error {
	if scope == "" || codename == "" {
		return ErrInvalidPermission
	}
	return nil
}
