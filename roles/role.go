// Package roles provides declarative roles for the chassis framework.
//
// A role is a named bundle of permissions, each with a default grant state.
// Assigning a role to a user materializes it in the auth store: the user joins
// a group named after the role and receives the role's default permissions
// as direct grants. A user may hold any number of roles at once.
//
// # Declaring roles
//
// Declare roles once, at package level. Declare registers the role in the
// process-wide registry under its canonical name:
//
//	var Editor = roles.Declare("ContentEditor",
//	    roles.WithPermission("edit_post", true),
//	    roles.WithPermission("publish_post", false),
//	)
//
//	var Auditor = roles.Declare("Auditor",
//	    roles.WithName("audit"),
//	    roles.WithPermission("view_logs", true),
//	)
//
// The canonical name is the snake_case form of the identifier
// ("content_editor") unless WithName overrides it.
//
// # Assigning roles
//
//	group, err := Editor.AssignToUser(ctx, store, userID)
//	group, err = Editor.RemoveFromUser(ctx, store, userID)
//
// Or through the chassis module, by name:
//
//	app := chassis.New(chassis.WithModules(events.New(), roles.New()))
//	err := app.Roles().AssignRole(ctx, userID, "content_editor")
//
// # Configuration
//
// Configure via config.yaml:
//
//	roles:
//	  driver: sqlite            # sqlite, postgres or memory
//	  db_path: ./data/roles.db
//	  dsn: ${DATABASE_URL}
//	  definitions_file: ./roles.yaml
package roles

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPermission    = errors.New("permission not declared for role")
	ErrRoleNotFound         = errors.New("role not found")
	ErrPermissionNotInRoles = errors.New("permission not declared by any of the user's roles")
)

// Grant pairs a permission name with whether assigning the role grants it.
type Grant struct {
	Name    string
	Default bool
}

// Role is an immutable role definition.
type Role struct {
	identifier string
	name       string
	grants     []Grant
}

// Option configures a Role during declaration.
type Option func(*roleConfig)

type roleConfig struct {
	name   string
	grants []Grant
	index  map[string]int
}

func (cfg *roleConfig) set(name string, granted bool) {
	if i, ok := cfg.index[name]; ok {
		cfg.grants[i].Default = granted
		return
	}
	cfg.index[name] = len(cfg.grants)
	cfg.grants = append(cfg.grants, Grant{Name: name, Default: granted})
}

// WithName overrides the canonical name derived from the identifier.
func WithName(name string) Option {
	return func(cfg *roleConfig) {
		cfg.name = name
	}
}

// WithPermission declares a permission and its default grant state.
// Declaring the same permission twice keeps its first position and the last default.
func WithPermission(name string, granted bool) Option {
	return func(cfg *roleConfig) {
		cfg.set(name, granted)
	}
}

// WithPermissions declares several permissions in order.
func WithPermissions(grants ...Grant) Option {
	return func(cfg *roleConfig) {
		for _, grant := range grants {
			cfg.set(grant.Name, grant.Default)
		}
	}
}

// NewRole builds a role without registering it.
func NewRole(identifier string, opts ...Option) *Role {
	cfg := &roleConfig{index: make(map[string]int)}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Role{
		identifier: identifier,
		name:       CanonicalName(identifier, cfg.name),
		grants:     cfg.grants,
	}
}

// Declare builds a role and registers it in the default registry.
func Declare(identifier string, opts ...Option) *Role {
	role := NewRole(identifier, opts...)
	Register(role)
	return role
}

// Name returns the role's canonical name.
func (role *Role) Name() string {
	return role.name
}

// Identifier returns the identifier the role was declared with.
func (role *Role) Identifier() string {
	return role.identifier
}

// Grants returns the declared permissions in declaration order.
func (role *Role) Grants() []Grant {
	grants := make([]Grant, len(role.grants))
	copy(grants, role.grants)
	return grants
}

// PermissionNames returns every declared permission name, regardless of default.
func (role *Role) PermissionNames() []string {
	names := make([]string, 0, len(role.grants))
	for _, grant := range role.grants {
		names = append(names, grant.Name)
	}
	return names
}

// DefaultTruePermissionNames returns the permissions granted on assignment.
func (role *Role) DefaultTruePermissionNames() []string {
	var names []string
	for _, grant := range role.grants {
		if grant.Default {
			names = append(names, grant.Name)
		}
	}
	return names
}

// Default reports the declared default for a permission.
// It returns ErrUnknownPermission if the role does not declare it.
func (role *Role) Default(permissionName string) (bool, error) {
	for _, grant := range role.grants {
		if grant.Name == permissionName {
			return grant.Default, nil
		}
	}
	return false, fmt.Errorf("%w: %q in role %q", ErrUnknownPermission, permissionName, role.name)
}

// HasPermission reports whether the role declares permissionName.
func (role *Role) HasPermission(permissionName string) bool {
	for _, grant := range role.grants {
		if grant.Name == permissionName {
			return true
		}
	}
	return false
}

func (role *Role) String() string {
	return role.name
}
