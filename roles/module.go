package roles

import (
	"context"
	"fmt"

	chassis "github.com/talosaether/rolechassis"
	"github.com/talosaether/rolechassis/authdb"
)

// Event types published when an events module is registered before roles.
const (
	EventRoleAssigned      = "role.assigned"
	EventRoleRemoved       = "role.removed"
	EventPermissionGranted = "permission.granted"
	EventPermissionRevoked = "permission.revoked"
)

// Event is the payload of every roles event.
type Event struct {
	Role       string
	UserID     string
	Permission string
}

// Publisher receives roles events. The chassis events module satisfies it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// Module is the roles module implementation.
type Module struct {
	store           authdb.Store
	driver          string
	dbPath          string
	dsn             string
	definitionsFile string
	registry        *Registry
	publisher       Publisher
	app             *chassis.App
}

// ModuleOption is a function that configures the roles module.
type ModuleOption func(*Module)

// WithStore sets a custom store implementation.
func WithStore(store authdb.Store) ModuleOption {
	return func(mod *Module) {
		mod.store = store
	}
}

// WithDriver selects the built-in store: "sqlite", "postgres" or "memory".
func WithDriver(driver string) ModuleOption {
	return func(mod *Module) {
		mod.driver = driver
	}
}

// WithDBPath sets the SQLite database path.
func WithDBPath(path string) ModuleOption {
	return func(mod *Module) {
		mod.dbPath = path
	}
}

// WithDSN sets the PostgreSQL connection string.
func WithDSN(dsn string) ModuleOption {
	return func(mod *Module) {
		mod.dsn = dsn
	}
}

// WithRegistry uses registry instead of the default registry.
func WithRegistry(registry *Registry) ModuleOption {
	return func(mod *Module) {
		mod.registry = registry
	}
}

// WithDefinitionsFile registers the roles declared in a YAML file during Init.
func WithDefinitionsFile(path string) ModuleOption {
	return func(mod *Module) {
		mod.definitionsFile = path
	}
}

// WithPublisher sets where roles events are published.
func WithPublisher(publisher Publisher) ModuleOption {
	return func(mod *Module) {
		mod.publisher = publisher
	}
}

// New creates a new roles module with the given options.
func New(opts ...ModuleOption) *Module {
	mod := &Module{
		driver:   "sqlite",
		dbPath:   "./data/roles.db",
		registry: defaultRegistry,
	}

	for _, opt := range opts {
		opt(mod)
	}

	return mod
}

// Name returns the module identifier.
func (mod *Module) Name() string {
	return "roles"
}

// Init initializes the roles module.
func (mod *Module) Init(ctx context.Context, app *chassis.App) error {
	mod.app = app

	// Read config if available
	if cfg := app.ConfigData(); cfg != nil {
		mod.driver = cfg.GetStringOr("roles.driver", mod.driver)
		mod.dbPath = cfg.GetStringOr("roles.db_path", mod.dbPath)
		// An explicit dsn, even an empty one, replaces the WithDSN value.
		if cfg.Has("roles.dsn") {
			mod.dsn = cfg.GetString("roles.dsn")
		}
		mod.definitionsFile = cfg.GetStringOr("roles.definitions_file", mod.definitionsFile)
	}

	var declared []*Role
	if mod.definitionsFile != "" {
		var err error
		declared, err = LoadDefinitions(mod.definitionsFile)
		if err != nil {
			return err
		}
	}

	if mod.publisher == nil {
		if eventsMod, ok := app.Lookup("events"); ok {
			if publisher, ok := eventsMod.(Publisher); ok {
				mod.publisher = publisher
			}
		}
	}

	// Use custom store if provided, otherwise open the configured driver
	driver := "custom"
	if mod.store == nil {
		driver = mod.driver
		store, err := mod.openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to create roles store: %w", err)
		}
		mod.store = store
	}

	// Registered only once the store is usable, so a failed Init leaves the registry as it was.
	for _, role := range declared {
		mod.registry.Register(role)
	}
	if mod.definitionsFile != "" {
		app.Logger().Info("roles loaded from file", "path", mod.definitionsFile, "count", len(declared))
	}

	app.Logger().Info("roles module initialized", "driver", driver, "roles", len(mod.registry.Names()))
	return nil
}

func (mod *Module) openStore(ctx context.Context) (authdb.Store, error) {
	switch mod.driver {
	case "sqlite":
		return authdb.NewSQLiteStore(mod.dbPath)
	case "postgres":
		if mod.dsn == "" {
			return nil, fmt.Errorf("postgres driver requires roles.dsn")
		}
		return authdb.NewPostgresStore(ctx, mod.dsn)
	case "memory":
		return authdb.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown roles driver %q", mod.driver)
	}
}

// Shutdown cleans up the roles module.
func (mod *Module) Shutdown(ctx context.Context) error {
	if mod.store != nil {
		return mod.store.Close()
	}
	return nil
}

// Store returns the auth store the module assigns roles in.
func (mod *Module) Store() authdb.Store {
	return mod.store
}

// Registry returns the registry the module resolves role names against.
func (mod *Module) Registry() *Registry {
	return mod.registry
}

// Retrieve returns the role registered under name.
func (mod *Module) Retrieve(name string) (*Role, bool) {
	return mod.registry.Retrieve(name)
}

// RoleNames lists the registered role names.
func (mod *Module) RoleNames() []string {
	return mod.registry.Names()
}

// RolesWithPermission lists the registered roles declaring permissionName.
func (mod *Module) RolesWithPermission(permissionName string) []*Role {
	return mod.registry.RolesWithPermission(permissionName)
}

// CreateUser adds a user to the module's store.
func (mod *Module) CreateUser(ctx context.Context, username string) (*authdb.User, error) {
	return mod.store.CreateUser(ctx, username)
}

// AssignRole gives the named role to a user.
func (mod *Module) AssignRole(ctx context.Context, userID, roleName string) error {
	role, err := mod.lookup(roleName)
	if err != nil {
		return err
	}

	if _, err := role.AssignToUser(ctx, mod.store, userID); err != nil {
		return err
	}

	mod.app.Logger().Info("role assigned", "role", role.Name(), "user_id", userID)
	mod.publish(ctx, EventRoleAssigned, Event{Role: role.Name(), UserID: userID})
	return nil
}

// RemoveRole takes the named role away from a user.
func (mod *Module) RemoveRole(ctx context.Context, userID, roleName string) error {
	role, err := mod.lookup(roleName)
	if err != nil {
		return err
	}

	group, err := role.RemoveFromUser(ctx, mod.store, userID)
	if err != nil {
		return err
	}

	if group == nil {
		mod.app.Logger().Debug("role removed before it was ever assigned", "role", role.Name(), "user_id", userID)
	}
	mod.app.Logger().Info("role removed", "role", role.Name(), "user_id", userID)
	mod.publish(ctx, EventRoleRemoved, Event{Role: role.Name(), UserID: userID})
	return nil
}

// ClearRoles removes every registered role the user holds.
func (mod *Module) ClearRoles(ctx context.Context, userID string) error {
	cleared, err := ClearRoles(ctx, mod.store, mod.registry, userID)
	if err != nil {
		return err
	}

	for _, role := range cleared {
		mod.app.Logger().Info("role removed", "role", role.Name(), "user_id", userID)
		mod.publish(ctx, EventRoleRemoved, Event{Role: role.Name(), UserID: userID})
	}
	return nil
}

// UserRoles returns the registered roles the user holds.
func (mod *Module) UserRoles(ctx context.Context, userID string) ([]*Role, error) {
	return UserRoles(ctx, mod.store, mod.registry, userID)
}

// HasRole reports whether the user holds any of the named roles.
func (mod *Module) HasRole(ctx context.Context, userID string, roleNames ...string) (bool, error) {
	return HasRole(ctx, mod.store, userID, roleNames...)
}

// HasPermission reports whether the user holds the named permission.
func (mod *Module) HasPermission(ctx context.Context, userID, permissionName string) (bool, error) {
	return HasPermission(ctx, mod.store, userID, permissionName)
}

// GrantPermission grants a permission declared by one of the user's roles.
func (mod *Module) GrantPermission(ctx context.Context, userID, permissionName string) error {
	if err := GrantPermission(ctx, mod.store, mod.registry, userID, permissionName); err != nil {
		return err
	}

	mod.app.Logger().Info("permission granted", "permission", permissionName, "user_id", userID)
	mod.publish(ctx, EventPermissionGranted, Event{UserID: userID, Permission: permissionName})
	return nil
}

// RevokePermission revokes a permission declared by one of the user's roles.
func (mod *Module) RevokePermission(ctx context.Context, userID, permissionName string) error {
	if err := RevokePermission(ctx, mod.store, mod.registry, userID, permissionName); err != nil {
		return err
	}

	mod.app.Logger().Info("permission revoked", "permission", permissionName, "user_id", userID)
	mod.publish(ctx, EventPermissionRevoked, Event{UserID: userID, Permission: permissionName})
	return nil
}

func (mod *Module) lookup(roleName string) (*Role, error) {
	role, ok := mod.registry.Retrieve(roleName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoleNotFound, roleName)
	}
	return role, nil
}

func (mod *Module) publish(ctx context.Context, eventType string, event Event) {
	if mod.publisher != nil {
		mod.publisher.Publish(ctx, eventType, event)
	}
}
