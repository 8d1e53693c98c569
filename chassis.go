package chassis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// App is the central chassis instance that holds all registered modules.
// It manages lifecycle and provides access to module APIs.
type App struct {
	mu         sync.RWMutex
	modules    map[string]Module
	order      []string
	config     *Config
	configData ConfigData
	logger     *slog.Logger

	// Module accessors (populated during registration)
	roles  RolesModule
	events EventsModule
}

// RolesModule is the interface exposed by the roles module.
// Roles are addressed by canonical name; callers needing the definitions
// should use the roles package types.
type RolesModule interface {
	Module
	AssignRole(ctx context.Context, userID, roleName string) error
	RemoveRole(ctx context.Context, userID, roleName string) error
	HasRole(ctx context.Context, userID string, roleNames ...string) (bool, error)
	HasPermission(ctx context.Context, userID, permissionName string) (bool, error)
	RoleNames() []string
}

// EventsModule is the interface exposed by the events module.
type EventsModule interface {
	Module
	Subscribe(eventType string, handler any) func()
	Publish(ctx context.Context, eventType string, payload any)
	PublishAsync(ctx context.Context, eventType string, payload any)
}

// Config holds chassis configuration.
type Config struct {
	Env      string
	LogLevel slog.Level
}

// Option configures the App during creation.
type Option func(*App)

// New creates a new chassis App with the given options.
func New(opts ...Option) *App {
	app := &App{
		modules: make(map[string]Module),
		config: &Config{
			Env:      "development",
			LogLevel: slog.LevelInfo,
		},
		logger: newLogger(slog.LevelInfo),
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

// WithConfig sets configuration options.
func WithConfig(cfg *Config) Option {
	return func(app *App) {
		app.config = cfg
		app.logger = newLogger(cfg.LogLevel)
	}
}

// WithLogger replaces the default stdout logger.
func WithLogger(logger *slog.Logger) Option {
	return func(app *App) {
		app.logger = logger
	}
}

// WithConfigFile loads configuration from a YAML file.
// Environment variables in ${VAR} or ${VAR:-default} format are expanded.
func WithConfigFile(path string) Option {
	return func(app *App) {
		data, err := LoadConfig(path)
		if err != nil {
			app.logger.Error("failed to load config file", "path", path, "error", err)
			return
		}
		app.applyConfigData(data)
		app.logger.Info("config loaded", "path", path)
	}
}

// WithConfigData uses already parsed configuration, as if loaded from a file.
func WithConfigData(data ConfigData) Option {
	return func(app *App) {
		app.applyConfigData(data)
	}
}

func (app *App) applyConfigData(data ConfigData) {
	app.configData = data

	chassisSection := data.Section("chassis")
	if chassisSection == nil {
		return
	}
	if env := chassisSection.GetString("env"); env != "" {
		app.config.Env = env
	}
	if logLevel := chassisSection.GetString("log_level"); logLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err == nil {
			app.config.LogLevel = level
			app.logger = newLogger(level)
		}
	}
}

// WithModules registers modules with the chassis.
// Modules are initialized in the order provided.
func WithModules(modules ...Module) Option {
	return func(app *App) {
		ctx := context.Background()
		for _, mod := range modules {
			if err := app.Register(ctx, mod); err != nil {
				app.logger.Error("failed to register module",
					"module", mod.Name(),
					"error", err,
				)
			}
		}
	}
}

// Register adds a module to the chassis and initializes it.
// Init runs without the registry lock held, so modules may look up
// previously registered modules while initializing.
func (app *App) Register(ctx context.Context, mod Module) error {
	name := mod.Name()

	app.mu.RLock()
	_, exists := app.modules[name]
	app.mu.RUnlock()
	if exists {
		return fmt.Errorf("module %q already registered", name)
	}

	if err := mod.Init(ctx, app); err != nil {
		return fmt.Errorf("failed to initialize module %q: %w", name, err)
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if _, exists := app.modules[name]; exists {
		return fmt.Errorf("module %q already registered", name)
	}
	app.modules[name] = mod
	app.order = append(app.order, name)
	app.logger.Info("module registered", "module", name)

	// Wire up typed accessors for known modules
	if rolesMod, ok := mod.(RolesModule); ok {
		app.roles = rolesMod
	}
	if eventsMod, ok := mod.(EventsModule); ok {
		app.events = eventsMod
	}

	return nil
}

// Lookup returns the module registered under name.
func (app *App) Lookup(name string) (Module, bool) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	mod, ok := app.modules[name]
	return mod, ok
}

// Shutdown gracefully stops all modules in reverse registration order.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	var errs []error
	for i := len(app.order) - 1; i >= 0; i-- {
		name := app.order[i]
		if err := app.modules[name].Shutdown(ctx); err != nil {
			app.logger.Error("failed to shutdown module",
				"module", name,
				"error", err,
			)
			errs = append(errs, err)
		} else {
			app.logger.Info("module shutdown", "module", name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// Roles returns the roles module API.
// Panics if roles module is not registered.
func (app *App) Roles() RolesModule {
	if app.roles == nil {
		panic("roles module not registered")
	}
	return app.roles
}

// Events returns the events module API.
// Panics if events module is not registered.
func (app *App) Events() EventsModule {
	if app.events == nil {
		panic("events module not registered")
	}
	return app.events
}

// Logger returns the chassis logger for use by modules and application code.
func (app *App) Logger() *slog.Logger {
	return app.logger
}

// Config returns the chassis configuration.
func (app *App) Config() *Config {
	return app.config
}

// ConfigData returns the raw configuration data loaded from file.
// Returns nil if no config file was loaded.
func (app *App) ConfigData() ConfigData {
	return app.configData
}
