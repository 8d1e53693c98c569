package chassis

import "context"

// Module is the interface that all chassis modules must implement.
type Module interface {
	// Name returns a unique identifier for this module
	Name() string

	// Init is called when the module is registered with the chassis.
	// Earlier modules are already reachable through App.Lookup.
	Init(ctx context.Context, app *App) error

	// Shutdown is called when the chassis is stopping, in reverse
	// registration order.
	Shutdown(ctx context.Context) error
}
