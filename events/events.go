// Package events provides an in-memory publish/subscribe module for the chassis.
//
// The roles module publishes to it when it is registered first:
//
//	app := chassis.New(
//	    chassis.WithModules(
//	        events.New(),
//	        roles.New(),
//	    ),
//	)
//
//	unsubscribe := app.Events().Subscribe(roles.EventRoleAssigned, events.Handler(
//	    func(ctx context.Context, eventType string, payload any) {
//	        event := payload.(roles.Event)
//	        log.Printf("%s now holds %s", event.UserID, event.Role)
//	    },
//	))
//	defer unsubscribe()
//
// Event types follow a resource.action pattern: role.assigned, role.removed,
// permission.granted, permission.revoked.
//
// All operations are safe for concurrent use.
package events

import (
	"context"
	"sync"

	chassis "github.com/talosaether/rolechassis"
)

// Handler is a function that handles an event.
type Handler func(ctx context.Context, eventType string, payload any)

type subscription struct {
	id      uint64
	handler Handler
}

// Module is the events module implementation.
type Module struct {
	mu            sync.RWMutex
	nextID        uint64
	subscriptions map[string][]subscription
	app           *chassis.App
}

// Option is a function that configures the events module.
type Option func(*Module)

// New creates a new events module with the given options.
func New(opts ...Option) *Module {
	mod := &Module{
		subscriptions: make(map[string][]subscription),
	}

	for _, opt := range opts {
		opt(mod)
	}

	return mod
}

// Name returns the module identifier.
func (mod *Module) Name() string {
	return "events"
}

// Init initializes the events module.
func (mod *Module) Init(ctx context.Context, app *chassis.App) error {
	mod.app = app
	app.Logger().Info("events module initialized")
	return nil
}

// Shutdown drops every subscription.
func (mod *Module) Shutdown(ctx context.Context) error {
	mod.mu.Lock()
	defer mod.mu.Unlock()
	mod.subscriptions = make(map[string][]subscription)
	return nil
}

// Subscribe registers a handler for an event type and returns an unsubscribe function.
// handler must be a Handler or a func(context.Context, string, any);
// anything else is ignored and a no-op unsubscribe is returned.
func (mod *Module) Subscribe(eventType string, handler any) func() {
	var handlerFunc Handler
	switch typed := handler.(type) {
	case Handler:
		handlerFunc = typed
	case func(context.Context, string, any):
		handlerFunc = typed
	default:
		return func() {}
	}
	return mod.subscribe(eventType, handlerFunc)
}

func (mod *Module) subscribe(eventType string, handler Handler) func() {
	mod.mu.Lock()
	defer mod.mu.Unlock()

	mod.nextID++
	id := mod.nextID
	mod.subscriptions[eventType] = append(mod.subscriptions[eventType], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			mod.unsubscribe(eventType, id)
		})
	}
}

func (mod *Module) unsubscribe(eventType string, id uint64) {
	mod.mu.Lock()
	defer mod.mu.Unlock()

	subs := mod.subscriptions[eventType]
	for i, sub := range subs {
		if sub.id == id {
			mod.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (mod *Module) handlers(eventType string) []Handler {
	mod.mu.RLock()
	defer mod.mu.RUnlock()

	subs := mod.subscriptions[eventType]
	handlers := make([]Handler, 0, len(subs))
	for _, sub := range subs {
		handlers = append(handlers, sub.handler)
	}
	return handlers
}

// Publish sends an event to all registered handlers.
// Handlers are called synchronously in the order they were registered.
func (mod *Module) Publish(ctx context.Context, eventType string, payload any) {
	for _, handler := range mod.handlers(eventType) {
		handler(ctx, eventType, payload)
	}
}

// PublishAsync sends an event to all registered handlers, each in its own goroutine.
func (mod *Module) PublishAsync(ctx context.Context, eventType string, payload any) {
	for _, handler := range mod.handlers(eventType) {
		go handler(ctx, eventType, payload)
	}
}

// SubscriberCount returns the number of active subscribers for an event type.
func (mod *Module) SubscriberCount(eventType string) int {
	mod.mu.RLock()
	defer mod.mu.RUnlock()
	return len(mod.subscriptions[eventType])
}

// HasSubscribers reports whether the event type has any subscribers.
func (mod *Module) HasSubscribers(eventType string) bool {
	return mod.SubscriberCount(eventType) > 0
}
