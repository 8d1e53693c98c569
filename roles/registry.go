package roles

import (
	"sort"
	"sync"
)

// Registry maps canonical role names to role definitions.
// A later registration under the same name replaces the earlier one.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]*Role
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		roles: make(map[string]*Role),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Declare.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds role under its canonical name.
func (registry *Registry) Register(role *Role) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.roles[role.Name()] = role
}

// Retrieve returns the role registered under name.
func (registry *Registry) Retrieve(name string) (*Role, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	role, ok := registry.roles[name]
	return role, ok
}

// Names returns all registered role names, sorted.
func (registry *Registry) Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.roles))
	for name := range registry.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RolesWithPermission returns the registered roles that declare permissionName, sorted by name.
func (registry *Registry) RolesWithPermission(permissionName string) []*Role {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	var matches []*Role
	for _, role := range registry.roles {
		if role.HasPermission(permissionName) {
			matches = append(matches, role)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Name() < matches[j].Name()
	})
	return matches
}

// Register adds role to the default registry.
func Register(role *Role) {
	defaultRegistry.Register(role)
}

// Retrieve looks name up in the default registry.
func Retrieve(name string) (*Role, bool) {
	return defaultRegistry.Retrieve(name)
}

// Names lists the default registry.
func Names() []string {
	return defaultRegistry.Names()
}
