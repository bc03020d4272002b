package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps gateway names to adapter implementations. Adapters register
// at startup; webhook routes and checkout calls resolve by name at runtime.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry creates an empty gateway registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register adds a gateway under its own name. Registering the same name twice
// is a wiring bug and returns an error.
func (r *Registry) Register(g Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := g.Name()
	if _, exists := r.gateways[name]; exists {
		return fmt.Errorf("gateway %q already registered", name)
	}
	r.gateways[name] = g
	return nil
}

// Get resolves a gateway by name.
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: gateway %q not registered", ErrNotSupported, name)
	}
	return g, nil
}

// Names returns the registered gateway names, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
