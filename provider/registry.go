package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry resolves named model backends through registered factories. The
// service selects its embedding, transcription, and synthesis backends by
// configured name, so swapping a sidecar is a config change, not a code
// change. Resolved backends are cached; model handles are built once and
// shared read-only across requests.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
	resolved  map[string]T
}

// NewRegistry creates an empty Registry.
func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]Factory[T]),
		resolved:  make(map[string]T),
	}
}

// RegisterFactory makes a backend available under name. Registering the same
// name again replaces the factory but not an already-resolved instance.
func (r *Registry[T]) RegisterFactory(name string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve returns the backend registered under name, creating it from its
// factory and cfg on first use. Later calls return the cached instance and
// ignore cfg.
func (r *Registry[T]) Resolve(name string, cfg map[string]any) (T, error) {
	r.mu.RLock()
	inst, done := r.resolved[name]
	factory, registered := r.factories[name]
	r.mu.RUnlock()
	if done {
		return inst, nil
	}
	if !registered {
		var zero T
		return zero, fmt.Errorf("unknown provider %q (registered: %v)", name, r.Names())
	}

	inst, err := factory(cfg)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("creating provider %q: %w", name, err)
	}

	r.mu.Lock()
	// Another caller may have resolved concurrently; first one wins.
	if existing, ok := r.resolved[name]; ok {
		inst = existing
	} else {
		r.resolved[name] = inst
	}
	r.mu.Unlock()
	return inst, nil
}

// Names returns the sorted names of all registered factories.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
