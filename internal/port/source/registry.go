package source

import (
	"fmt"
	"slices"
	"sync"
)

// Factory is a constructor function that creates a Source from its Spec.
type Factory func(spec Spec) (Source, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a source kind available by name.
// It is typically called from an init() function in the adapter package.
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("source: duplicate registration for %q", kind))
	}
	factories[kind] = factory
}

// New creates a Source using the factory registered for spec.Kind.
func New(spec Spec) (Source, error) {
	mu.RLock()
	factory, ok := factories[spec.Kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("source %q: unknown kind %q", spec.Name, spec.Kind)
	}
	return factory(spec)
}

// Available returns the registered kinds, sorted.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}
