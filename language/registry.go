package language

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Registry maps a Language to its Adapter
type Registry struct {
	mu       sync.RWMutex
	adapters map[Language]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Language]Adapter)}
}

// NewDefaultRegistry registers the built-in adapters with their executables
// resolved against the host PATH
func NewDefaultRegistry() (*Registry, error) {
	return NewRegistryWithOverrides(nil)
}

// Register adds an adapter, it rejects nil and duplicate adapters
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return errors.New("register: nil adapter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	l := a.Language()
	if _, ok := r.adapters[l]; ok {
		return fmt.Errorf("register: adapter for %q already registered", l)
	}
	r.adapters[l] = a
	return nil
}

// Get returns the adapter for the language
func (r *Registry) Get(l Language) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[l]
	return a, ok
}

// Languages returns registered languages in sorted order
func (r *Registry) Languages() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ls := make([]Language, 0, len(r.adapters))
	for l := range r.adapters {
		ls = append(ls, l)
	}
	slices.Sort(ls)
	return ls
}
