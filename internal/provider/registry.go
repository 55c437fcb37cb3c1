package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds a Provider from a Config.
type Constructor func(cfg Config) (Provider, error)

// Registry maps provider names to constructors. Construct one during process
// init and pass it to whatever needs to create providers; there is no
// package-level instance.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Builtin returns a registry with the shipped providers registered.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(NameAnthropic, func(cfg Config) (Provider, error) {
		return NewAnthropic(cfg), nil
	})
	r.Register(NameStatic, func(cfg Config) (Provider, error) {
		return NewStatic(cfg), nil
	})
	return r
}

// Register adds or replaces a constructor. Names are case-insensitive.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[strings.ToLower(name)] = ctor
}

// Create builds the named provider. Unknown names return ErrUnknownProvider
// listing the registered names.
func (r *Registry) Create(name string, cfg Config) (Provider, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	p, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider %q: %w", name, err)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
