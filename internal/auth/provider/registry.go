package provider

import (
	"fmt"
	"sort"
)

// Registry holds all configured identity providers and allows
// lookup by name. It performs no auth logic itself.
type Registry struct {
	providers   map[string]IdentityProvider
	defaultName string
}

// NewRegistry registers the given providers by name. The first one is the
// default used by the unnamed callback routes. Provider names must be unique.
func NewRegistry(list ...IdentityProvider) *Registry {
	m := make(map[string]IdentityProvider)
	var def string
	for _, p := range list {
		if def == "" {
			def = p.Name()
		}
		m[p.Name()] = p
	}
	return &Registry{providers: m, defaultName: def}
}

// Get returns the provider by name or an error if not registered.
func (r *Registry) Get(name string) (IdentityProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown identity provider: %s", name)
	}
	return p, nil
}

// Default returns the first registered provider.
func (r *Registry) Default() IdentityProvider {
	return r.providers[r.defaultName]
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
