// Typed provider registry: configuration references connections by name, and
// the registry maps each name to a concrete Provider. It is built once at
// startup and passed explicitly through the pipeline, never looked up
// through globals.
package llm

import (
	"fmt"
	"sort"
)

// Registry maps connection names to Providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a Registry from an initial provider set.
// The map is copied so the caller cannot mutate the internal state.
func NewRegistry(providers map[string]Provider) *Registry {
	ps := make(map[string]Provider, len(providers))
	for name, p := range providers {
		ps[name] = p
	}
	return &Registry{providers: ps}
}

// Register adds (or replaces) a provider under the given connection name.
func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

// Get returns the provider registered under the connection name.
// The error lists the registered names to make dangling references obvious.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("llm registry: connection %q not registered (available: %v)", name, r.Names())
	}
	return p, nil
}

// Names returns the registered connection names, sorted for stable output.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
