package knowledge

import (
	"fmt"
	"sort"
)

// Registry maps knowledge service names to Retrievers. Built once at startup
// from configuration, read-only afterwards.
type Registry struct {
	retrievers map[string]Retriever
}

// NewRegistry creates a Registry from an initial retriever set.
// The map is copied so the caller cannot mutate the internal state.
func NewRegistry(retrievers map[string]Retriever) *Registry {
	rs := make(map[string]Retriever, len(retrievers))
	for name, r := range retrievers {
		rs[name] = r
	}
	return &Registry{retrievers: rs}
}

// Register adds (or replaces) a retriever under the given service name.
func (r *Registry) Register(name string, ret Retriever) {
	r.retrievers[name] = ret
}

// Get returns the retriever registered under the service name.
func (r *Registry) Get(name string) (Retriever, error) {
	ret, ok := r.retrievers[name]
	if !ok {
		return nil, fmt.Errorf("knowledge registry: service %q not registered (available: %v)", name, r.Names())
	}
	return ret, nil
}

// Names returns the registered service names, sorted for stable output.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.retrievers))
	for name := range r.retrievers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
