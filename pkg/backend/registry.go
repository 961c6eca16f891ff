package backend

import (
	"sort"

	"github.com/mbaylis/slideforge/pkg/slide"
)

// Registry holds the backends available to one orchestrator run. It is
// populated once at startup and read-only afterwards, which keeps routing
// deterministic and independent of the environment: instead of probing
// "is the browser installed" at call time, availability is decided when
// the registry is built.
type Registry struct {
	backends map[ID]Renderer
}

// NewRegistry creates a registry from the given backends. Later entries
// with a duplicate ID replace earlier ones.
func NewRegistry(backends ...Renderer) *Registry {
	r := &Registry{backends: make(map[ID]Renderer, len(backends))}
	for _, b := range backends {
		r.backends[b.ID()] = b
	}
	return r
}

// Get returns the backend with the given ID.
func (r *Registry) Get(id ID) (Renderer, bool) {
	b, ok := r.backends[id]
	return b, ok
}

// Has reports whether a backend is registered.
func (r *Registry) Has(id ID) bool {
	_, ok := r.backends[id]
	return ok
}

// Capable reports whether the backend is registered and supports the slide type.
func (r *Registry) Capable(id ID, t slide.Type) bool {
	b, ok := r.backends[id]
	return ok && b.Supports(t)
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	return len(r.backends)
}

// IDs returns the registered backend IDs in sorted order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
