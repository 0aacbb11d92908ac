package node

import (
	"sort"
	"sync"
)

// Registry maps tag names to node constructors.
type Registry struct {
	tags  map[string]Constructor
	mutex sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tags: make(map[string]Constructor)}
}

// DefaultRegistry creates a registry holding the built-in tags.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("if", NewIf)
	r.Register("for", NewFor)
	r.Register("set", NewSet)
	return r
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, c Constructor) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.tags[name] = c
}

// Unregister removes name from the registry.
func (r *Registry) Unregister(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.tags, name)
}

// Lookup returns the constructor registered for name.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	c, ok := r.tags[name]
	return c, ok
}

// Names returns the registered tag names in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.tags))
	for name := range r.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
