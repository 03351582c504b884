// Package registry holds the simulated controllers of a process and the
// shared dispatch path every transport goes through.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is an explicit set of named controllers, passed to whatever needs
// to enumerate them.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
	}
}

// Add registers c. Names must be unique.
func (r *Registry) Add(c *Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.controllers[c.Name()]; dup {
		return fmt.Errorf("controller %q already registered", c.Name())
	}
	r.controllers[c.Name()] = c
	return nil
}

// Get looks up a controller by name.
func (r *Registry) Get(name string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[name]
	return c, ok
}

// Controllers returns all controllers sorted by name.
func (r *Registry) Controllers() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of controllers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}
