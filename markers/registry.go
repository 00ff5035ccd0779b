package markers

import (
	"fmt"
	"sync"

	"github.com/fmeng/anstore/core"
)

// Registry holds all registered marker definitions and provides lookup functionality.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	definitions map[core.TypeRef]*Definition
	order       []core.TypeRef
}

// NewRegistry creates a new marker registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[core.TypeRef]*Definition),
	}
}

// Register adds or replaces a marker definition.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Marker.IsZero() {
		return fmt.Errorf("cannot register a definition without marker identity")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[def.Marker]; !exists {
		r.order = append(r.order, def.Marker)
	}
	r.definitions[def.Marker] = def
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup finds a marker definition by identity.
func (r *Registry) Lookup(marker core.TypeRef) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.definitions[marker]
}

// ListDefinitions returns all registered definitions in registration order.
func (r *Registry) ListDefinitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Definition, 0, len(r.order))
	for _, ref := range r.order {
		result = append(result, r.definitions[ref])
	}
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.definitions)
}
