// Package registry holds the name -> validator handler bindings the Rule
// Compiler resolves against when it encounters a permission name in a rule
// variant (spec.md §4.2). Built-ins are registered once, in a fixed order,
// by validators.RegisterBuiltins; callers may Register additional names before compiling any
// rule source.
package registry

import (
	"fmt"

	"passgate/internal/engine/core"
)

// Registry is a name -> Handler lookup table. It is safe for concurrent
// reads once construction (Register calls) has finished; Register itself is
// not safe to call concurrently with Lookup or with other Register calls.
type Registry struct {
	handlers map[string]core.Handler
	order    []string
}

// New returns an empty Registry with no validators bound.
func New() *Registry {
	return &Registry{handlers: make(map[string]core.Handler)}
}

// Register binds name to handler. Registering the same name twice, or a nil
// handler, is a fatal compile-time configuration error, not a runtime fault.
func (r *Registry) Register(name string, handler core.Handler) error {
	if handler == nil {
		return fmt.Errorf("registry: register %q: %w", name, core.ErrInvalidHandler)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("registry: register %q: %w", name, core.ErrDuplicateValidator)
	}
	r.handlers[name] = handler
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the handler bound to name, if any.
func (r *Registry) Lookup(name string) (core.Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns every registered validator name in registration order — the
// order the matcher evaluates a rule variant's validators in, per spec.md
// §4.5 ("in registration order").
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Has reports whether name is bound, without returning the handler.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

