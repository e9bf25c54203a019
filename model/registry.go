package model

import (
	"fmt"
	"strings"
)

// Registry is the fixed, ordered set of models participating in a state.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	models []Descriptor
	byName map[string]Descriptor
}

// NewRegistry builds a registry from models in declaration order.
//
// Names must be non-empty, unique, and usable as file names
// (no path separators, not "." or "..").
func NewRegistry(models ...Descriptor) (*Registry, error) {
	r := &Registry{
		models: make([]Descriptor, 0, len(models)),
		byName: make(map[string]Descriptor, len(models)),
	}
	for i, m := range models {
		if m == nil {
			return nil, fmt.Errorf("model at position %d is nil", i)
		}
		name := m.Name()
		if err := validateName(name); err != nil {
			return nil, fmt.Errorf("model at position %d: %w", i, err)
		}
		if _, exists := r.byName[name]; exists {
			return nil, fmt.Errorf("duplicate model name %q", name)
		}
		r.models = append(r.models, m)
		r.byName[name] = m
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
// Intended for package-level registries declared at startup.
func MustRegistry(models ...Descriptor) *Registry {
	r, err := NewRegistry(models...)
	if err != nil {
		panic(err)
	}
	return r
}

// Models returns the descriptors in declaration order.
func (r *Registry) Models() []Descriptor {
	return append([]Descriptor(nil), r.models...)
}

// Names returns the model names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.models))
	for i, m := range r.models {
		names[i] = m.Name()
	}
	return names
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Contains reports whether d itself (not just a model with the same name) is registered.
func (r *Registry) Contains(d Descriptor) bool {
	if d == nil {
		return false
	}
	registered, ok := r.byName[d.Name()]
	return ok && registered == d
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.models)
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("model name must not be empty")
	case name == "." || name == "..":
		return fmt.Errorf("model name %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("model name %q must not contain path separators", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("model name %q must not contain NUL", name)
	}
	return nil
}
