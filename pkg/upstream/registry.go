package upstream

import (
	"fmt"
	"sort"
)

// Registry maps upstream type strings to their checkers. It is built once
// at startup from a fully-enumerated table and never mutated afterwards, so
// lookups need no locking.
type Registry struct {
	checkers map[string]Checker
}

// NewRegistry builds a registry from the given checkers, keyed by their
// Type(). Registering two checkers with the same type is a programming
// error and panics at startup rather than shadowing silently.
func NewRegistry(checkers ...Checker) *Registry {
	m := make(map[string]Checker, len(checkers))
	for _, c := range checkers {
		if _, dup := m[c.Type()]; dup {
			panic(fmt.Sprintf("upstream: duplicate checker type %q", c.Type()))
		}
		m[c.Type()] = c
	}
	return &Registry{checkers: m}
}

// Dispatch returns the checker for typ, or ErrUnknownType. A misconfigured
// upstream must fail loudly, not fail open.
func (r *Registry) Dispatch(typ string) (Checker, error) {
	c, ok := r.checkers[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return c, nil
}

// Types returns the registered type strings in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.checkers))
	for t := range r.checkers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
