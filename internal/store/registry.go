package store

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/remindhq/remind/internal/errs"
)

// Constructor produces a fresh, empty entity for its collection. The store
// unmarshals document bodies into the returned value.
type Constructor func() Entity

// Collection names double as table names, so they are restricted to a safe
// identifier shape before ever reaching SQL.
var collectionNameRE = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Registry maps collection names to entity constructors. It is populated
// once at startup (see domain.RegisterTypes) and read-only afterwards, so
// no locking is needed.
//
// This is an explicit table, not reflection: every entity type must be
// registered or the store cannot resolve its documents.
type Registry struct {
	types map[string]Constructor
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Constructor)}
}

// Register binds a collection name to a constructor. It fails with
// ErrInvalidInput on an unsafe name or a duplicate registration.
func (r *Registry) Register(collection string, fn Constructor) error {
	if !collectionNameRE.MatchString(collection) {
		return fmt.Errorf("%w: unsafe collection name %q", errs.ErrInvalidInput, collection)
	}
	if fn == nil {
		return fmt.Errorf("%w: nil constructor for collection %q", errs.ErrInvalidInput, collection)
	}
	if _, exists := r.types[collection]; exists {
		return fmt.Errorf("%w: collection %q already registered", errs.ErrInvalidInput, collection)
	}
	r.types[collection] = fn
	return nil
}

// MustRegister is Register for startup wiring, where a failure is a
// programming error.
func (r *Registry) MustRegister(collection string, fn Constructor) {
	if err := r.Register(collection, fn); err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
}

// Resolve returns the constructor for a collection, or ErrNotFound if the
// collection was never registered.
func (r *Registry) Resolve(collection string) (Constructor, error) {
	fn, ok := r.types[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", errs.ErrNotFound, collection)
	}
	return fn, nil
}

// Collections returns the registered collection names in sorted order.
func (r *Registry) Collections() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
