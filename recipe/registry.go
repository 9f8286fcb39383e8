package recipe

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/runnable"
)

// PredicateFactory builds a predicate from the argument of a "name:arg"
// expression.
type PredicateFactory func(arg string) (runnable.Predicate[any], error)

// Registry provides named lookup of the units and predicates recipes refer to.
type Registry struct {
	mu         sync.RWMutex
	units      map[string]runnable.Unit[any, any]
	predicates map[string]runnable.Predicate[any]
	factories  map[string]PredicateFactory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		units:      make(map[string]runnable.Unit[any, any]),
		predicates: make(map[string]runnable.Predicate[any]),
		factories:  make(map[string]PredicateFactory),
	}
}

// Register adds u under its own name.
func (r *Registry) Register(u runnable.Unit[any, any]) error {
	if u == nil {
		return apperrors.InvalidInput("unit", "unit is nil")
	}
	return r.RegisterAs(u.Name(), u)
}

// RegisterAs adds u under name. Names are unique.
func (r *Registry) RegisterAs(name string, u runnable.Unit[any, any]) error {
	if name == "" || u == nil {
		return apperrors.InvalidInput("unit", "a name and a unit are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.units[name]; exists {
		return apperrors.AlreadyExists("unit", name)
	}
	r.units[name] = u
	return nil
}

// RegisterPredicate adds a named predicate.
func (r *Registry) RegisterPredicate(name string, p runnable.Predicate[any]) error {
	if name == "" || p == nil || strings.Contains(name, ":") {
		return apperrors.InvalidInput("predicate", "a name without ':' and a predicate are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.predicates[name]; exists {
		return apperrors.AlreadyExists("predicate", name)
	}
	r.predicates[name] = p
	return nil
}

// RegisterPredicateFactory adds a parameterized predicate used as "name:arg".
func (r *Registry) RegisterPredicateFactory(name string, f PredicateFactory) error {
	if name == "" || f == nil || strings.Contains(name, ":") {
		return apperrors.InvalidInput("predicate", "a name without ':' and a factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return apperrors.AlreadyExists("predicate", name)
	}
	r.factories[name] = f
	return nil
}

// Unit retrieves a unit by name.
func (r *Registry) Unit(name string) (runnable.Unit[any, any], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[name]
	return u, ok
}

// Predicate resolves a predicate expression: a registered name, or
// "factory:arg" for a registered factory.
func (r *Registry) Predicate(expr string) (runnable.Predicate[any], error) {
	name, arg, hasArg := strings.Cut(expr, ":")

	r.mu.RLock()
	p, isPred := r.predicates[name]
	f, isFactory := r.factories[name]
	r.mu.RUnlock()

	switch {
	case !hasArg && isPred:
		return p, nil
	case hasArg && isFactory:
		pred, err := f(arg)
		if err != nil {
			return nil, apperrors.InvalidInput("when", fmt.Sprintf("%s: %v", expr, err)).WithCause(err)
		}
		return pred, nil
	case isFactory:
		return nil, apperrors.InvalidInput("when", fmt.Sprintf("predicate %q needs an argument (%s:<arg>)", name, name))
	default:
		return nil, apperrors.NotFound("predicate", name)
	}
}

// Units returns the sorted names of all registered units.
func (r *Registry) Units() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Predicates returns the sorted names of registered predicates and factories.
// Factories are listed as "name:".
func (r *Registry) Predicates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.predicates)+len(r.factories))
	for name := range r.predicates {
		names = append(names, name)
	}
	for name := range r.factories {
		names = append(names, name+":")
	}
	slices.Sort(names)
	return names
}
