package runnable

import (
	"context"
	"fmt"

	apperrors "github.com/kbukum/runkit/errors"
)

// Predicate decides whether a branch case applies to an input.
type Predicate[I any] func(ctx context.Context, input I) (bool, error)

// Case pairs a condition with the unit that runs when it holds.
type Case[I, O any] struct {
	cond func(ctx context.Context, in I, opts []Option) (bool, error)
	then Unit[I, O]
}

// When runs then for inputs matching pred.
func When[I, O any](pred Predicate[I], then Unit[I, O]) Case[I, O] {
	c := Case[I, O]{then: then}
	if pred != nil {
		c.cond = func(ctx context.Context, in I, _ []Option) (bool, error) { return pred(ctx, in) }
	}
	return c
}

// WhenUnit runs then for inputs for which cond returns true.
func WhenUnit[I, O any](cond Unit[I, bool], then Unit[I, O]) Case[I, O] {
	c := Case[I, O]{then: then}
	if cond != nil {
		c.cond = func(ctx context.Context, in I, opts []Option) (bool, error) { return cond.Invoke(ctx, in, opts...) }
	}
	return c
}

// Branch dispatches each input to the first case whose condition holds, or
// to the default unit when none does. Conditions are evaluated in
// declaration order; a condition error stops dispatch.
type Branch[I, O any] struct {
	name  string
	cases []Case[I, O]
	def   Unit[I, O]
}

// NewBranch builds a Branch. It needs a default unit and at least one case.
func NewBranch[I, O any](name string, def Unit[I, O], cases ...Case[I, O]) (*Branch[I, O], error) {
	name = nameOr(name, "branch")
	if def == nil {
		return nil, apperrors.CompositionFailure(name, "a default unit is required")
	}
	if len(cases) == 0 {
		return nil, apperrors.CompositionFailure(name, "at least one case is required")
	}
	for i, c := range cases {
		if c.cond == nil || c.then == nil {
			return nil, apperrors.CompositionFailure(name, fmt.Sprintf("case %d needs a condition and a unit", i))
		}
	}
	return &Branch[I, O]{name: name, cases: append([]Case[I, O](nil), cases...), def: def}, nil
}

func (b *Branch[I, O]) Name() string { return b.name }

// Route returns the unit that would handle in.
func (b *Branch[I, O]) Route(ctx context.Context, in I, opts ...Option) (Unit[I, O], error) {
	for i, c := range b.cases {
		ok, err := b.evaluate(ctx, i, c, in, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			return c.then, nil
		}
	}
	return b.def, nil
}

func (b *Branch[I, O]) evaluate(ctx context.Context, i int, c Case[I, O], in I, opts []Option) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.CompositionFailure(b.name, fmt.Sprintf("condition %d panicked: %v", i, r))
		}
	}()
	ok, err = c.cond(ctx, in, opts)
	if err != nil {
		return false, apperrors.CompositionFailure(b.name, fmt.Sprintf("condition %d failed", i)).
			WithDetail("case", i).WithCause(err)
	}
	return ok, nil
}

func (b *Branch[I, O]) Invoke(ctx context.Context, in I, opts ...Option) (O, error) {
	var zero O
	u, err := b.Route(ctx, in, opts...)
	if err != nil {
		return zero, err
	}
	out, err := u.Invoke(ctx, in, opts...)
	if err != nil {
		return zero, fmt.Errorf("%s: %s: %w", b.name, u.Name(), err)
	}
	return out, nil
}

func (b *Branch[I, O]) Stream(ctx context.Context, in I, sink Sink[O], opts ...Option) (O, error) {
	var zero O
	u, err := b.Route(ctx, in, opts...)
	if err != nil {
		return zero, err
	}
	out, err := u.Stream(ctx, in, sink, opts...)
	if err != nil {
		return zero, fmt.Errorf("%s: %s: %w", b.name, u.Name(), err)
	}
	return out, nil
}

// Batch routes every item independently.
func (b *Branch[I, O]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]O, error) {
	return DefaultBatch[I, O](ctx, b, inputs, opts...)
}
