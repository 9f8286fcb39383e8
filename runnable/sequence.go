package runnable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/kbukum/runkit/errors"
)

// step is a type-erased unit held by a Sequence.
type step interface {
	name() string
	invoke(ctx context.Context, in any, opts []Option) (any, error)
	stream(ctx context.Context, in any, sink Sink[any], opts []Option) (any, error)
	batch(ctx context.Context, ins []any, opts []Option) ([]any, error)
}

type typedStep[I, O any] struct {
	u Unit[I, O]
}

func (s typedStep[I, O]) name() string { return s.u.Name() }

func (s typedStep[I, O]) invoke(ctx context.Context, in any, opts []Option) (any, error) {
	return s.u.Invoke(ctx, cast[I](in), opts...)
}

func (s typedStep[I, O]) stream(ctx context.Context, in any, sink Sink[any], opts []Option) (any, error) {
	var typed Sink[O]
	if sink != nil {
		typed = func(ctx context.Context, chunk O) error { return sink(ctx, chunk) }
	}
	return s.u.Stream(ctx, cast[I](in), typed, opts...)
}

func (s typedStep[I, O]) batch(ctx context.Context, ins []any, opts []Option) ([]any, error) {
	typed := make([]I, len(ins))
	for i, v := range ins {
		typed[i] = cast[I](v)
	}
	outs, err := s.u.Batch(ctx, typed, opts...)
	if outs == nil {
		return nil, err
	}
	erased := make([]any, len(outs))
	for i, v := range outs {
		erased[i] = v
	}
	return erased, err
}

// stepper is implemented by Sequence so nested sequences flatten.
type stepper interface {
	sequenceSteps() []step
}

func stepsOf[I, O any](u Unit[I, O]) []step {
	if s, ok := any(u).(stepper); ok {
		return s.sequenceSteps()
	}
	return []step{typedStep[I, O]{u: u}}
}

// Sequence feeds the output of each step into the next.
//
// Nested sequences are flattened at construction, so grouping does not
// change behavior. A failing step aborts the run and no partial result is
// returned.
type Sequence[I, O any] struct {
	name  string
	steps []step
}

// Pipe chains a then b.
func Pipe[A, B, C any](a Unit[A, B], b Unit[B, C]) *Sequence[A, C] {
	return newSequence[A, C]("", stepsOf(a), stepsOf(b))
}

// Pipe3 chains a, b and c.
func Pipe3[A, B, C, D any](a Unit[A, B], b Unit[B, C], c Unit[C, D]) *Sequence[A, D] {
	return newSequence[A, D]("", stepsOf(a), stepsOf(b), stepsOf(c))
}

// Pipe4 chains a, b, c and d.
func Pipe4[A, B, C, D, E any](a Unit[A, B], b Unit[B, C], c Unit[C, D], d Unit[D, E]) *Sequence[A, E] {
	return newSequence[A, E]("", stepsOf(a), stepsOf(b), stepsOf(c), stepsOf(d))
}

// NewSequence chains units of the same type. It needs at least one unit.
func NewSequence[T any](name string, units ...Unit[T, T]) (*Sequence[T, T], error) {
	if len(units) == 0 {
		return nil, apperrors.CompositionFailure(nameOr(name, "sequence"), "at least one unit is required")
	}
	parts := make([][]step, len(units))
	for i, u := range units {
		if u == nil {
			return nil, apperrors.CompositionFailure(nameOr(name, "sequence"), fmt.Sprintf("unit %d is nil", i))
		}
		parts[i] = stepsOf(u)
	}
	return newSequence[T, T](name, parts...), nil
}

// Chain chains erased units. The caller is responsible for every output
// type matching the next input type.
func Chain(name string, units ...Unit[any, any]) (*Sequence[any, any], error) {
	return NewSequence(name, units...)
}

func newSequence[I, O any](name string, parts ...[]step) *Sequence[I, O] {
	var steps []step
	for _, p := range parts {
		steps = append(steps, p...)
	}
	return &Sequence[I, O]{name: name, steps: steps}
}

func (s *Sequence[I, O]) sequenceSteps() []step { return s.steps }

// Len returns the number of flattened steps.
func (s *Sequence[I, O]) Len() int { return len(s.steps) }

// StepNames returns the names of the flattened steps in order.
func (s *Sequence[I, O]) StepNames() []string {
	names := make([]string, len(s.steps))
	for i, st := range s.steps {
		names[i] = st.name()
	}
	return names
}

func (s *Sequence[I, O]) Name() string {
	if s.name != "" {
		return s.name
	}
	return strings.Join(s.StepNames(), " | ")
}

func (s *Sequence[I, O]) Invoke(ctx context.Context, in I, opts ...Option) (O, error) {
	var zero O
	var cur any = in
	for i, st := range s.steps {
		out, err := st.invoke(ctx, cur, opts)
		if err != nil {
			return zero, s.stepError(i, st, err)
		}
		cur = out
	}
	return cast[O](cur), nil
}

// Stream invokes every step but the last and streams the last one.
func (s *Sequence[I, O]) Stream(ctx context.Context, in I, sink Sink[O], opts ...Option) (O, error) {
	var zero O
	var cur any = in
	last := len(s.steps) - 1
	for i, st := range s.steps[:last] {
		out, err := st.invoke(ctx, cur, opts)
		if err != nil {
			return zero, s.stepError(i, st, err)
		}
		cur = out
	}

	var erased Sink[any]
	if sink != nil {
		erased = func(ctx context.Context, chunk any) error { return sink(ctx, cast[O](chunk)) }
	}
	out, err := s.steps[last].stream(ctx, cur, erased, opts)
	if err != nil {
		return zero, s.stepError(last, s.steps[last], err)
	}
	return cast[O](out), nil
}

// Batch runs the inputs through each step's own Batch in turn. With
// ContinueOnError, items that fail drop out of later steps and their errors
// are reported at their original index.
func (s *Sequence[I, O]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]O, error) {
	o := NewOptions(opts...)
	results := make([]O, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}

	cur := make([]any, len(inputs))
	alive := make([]int, len(inputs))
	for i, in := range inputs {
		cur[i] = in
		alive[i] = i
	}
	var errs []error

	for i, st := range s.steps {
		if len(cur) == 0 {
			break
		}
		outs, err := st.batch(ctx, cur, opts)
		if err == nil {
			cur = outs
			continue
		}

		var be *BatchError
		if !o.ContinueOnError || !errors.As(err, &be) || len(be.Errors) != len(cur) || len(outs) != len(cur) {
			return nil, s.stepError(i, st, err)
		}
		if errs == nil {
			errs = make([]error, len(inputs))
		}
		nextCur := make([]any, 0, len(cur))
		nextAlive := make([]int, 0, len(alive))
		for j, itemErr := range be.Errors {
			if itemErr != nil {
				errs[alive[j]] = s.stepError(i, st, itemErr)
				continue
			}
			nextCur = append(nextCur, outs[j])
			nextAlive = append(nextAlive, alive[j])
		}
		cur, alive = nextCur, nextAlive
	}

	for j, idx := range alive {
		results[idx] = cast[O](cur[j])
	}
	if errs != nil {
		return results, &BatchError{Errors: errs}
	}
	return results, nil
}

func (s *Sequence[I, O]) stepError(i int, st step, err error) error {
	return fmt.Errorf("%s: step %d (%s): %w", s.Name(), i, st.name(), err)
}
