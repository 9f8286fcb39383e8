package runnable

import "context"

// Each applies a unit to every element of a list input. Element order is
// preserved and the first element failure fails the whole call, whatever
// the caller's batch options. Wrap the element unit in a Fallback or Retry
// to isolate failures.
type Each[I, O any] struct {
	inner Unit[I, O]
}

// NewEach maps u over list inputs.
func NewEach[I, O any](u Unit[I, O]) *Each[I, O] {
	return &Each[I, O]{inner: u}
}

func (e *Each[I, O]) Name() string { return "each(" + e.inner.Name() + ")" }

func (e *Each[I, O]) Invoke(ctx context.Context, in []I, opts ...Option) ([]O, error) {
	return e.inner.Batch(ctx, in, append(append([]Option(nil), opts...), failFast())...)
}

func (e *Each[I, O]) Stream(ctx context.Context, in []I, sink Sink[[]O], opts ...Option) ([]O, error) {
	out, err := e.Invoke(ctx, in, opts...)
	if err != nil || sink == nil {
		return out, err
	}
	if err := sink(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Each[I, O]) Batch(ctx context.Context, inputs [][]I, opts ...Option) ([][]O, error) {
	return DefaultBatch[[]I, []O](ctx, e, inputs, opts...)
}
