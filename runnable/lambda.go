package runnable

import (
	"context"
)

// Lambda adapts a plain function into a Unit.
//
// Errors that are not already AppErrors are reported as StageFailure, and
// panics are recovered into StageFailure.
type Lambda[I, O any] struct {
	name   string
	invoke func(ctx context.Context, in I, params Params) (O, error)
	stream func(ctx context.Context, in I, params Params, emit Sink[O]) (O, error)
}

// NewLambda wraps fn as a Unit.
func NewLambda[I, O any](name string, fn func(ctx context.Context, in I) (O, error)) *Lambda[I, O] {
	return &Lambda[I, O]{
		name: nameOr(name, "lambda"),
		invoke: func(ctx context.Context, in I, _ Params) (O, error) {
			return fn(ctx, in)
		},
	}
}

// NewParamLambda wraps fn as a Unit that receives the merged call params.
func NewParamLambda[I, O any](name string, fn func(ctx context.Context, in I, params Params) (O, error)) *Lambda[I, O] {
	return &Lambda[I, O]{name: nameOr(name, "lambda"), invoke: fn}
}

// NewStreamLambda wraps a producer that emits chunks as it goes and returns
// the aggregate. Invoke runs it with a discarding emitter.
func NewStreamLambda[I, O any](name string, fn func(ctx context.Context, in I, params Params, emit Sink[O]) (O, error)) *Lambda[I, O] {
	l := &Lambda[I, O]{name: nameOr(name, "lambda"), stream: fn}
	l.invoke = func(ctx context.Context, in I, params Params) (O, error) {
		return fn(ctx, in, params, func(context.Context, O) error { return nil })
	}
	return l
}

func (l *Lambda[I, O]) Name() string { return l.name }

func (l *Lambda[I, O]) Invoke(ctx context.Context, in I, opts ...Option) (out O, err error) {
	o := NewOptions(opts...)
	defer func() {
		if r := recover(); r != nil {
			err = panicError(l.name, r)
		}
	}()
	out, err = l.invoke(ctx, in, o.Params)
	if err != nil {
		var zero O
		return zero, stageError(l.name, err)
	}
	return out, nil
}

func (l *Lambda[I, O]) Stream(ctx context.Context, in I, sink Sink[O], opts ...Option) (out O, err error) {
	if sink == nil {
		return l.Invoke(ctx, in, opts...)
	}
	if l.stream == nil {
		out, err = l.Invoke(ctx, in, opts...)
		if err != nil {
			return out, err
		}
		if err := sink(ctx, out); err != nil {
			var zero O
			return zero, err
		}
		return out, nil
	}

	o := NewOptions(opts...)
	var sinkErr error
	emit := func(ctx context.Context, chunk O) error {
		if sinkErr != nil {
			return sinkErr
		}
		sinkErr = sink(ctx, chunk)
		return sinkErr
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicError(l.name, r)
		}
	}()

	out, err = l.stream(ctx, in, o.Params, emit)
	var zero O
	if sinkErr != nil {
		return zero, sinkErr
	}
	if err != nil {
		return zero, stageError(l.name, err)
	}
	return out, nil
}

func (l *Lambda[I, O]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]O, error) {
	return DefaultBatch[I, O](ctx, l, inputs, opts...)
}
