package middleware

import (
	"context"

	"github.com/kbukum/runkit/runnable"
)

// Middleware wraps a unit with cross-cutting behavior. The wrapped unit keeps
// the inner unit's name.
type Middleware[I, O any] func(runnable.Unit[I, O]) runnable.Unit[I, O]

// Chain composes middlewares. The first one is outermost: it runs first on
// the way in and last on the way out.
//
// Chain(a, b, c)(u) is equivalent to a(b(c(u))).
func Chain[I, O any](middlewares ...Middleware[I, O]) Middleware[I, O] {
	return func(inner runnable.Unit[I, O]) runnable.Unit[I, O] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] != nil {
				inner = middlewares[i](inner)
			}
		}
		return inner
	}
}

// Apply wraps u with Chain(middlewares...).
func Apply[I, O any](u runnable.Unit[I, O], middlewares ...Middleware[I, O]) runnable.Unit[I, O] {
	return Chain(middlewares...)(u)
}

// Mode names the calling convention of an intercepted call.
type Mode string

const (
	ModeInvoke Mode = "invoke"
	ModeStream Mode = "stream"
	ModeBatch  Mode = "batch"
)

// Call describes one intercepted call.
type Call struct {
	Unit string
	Mode Mode
	// Items is the batch size for ModeBatch and 1 otherwise.
	Items int
}

// aroundFunc runs next, which performs the inner call with the given ctx.
type aroundFunc func(ctx context.Context, call Call, next func(context.Context) error) error

// around routes every calling convention of inner through fn.
type around[I, O any] struct {
	inner runnable.Unit[I, O]
	fn    aroundFunc
}

func wrap[I, O any](inner runnable.Unit[I, O], fn aroundFunc) runnable.Unit[I, O] {
	return &around[I, O]{inner: inner, fn: fn}
}

func (a *around[I, O]) Name() string { return a.inner.Name() }

func (a *around[I, O]) Invoke(ctx context.Context, in I, opts ...runnable.Option) (O, error) {
	var out O
	err := a.fn(ctx, Call{Unit: a.inner.Name(), Mode: ModeInvoke, Items: 1}, func(ctx context.Context) error {
		var err error
		out, err = a.inner.Invoke(ctx, in, opts...)
		return err
	})
	return out, err
}

func (a *around[I, O]) Stream(ctx context.Context, in I, sink runnable.Sink[O], opts ...runnable.Option) (O, error) {
	var out O
	err := a.fn(ctx, Call{Unit: a.inner.Name(), Mode: ModeStream, Items: 1}, func(ctx context.Context) error {
		var err error
		out, err = a.inner.Stream(ctx, in, sink, opts...)
		return err
	})
	return out, err
}

func (a *around[I, O]) Batch(ctx context.Context, inputs []I, opts ...runnable.Option) ([]O, error) {
	var outs []O
	err := a.fn(ctx, Call{Unit: a.inner.Name(), Mode: ModeBatch, Items: len(inputs)}, func(ctx context.Context) error {
		var err error
		outs, err = a.inner.Batch(ctx, inputs, opts...)
		return err
	})
	return outs, err
}
