package runnable

import "context"

// Bound is a unit with parameters fixed at construction.
type Bound[I, O any] struct {
	inner  Unit[I, O]
	params Params
}

// Bind returns u with params bound. On every call the bound params are the
// base and call-time params override them. Binding an already bound unit
// layers the new params over the old ones.
func Bind[I, O any](u Unit[I, O], params Params) *Bound[I, O] {
	return &Bound[I, O]{inner: u, params: Params(nil).Merge(params)}
}

// Params returns a copy of the bound params.
func (b *Bound[I, O]) Params() Params { return Params(nil).Merge(b.params) }

func (b *Bound[I, O]) Name() string { return b.inner.Name() }

func (b *Bound[I, O]) Invoke(ctx context.Context, in I, opts ...Option) (O, error) {
	return b.inner.Invoke(ctx, in, b.options(opts)...)
}

func (b *Bound[I, O]) Stream(ctx context.Context, in I, sink Sink[O], opts ...Option) (O, error) {
	return b.inner.Stream(ctx, in, sink, b.options(opts)...)
}

func (b *Bound[I, O]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]O, error) {
	return b.inner.Batch(ctx, inputs, b.options(opts)...)
}

func (b *Bound[I, O]) options(opts []Option) []Option {
	return append([]Option{WithParams(b.params)}, opts...)
}
