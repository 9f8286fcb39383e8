package runnable

import "context"

// Passthrough returns its input unchanged. It is the identity element of
// sequence composition.
type Passthrough[T any] struct{}

// NewPassthrough returns an identity unit.
func NewPassthrough[T any]() *Passthrough[T] { return &Passthrough[T]{} }

func (*Passthrough[T]) Name() string { return "passthrough" }

func (*Passthrough[T]) Invoke(_ context.Context, in T, _ ...Option) (T, error) {
	return in, nil
}

func (*Passthrough[T]) Stream(ctx context.Context, in T, sink Sink[T], _ ...Option) (T, error) {
	if sink != nil {
		if err := sink(ctx, in); err != nil {
			var zero T
			return zero, err
		}
	}
	return in, nil
}

func (*Passthrough[T]) Batch(_ context.Context, inputs []T, _ ...Option) ([]T, error) {
	return append(make([]T, 0, len(inputs)), inputs...), nil
}
