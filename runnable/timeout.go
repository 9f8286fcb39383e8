package runnable

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/kbukum/runkit/errors"
)

// Timeout bounds how long a unit may run.
type Timeout[I, O any] struct {
	inner Unit[I, O]
	d     time.Duration
}

// WithTimeout gives every call of u a deadline of d. A call that runs past
// it fails with a Timeout error wrapping context.DeadlineExceeded.
func WithTimeout[I, O any](u Unit[I, O], d time.Duration) *Timeout[I, O] {
	return &Timeout[I, O]{inner: u, d: d}
}

func (t *Timeout[I, O]) Name() string { return t.inner.Name() }

// Invoke returns at the deadline even if the unit ignores its context. Such
// a unit keeps running in the background until it returns; its result is
// discarded.
func (t *Timeout[I, O]) Invoke(ctx context.Context, in I, opts ...Option) (O, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	type result struct {
		out O
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := safeInvoke(ctx, t.inner, in, opts)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, t.classify(ctx, r.err)
	case <-ctx.Done():
		var zero O
		return zero, t.classify(ctx, ctx.Err())
	}
}

// Stream relies on the unit observing its context, so no chunk reaches the
// sink after Stream returns.
func (t *Timeout[I, O]) Stream(ctx context.Context, in I, sink Sink[O], opts ...Option) (O, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	out, err := t.inner.Stream(ctx, in, sink, opts...)
	return out, t.classify(ctx, err)
}

func (t *Timeout[I, O]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]O, error) {
	return DefaultBatch[I, O](ctx, t, inputs, opts...)
}

func (t *Timeout[I, O]) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Timeout(t.inner.Name()).
			WithDetail("timeout", t.d.String()).
			WithCause(err)
	}
	return err
}
