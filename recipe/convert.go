package recipe

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/runnable"
)

// erased exposes a typed unit as Unit[any, any], converting each input
// with conv. Conversion failures are INVALID_INPUT errors.
type erased[I, O any] struct {
	u    runnable.Unit[I, O]
	conv func(any) (I, error)
}

func erase[I, O any](u runnable.Unit[I, O], conv func(any) (I, error)) runnable.Unit[any, any] {
	return &erased[I, O]{u: u, conv: conv}
}

func (e *erased[I, O]) Name() string { return e.u.Name() }

func (e *erased[I, O]) input(v any) (I, error) {
	in, err := e.conv(v)
	if err != nil {
		return in, apperrors.InvalidInput("input", fmt.Sprintf("%s: %v", e.u.Name(), err)).
			WithDetail("unit", e.u.Name())
	}
	return in, nil
}

func (e *erased[I, O]) Invoke(ctx context.Context, v any, opts ...runnable.Option) (any, error) {
	in, err := e.input(v)
	if err != nil {
		return nil, err
	}
	out, err := e.u.Invoke(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *erased[I, O]) Stream(ctx context.Context, v any, sink runnable.Sink[any], opts ...runnable.Option) (any, error) {
	in, err := e.input(v)
	if err != nil {
		return nil, err
	}
	var typed runnable.Sink[O]
	if sink != nil {
		typed = func(ctx context.Context, chunk O) error { return sink(ctx, chunk) }
	}
	out, err := e.u.Stream(ctx, in, typed, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Batch converts every input before running any. With ContinueOnError a
// conversion failure is reported at its index and the rest still run.
func (e *erased[I, O]) Batch(ctx context.Context, inputs []any, opts ...runnable.Option) ([]any, error) {
	o := runnable.NewOptions(opts...)
	typed := make([]I, 0, len(inputs))
	index := make([]int, 0, len(inputs))
	var errs []error
	for i, v := range inputs {
		in, err := e.input(v)
		if err != nil {
			if !o.ContinueOnError {
				return nil, fmt.Errorf("%s: batch item %d: %w", e.u.Name(), i, err)
			}
			if errs == nil {
				errs = make([]error, len(inputs))
			}
			errs[i] = err
			continue
		}
		typed = append(typed, in)
		index = append(index, i)
	}

	results := make([]any, len(inputs))
	if len(typed) > 0 {
		outs, err := e.u.Batch(ctx, typed, opts...)
		var be *runnable.BatchError
		switch {
		case err == nil:
		case o.ContinueOnError && errors.As(err, &be) && len(be.Errors) == len(typed):
			if errs == nil {
				errs = make([]error, len(inputs))
			}
			for j, itemErr := range be.Errors {
				if itemErr != nil {
					errs[index[j]] = itemErr
				}
			}
		default:
			return nil, err
		}
		for j, out := range outs {
			if j < len(index) && (errs == nil || errs[index[j]] == nil) {
				results[index[j]] = out
			}
		}
	}
	if errs != nil {
		return results, &runnable.BatchError{Errors: errs}
	}
	return results, nil
}

// Input conversions. JSON-decoded values arrive as map[string]any, []any,
// string, float64 and bool.

func toAny(v any) (any, error) { return v, nil }

func toMap(v any) (runnable.Map, error) {
	switch m := v.(type) {
	case runnable.Map:
		return m, nil
	case map[string]any:
		return runnable.Map(m), nil
	case nil:
		return runnable.Map{}, nil
	default:
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
}

func toList(v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, nil
	case nil:
		return []any{}, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

func toText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	case []any, map[string]any, runnable.Map:
		return "", fmt.Errorf("expected text, got %T", v)
	case fmt.Stringer:
		return s.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// narrowed exposes an erased unit as Unit[I, any] so typed composers can
// hold it.
type narrowed[I any] struct {
	u runnable.Unit[any, any]
}

func narrow[I any](u runnable.Unit[any, any]) runnable.Unit[I, any] { return narrowed[I]{u: u} }

func (n narrowed[I]) Name() string { return n.u.Name() }

func (n narrowed[I]) Invoke(ctx context.Context, in I, opts ...runnable.Option) (any, error) {
	return n.u.Invoke(ctx, in, opts...)
}

func (n narrowed[I]) Stream(ctx context.Context, in I, sink runnable.Sink[any], opts ...runnable.Option) (any, error) {
	return n.u.Stream(ctx, in, sink, opts...)
}

func (n narrowed[I]) Batch(ctx context.Context, inputs []I, opts ...runnable.Option) ([]any, error) {
	erased := make([]any, len(inputs))
	for i, in := range inputs {
		erased[i] = in
	}
	return n.u.Batch(ctx, erased, opts...)
}
