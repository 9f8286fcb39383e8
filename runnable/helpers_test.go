package runnable

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
)

var errBoom = errors.New("boom")

func upperUnit() *Lambda[string, string] {
	return NewLambda("upper", func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	})
}

func suffixUnit(name, suffix string) *Lambda[string, string] {
	return NewLambda(name, func(_ context.Context, s string) (string, error) {
		return s + suffix, nil
	})
}

func lengthUnit() *Lambda[string, int] {
	return NewLambda("length", func(_ context.Context, s string) (int, error) {
		return len(s), nil
	})
}

// countingUnit calls fn and records how many times it ran.
func countingUnit(name string, calls *atomic.Int32, fn func(string) (string, error)) *Lambda[string, string] {
	return NewLambda(name, func(_ context.Context, s string) (string, error) {
		calls.Add(1)
		return fn(s)
	})
}

func failingUnit(name string, calls *atomic.Int32) *Lambda[string, string] {
	return countingUnit(name, calls, func(string) (string, error) { return "", errBoom })
}

// wordStream emits every word of the input and returns them joined.
func wordStream() *Lambda[string, string] {
	return NewStreamLambda("words", func(ctx context.Context, s string, _ Params, emit Sink[string]) (string, error) {
		for _, w := range strings.Fields(s) {
			if err := emit(ctx, w); err != nil {
				return "", err
			}
		}
		return strings.Join(strings.Fields(s), " "), nil
	})
}

func collect[T any](chunks *[]T) Sink[T] {
	return func(_ context.Context, chunk T) error {
		*chunks = append(*chunks, chunk)
		return nil
	}
}
