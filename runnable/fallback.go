package runnable

import (
	"context"
	"fmt"

	apperrors "github.com/kbukum/runkit/errors"
)

// FallbackConfig configures a Fallback.
type FallbackConfig[I, O any] struct {
	// Primary is tried first.
	Primary Unit[I, O]
	// Alternates are tried in order after the primary fails.
	Alternates []Unit[I, O]
	// HandleIf limits which errors move on to the next candidate. Nil
	// handles every error. Context cancellation never falls back.
	HandleIf func(error) bool
}

// Fallback tries its primary and then each alternate until one succeeds.
//
// When every candidate fails the result is an ExhaustionFailure whose cause
// is the last candidate's error; every failure message is kept under the
// "failures" detail.
type Fallback[I, O any] struct {
	candidates []Unit[I, O]
	handleIf   func(error) bool
}

// WithFallbacks wraps primary with alternates.
func WithFallbacks[I, O any](primary Unit[I, O], alternates ...Unit[I, O]) (*Fallback[I, O], error) {
	return NewFallback(FallbackConfig[I, O]{Primary: primary, Alternates: alternates})
}

// NewFallback builds a Fallback. At least one alternate is required.
func NewFallback[I, O any](cfg FallbackConfig[I, O]) (*Fallback[I, O], error) {
	if cfg.Primary == nil {
		return nil, apperrors.CompositionFailure("fallback", "a primary unit is required")
	}
	if len(cfg.Alternates) == 0 {
		return nil, apperrors.CompositionFailure("fallback("+cfg.Primary.Name()+")", "at least one alternate is required")
	}
	candidates := make([]Unit[I, O], 0, len(cfg.Alternates)+1)
	candidates = append(candidates, cfg.Primary)
	for i, alt := range cfg.Alternates {
		if alt == nil {
			return nil, apperrors.CompositionFailure("fallback("+cfg.Primary.Name()+")", fmt.Sprintf("alternate %d is nil", i))
		}
		candidates = append(candidates, alt)
	}
	return &Fallback[I, O]{candidates: candidates, handleIf: cfg.HandleIf}, nil
}

func (f *Fallback[I, O]) Name() string { return "fallback(" + f.candidates[0].Name() + ")" }

func (f *Fallback[I, O]) Invoke(ctx context.Context, in I, opts ...Option) (O, error) {
	var zero O
	failures := make([]string, 0, len(f.candidates))
	var last error
	for _, c := range f.candidates {
		out, err := c.Invoke(ctx, in, opts...)
		if err == nil {
			return out, nil
		}
		if !f.handles(ctx, err) {
			return zero, err
		}
		failures = append(failures, fmt.Sprintf("%s: %v", c.Name(), err))
		last = err
	}
	return zero, f.exhausted(failures, last)
}

// Stream substitutes a candidate only while nothing has reached the sink.
// Once a chunk is delivered, the running candidate's error is returned as is.
func (f *Fallback[I, O]) Stream(ctx context.Context, in I, sink Sink[O], opts ...Option) (O, error) {
	if sink == nil {
		return f.Invoke(ctx, in, opts...)
	}
	var zero O
	emitted := false
	counted := func(ctx context.Context, chunk O) error {
		emitted = true
		return sink(ctx, chunk)
	}

	failures := make([]string, 0, len(f.candidates))
	var last error
	for _, c := range f.candidates {
		out, err := c.Stream(ctx, in, counted, opts...)
		if err == nil {
			return out, nil
		}
		if emitted || !f.handles(ctx, err) {
			return zero, err
		}
		failures = append(failures, fmt.Sprintf("%s: %v", c.Name(), err))
		last = err
	}
	return zero, f.exhausted(failures, last)
}

// Batch applies the fallback policy to each item independently.
func (f *Fallback[I, O]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]O, error) {
	return DefaultBatch[I, O](ctx, f, inputs, opts...)
}

func (f *Fallback[I, O]) handles(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return f.handleIf == nil || f.handleIf(err)
}

func (f *Fallback[I, O]) exhausted(failures []string, last error) error {
	return apperrors.ExhaustionFailure(f.Name(), len(failures), last).
		WithDetail("failures", failures)
}
