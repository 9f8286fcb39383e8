package runnable

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/kbukum/runkit/errors"
)

// KeyedUnit is a named branch of a Parallel or Assign.
type KeyedUnit[I any] struct {
	Key  string
	unit Unit[I, any]
}

// Keyed names u as a branch whose output is stored under key.
func Keyed[I, O any](key string, u Unit[I, O]) KeyedUnit[I] {
	if u == nil {
		return KeyedUnit[I]{Key: key}
	}
	if erased, ok := any(u).(Unit[I, any]); ok {
		return KeyedUnit[I]{Key: key, unit: erased}
	}
	return KeyedUnit[I]{Key: key, unit: erasedOutput[I, O]{u: u}}
}

// erasedOutput exposes a Unit[I, O] as a Unit[I, any].
type erasedOutput[I, O any] struct {
	u Unit[I, O]
}

func (e erasedOutput[I, O]) Name() string { return e.u.Name() }

func (e erasedOutput[I, O]) Invoke(ctx context.Context, in I, opts ...Option) (any, error) {
	return e.u.Invoke(ctx, in, opts...)
}

func (e erasedOutput[I, O]) Stream(ctx context.Context, in I, sink Sink[any], opts ...Option) (any, error) {
	var typed Sink[O]
	if sink != nil {
		typed = func(ctx context.Context, chunk O) error { return sink(ctx, chunk) }
	}
	return e.u.Stream(ctx, in, typed, opts...)
}

func (e erasedOutput[I, O]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]any, error) {
	outs, err := e.u.Batch(ctx, inputs, opts...)
	if outs == nil {
		return nil, err
	}
	erased := make([]any, len(outs))
	for i, v := range outs {
		erased[i] = v
	}
	return erased, err
}

// Parallel runs every branch against the same input concurrently and merges
// the outputs into a Map keyed by branch name.
//
// The first branch failure cancels the remaining branches through the
// context and is returned at once, without waiting for them.
type Parallel[I any] struct {
	name     string
	branches []KeyedUnit[I]
}

// NewParallel builds a Parallel. Keys must be non-empty and unique.
func NewParallel[I any](name string, branches ...KeyedUnit[I]) (*Parallel[I], error) {
	name = nameOr(name, "parallel")
	if len(branches) == 0 {
		return nil, apperrors.CompositionFailure(name, "at least one branch is required")
	}
	seen := make(map[string]struct{}, len(branches))
	for i, b := range branches {
		if b.Key == "" {
			return nil, apperrors.CompositionFailure(name, fmt.Sprintf("branch %d has an empty key", i))
		}
		if _, dup := seen[b.Key]; dup {
			return nil, apperrors.CompositionFailure(name, fmt.Sprintf("duplicate branch key %q", b.Key)).
				WithDetail("key", b.Key)
		}
		if b.unit == nil {
			return nil, apperrors.CompositionFailure(name, fmt.Sprintf("branch %q has no unit", b.Key))
		}
		seen[b.Key] = struct{}{}
	}
	return &Parallel[I]{name: name, branches: append([]KeyedUnit[I](nil), branches...)}, nil
}

func (p *Parallel[I]) Name() string { return p.name }

// Keys returns the branch keys in declaration order.
func (p *Parallel[I]) Keys() []string {
	keys := make([]string, len(p.branches))
	for i, b := range p.branches {
		keys[i] = b.Key
	}
	return keys
}

func (p *Parallel[I]) Invoke(ctx context.Context, in I, opts ...Option) (Map, error) {
	return p.run(ctx, in, nil, opts)
}

// Stream streams every branch and forwards each chunk as Map{key: chunk}.
// Sink calls are serialized; chunk order holds per branch only.
func (p *Parallel[I]) Stream(ctx context.Context, in I, sink Sink[Map], opts ...Option) (Map, error) {
	return p.run(ctx, in, sink, opts)
}

func (p *Parallel[I]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]Map, error) {
	return DefaultBatch[I, Map](ctx, p, inputs, opts...)
}

type branchResult struct {
	index int
	value any
	err   error
}

// fanIn serializes branch chunks into the caller's sink and stops delivering
// once the composer has returned.
type fanIn struct {
	mu     sync.Mutex
	sink   Sink[Map]
	closed bool
}

func (f *fanIn) forward(key string) Sink[any] {
	return func(ctx context.Context, chunk any) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed {
			return context.Canceled
		}
		return f.sink(ctx, Map{key: chunk})
	}
}

func (f *fanIn) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (p *Parallel[I]) run(ctx context.Context, in I, sink Sink[Map], opts []Option) (Map, error) {
	o := NewOptions(opts...)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fan *fanIn
	if sink != nil {
		fan = &fanIn{sink: sink}
		defer fan.close()
	}

	var sem chan struct{}
	if o.MaxConcurrency > 0 && o.MaxConcurrency < len(p.branches) {
		sem = make(chan struct{}, o.MaxConcurrency)
	}

	// Buffered so branches that finish after an early return never block.
	results := make(chan branchResult, len(p.branches))
	for i := range p.branches {
		go func(i int) {
			value, err := p.runBranch(ctx, i, in, fan, sem, opts)
			results <- branchResult{index: i, value: value, err: err}
		}(i)
	}

	out := make(Map, len(p.branches))
	for range p.branches {
		r := <-results
		if r.err != nil {
			return nil, fmt.Errorf("%s: branch %q: %w", p.name, p.branches[r.index].Key, r.err)
		}
		out[p.branches[r.index].Key] = r.value
	}
	return out, nil
}

func (p *Parallel[I]) runBranch(ctx context.Context, i int, in I, fan *fanIn, sem chan struct{}, opts []Option) (value any, err error) {
	b := p.branches[i]
	defer func() {
		if r := recover(); r != nil {
			err = panicError(b.unit.Name(), r)
		}
	}()

	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fan == nil {
		return b.unit.Invoke(ctx, in, opts...)
	}
	return b.unit.Stream(ctx, in, fan.forward(b.Key), opts...)
}
