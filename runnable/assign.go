package runnable

import "context"

// Assign computes new keys from a Map and returns the input extended with
// them. Every field unit sees the full original input; computed keys
// overwrite existing ones. The input map is never modified.
type Assign struct {
	fields *Parallel[Map]
}

// NewAssign builds an Assign. Keys must be non-empty and unique.
func NewAssign(name string, fields ...KeyedUnit[Map]) (*Assign, error) {
	par, err := NewParallel(nameOr(name, "assign"), fields...)
	if err != nil {
		return nil, err
	}
	return &Assign{fields: par}, nil
}

func (a *Assign) Name() string { return a.fields.Name() }

// Keys returns the computed keys in declaration order.
func (a *Assign) Keys() []string { return a.fields.Keys() }

func (a *Assign) Invoke(ctx context.Context, in Map, opts ...Option) (Map, error) {
	computed, err := a.fields.Invoke(ctx, in.Clone(), opts...)
	if err != nil {
		return nil, err
	}
	return merge(in, computed), nil
}

// Stream emits a copy of the input first, then Map{key: chunk} for every
// computed chunk.
func (a *Assign) Stream(ctx context.Context, in Map, sink Sink[Map], opts ...Option) (Map, error) {
	if sink == nil {
		return a.Invoke(ctx, in, opts...)
	}
	if err := sink(ctx, in.Clone()); err != nil {
		return nil, err
	}
	computed, err := a.fields.Stream(ctx, in.Clone(), sink, opts...)
	if err != nil {
		return nil, err
	}
	return merge(in, computed), nil
}

func (a *Assign) Batch(ctx context.Context, inputs []Map, opts ...Option) ([]Map, error) {
	return DefaultBatch[Map, Map](ctx, a, inputs, opts...)
}

func merge(in, computed Map) Map {
	out := in.Clone()
	for k, v := range computed {
		out[k] = v
	}
	return out
}
