package runnable

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Unit is a processing stage with a uniform calling convention.
//
// Invoke runs the unit once. Stream runs it once and delivers output chunks to
// sink in production order before returning the aggregated value; a nil sink
// behaves like Invoke. Batch runs it over many inputs and returns one output per
// input, in input order.
type Unit[I, O any] interface {
	Name() string
	Invoke(ctx context.Context, input I, opts ...Option) (O, error)
	Stream(ctx context.Context, input I, sink Sink[O], opts ...Option) (O, error)
	Batch(ctx context.Context, inputs []I, opts ...Option) ([]O, error)
}

// Sink receives stream chunks. A non-nil return aborts production and is
// returned from Stream unchanged.
type Sink[T any] func(ctx context.Context, chunk T) error

// Params are parameters bound to a unit or supplied per call.
type Params map[string]any

// Merge returns a new Params holding p overridden by over.
func (p Params) Merge(over Params) Params {
	if len(p) == 0 && len(over) == 0 {
		return nil
	}
	out := make(Params, len(p)+len(over))
	maps.Copy(out, p)
	maps.Copy(out, over)
	return out
}

// Get returns the value stored under key.
func (p Params) Get(key string) (any, bool) {
	v, ok := p[key]
	return v, ok
}

// GetString returns the string stored under key, or def when missing or not a string.
func (p Params) GetString(key, def string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return def
}

// Map is the keyed value produced by Parallel and carried through Assign.
type Map map[string]any

// Clone returns a shallow copy of m.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	maps.Copy(out, m)
	return out
}

// Keys returns the keys of m in sorted order.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// String renders m as {key: value, ...} in key order.
func (m Map) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, m[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Options carry per-call settings. They flow unchanged from a composer to
// every child it invokes.
type Options struct {
	// Params are the merged call parameters.
	Params Params
	// MaxConcurrency bounds concurrent work inside Batch and Parallel.
	// Values below 2 make Batch sequential; zero leaves Parallel unbounded.
	MaxConcurrency int
	// ContinueOnError makes Batch run every item and report failures
	// per index through *BatchError instead of stopping at the first one.
	ContinueOnError bool
}

// Option configures a call.
type Option func(*Options)

// NewOptions applies opts in order. Later params override earlier ones.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithParams merges p over the params set by earlier options.
func WithParams(p Params) Option {
	return func(o *Options) {
		o.Params = o.Params.Merge(p)
	}
}

// WithMaxConcurrency bounds concurrent work inside Batch and Parallel.
func WithMaxConcurrency(n int) Option {
	return func(o *Options) {
		o.MaxConcurrency = n
	}
}

// ContinueOnError makes Batch collect per-item failures instead of failing fast.
func ContinueOnError() Option {
	return func(o *Options) {
		o.ContinueOnError = true
	}
}

// failFast undoes ContinueOnError for children that must stop at the first failure.
func failFast() Option {
	return func(o *Options) {
		o.ContinueOnError = false
	}
}

// Must panics if err is non-nil and returns u otherwise.
func Must[U any](u U, err error) U {
	if err != nil {
		panic(err)
	}
	return u
}

func nameOr(name, def string) string {
	if name != "" {
		return name
	}
	return def
}

// cast converts an erased value back to T. Nil converts to T's zero value.
func cast[T any](v any) T {
	t, _ := v.(T)
	return t
}
