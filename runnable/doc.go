// Package runnable is the composition and execution engine.
//
// Every stage implements Unit, which exposes the same three execution modes:
// Invoke for a single call, Stream for incremental output through a Sink,
// and Batch for many inputs at once. Composers build new Units from existing
// ones and only ever call their children through the Unit contract:
//
//	trim := runnable.NewLambda("trim", func(ctx context.Context, s string) (string, error) {
//	    return strings.TrimSpace(s), nil
//	})
//	stats := runnable.Must(runnable.NewParallel("stats",
//	    runnable.Keyed("upper", upper),
//	    runnable.Keyed("words", words),
//	))
//	pipeline := runnable.Pipe(trim, stats)
//	out, err := pipeline.Invoke(ctx, "  hello world ")
//
// Decorators add behavior around a unit: Bind fixes parameters, WithRetry
// re-invokes on failure, WithFallbacks substitutes alternates and
// WithTimeout bounds the run time.
//
// Errors follow the taxonomy of the errors package. Leaf failures are
// StageFailure, misconfigured or unroutable composers are
// CompositionFailure, and spent retry or fallback chains are
// ExhaustionFailure. Composers add context by wrapping, so errors.As and
// KindOf still see the original kind.
package runnable
