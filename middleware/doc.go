// Package middleware decorates runnable units with logging, metrics,
// tracing, circuit breaking, bulkheads and rate limits.
//
// Every middleware intercepts Invoke, Stream and Batch alike, and the
// wrapped unit keeps its inner name, so decorated units compose exactly
// like bare ones:
//
//	guarded := middleware.Apply(unit,
//		middleware.WithTracing[string, string](""),
//		middleware.WithLogging[string, string](log),
//		middleware.WithCircuitBreaker[string, string](cb),
//	)
package middleware
