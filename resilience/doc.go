// Package resilience provides the fault-tolerance primitives used by the
// retry decorator and the unit middleware.
//
//   - Retry: bounded re-invocation, immediate by default, with optional
//     exponential backoff
//   - CircuitBreaker: fails fast once a unit keeps failing
//   - Bulkhead: caps concurrent calls of a unit
//   - RateLimiter: token bucket admitting calls at a steady rate
package resilience
