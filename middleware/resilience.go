package middleware

import (
	"context"
	"errors"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/resilience"
	"github.com/kbukum/runkit/runnable"
)

// WithCircuitBreaker rejects calls with a CIRCUIT_OPEN error while cb is
// open and records every call outcome. A call ended by caller cancellation
// is recorded as a success.
func WithCircuitBreaker[I, O any](cb *resilience.CircuitBreaker) Middleware[I, O] {
	return func(inner runnable.Unit[I, O]) runnable.Unit[I, O] {
		return wrap(inner, func(ctx context.Context, call Call, next func(context.Context) error) error {
			if err := cb.Allow(); err != nil {
				return apperrors.CircuitOpen(call.Unit).
					WithDetail("breaker", cb.Name()).
					WithCause(err)
			}
			err := next(ctx)
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				cb.Record(nil)
				return err
			}
			cb.Record(err)
			return err
		})
	}
}

// WithBulkhead caps concurrent calls through b. A call that finds no slot
// fails with OVERLOADED; one whose context ends while waiting returns the
// context error.
func WithBulkhead[I, O any](b *resilience.Bulkhead) Middleware[I, O] {
	return func(inner runnable.Unit[I, O]) runnable.Unit[I, O] {
		return wrap(inner, func(ctx context.Context, call Call, next func(context.Context) error) error {
			if err := b.Acquire(ctx); err != nil {
				if errors.Is(err, resilience.ErrBulkheadFull) || errors.Is(err, resilience.ErrBulkheadTimeout) {
					return apperrors.Overloaded(call.Unit).
						WithDetail("bulkhead", b.Name()).
						WithCause(err)
				}
				return err
			}
			defer b.Release()
			return next(ctx)
		})
	}
}

// WithRateLimit admits calls through rl. A call that cannot get a token
// within the limiter's wait fails with OVERLOADED; one whose context ends
// while queued returns the context error. A batch takes a single token.
func WithRateLimit[I, O any](rl *resilience.RateLimiter) Middleware[I, O] {
	return func(inner runnable.Unit[I, O]) runnable.Unit[I, O] {
		return wrap(inner, func(ctx context.Context, call Call, next func(context.Context) error) error {
			if err := rl.Wait(ctx); err != nil {
				if errors.Is(err, resilience.ErrRateLimited) {
					return apperrors.Overloaded(call.Unit).
						WithDetail("rate_limiter", rl.Name()).
						WithCause(err)
				}
				return err
			}
			return next(ctx)
		})
	}
}
