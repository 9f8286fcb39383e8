package middleware

import (
	"context"
	"time"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/runnable"
)

// WithMetrics records unit.runs, unit.duration, unit.active and unit.errors
// for every call.
func WithMetrics[I, O any](metrics *observability.Metrics) Middleware[I, O] {
	return func(inner runnable.Unit[I, O]) runnable.Unit[I, O] {
		return wrap(inner, func(ctx context.Context, call Call, next func(context.Context) error) error {
			mode := string(call.Mode)
			metrics.RecordRunStart(ctx, call.Unit, mode)
			start := time.Now()
			err := next(ctx)

			status := observability.StatusOK
			if err != nil {
				status = observability.StatusError
				code := apperrors.CodeOf(err)
				if code == "" {
					code = apperrors.ErrCodeInternal
				}
				metrics.RecordError(ctx, call.Unit, string(code))
			}
			metrics.RecordRunEnd(ctx, call.Unit, mode, status, time.Since(start))
			return err
		})
	}
}
