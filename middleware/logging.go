package middleware

import (
	"context"
	"time"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/runnable"
)

// WithLogging logs every call with its unit, mode, item count and duration.
// Successes log at debug, failures at error with the error code.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return func(inner runnable.Unit[I, O]) runnable.Unit[I, O] {
		return wrap(inner, func(ctx context.Context, call Call, next func(context.Context) error) error {
			start := time.Now()
			err := next(ctx)

			fields := logger.Fields(
				logger.FieldUnit, call.Unit,
				logger.FieldMode, string(call.Mode),
				logger.FieldItems, call.Items,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			)
			l := log.WithContext(ctx)
			if err != nil {
				fields[logger.FieldError] = err.Error()
				if code := apperrors.CodeOf(err); code != "" {
					fields[logger.FieldErrorCode] = string(code)
				}
				l.Error("unit run failed", fields)
			} else {
				l.Debug("unit run ok", fields)
			}
			return err
		})
	}
}
