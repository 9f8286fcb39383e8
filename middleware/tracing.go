package middleware

import (
	"context"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/runnable"
)

// WithTracing opens a span "{prefix}.{unit}" around every call. An empty
// prefix uses observability.SpanUnit.
func WithTracing[I, O any](prefix string) Middleware[I, O] {
	if prefix == "" {
		prefix = observability.SpanUnit
	}
	return func(inner runnable.Unit[I, O]) runnable.Unit[I, O] {
		return wrap(inner, func(ctx context.Context, call Call, next func(context.Context) error) error {
			ctx, span := observability.StartSpan(ctx, prefix+"."+call.Unit)
			defer span.End()

			observability.SetSpanAttribute(ctx, observability.AttrUnit, call.Unit)
			observability.SetSpanAttribute(ctx, observability.AttrMode, string(call.Mode))
			if call.Mode == ModeBatch {
				observability.SetSpanAttribute(ctx, observability.AttrItems, call.Items)
			}

			err := next(ctx)
			if err != nil {
				if code := apperrors.CodeOf(err); code != "" {
					observability.SetSpanAttribute(ctx, observability.AttrErrorCode, string(code))
				}
				observability.SetSpanError(ctx, err)
			}
			return err
		})
	}
}
