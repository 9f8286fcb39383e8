package runnable

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/resilience"
	"github.com/kbukum/runkit/validation"
)

// RetryConfig configures a Retry.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int `validate:"min=1"`
	// Params are bound to every attempt.
	Params Params
	// RetryIf limits which errors are retried. Nil retries every error.
	// Nothing is retried once the caller's context ends.
	RetryIf func(error) bool
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
	// Backoff is the delay before the second attempt. Zero retries immediately.
	Backoff time.Duration `validate:"gte=0"`
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `validate:"gte=0"`
	// BackoffFactor multiplies the delay after every attempt. Zero means 2.
	BackoffFactor float64 `validate:"gte=0"`
}

// Retry re-invokes a unit until it succeeds or its attempts run out.
// Exhaustion is reported as an ExhaustionFailure whose cause is the last
// attempt's error.
type Retry[I, O any] struct {
	inner Unit[I, O]
	cfg   RetryConfig
}

// WithRetry retries u up to maxAttempts times with params bound to every attempt.
func WithRetry[I, O any](u Unit[I, O], maxAttempts int, params Params) (*Retry[I, O], error) {
	return NewRetry(u, RetryConfig{MaxAttempts: maxAttempts, Params: params})
}

// NewRetry builds a Retry from cfg.
func NewRetry[I, O any](u Unit[I, O], cfg RetryConfig) (*Retry[I, O], error) {
	if u == nil {
		return nil, apperrors.CompositionFailure("retry", "a unit is required")
	}
	if err := validation.Validate(cfg); err != nil {
		return nil, apperrors.CompositionFailure("retry("+u.Name()+")", "invalid retry policy").WithCause(err)
	}
	cfg.Params = Params(nil).Merge(cfg.Params)
	return &Retry[I, O]{inner: u, cfg: cfg}, nil
}

func (r *Retry[I, O]) Name() string { return "retry(" + r.inner.Name() + ")" }

// MaxAttempts returns the configured attempt budget.
func (r *Retry[I, O]) MaxAttempts() int { return r.cfg.MaxAttempts }

func (r *Retry[I, O]) Invoke(ctx context.Context, in I, opts ...Option) (O, error) {
	opts = r.options(opts)
	out, err := resilience.Retry(ctx, r.policy(ctx, nil), func(ctx context.Context, _ int) (O, error) {
		return r.inner.Invoke(ctx, in, opts...)
	})
	return out, r.classify(err)
}

// Stream retries only while nothing has reached the sink.
func (r *Retry[I, O]) Stream(ctx context.Context, in I, sink Sink[O], opts ...Option) (O, error) {
	if sink == nil {
		return r.Invoke(ctx, in, opts...)
	}
	opts = r.options(opts)
	emitted := false
	counted := func(ctx context.Context, chunk O) error {
		emitted = true
		return sink(ctx, chunk)
	}
	out, err := resilience.Retry(ctx, r.policy(ctx, &emitted), func(ctx context.Context, _ int) (O, error) {
		return r.inner.Stream(ctx, in, counted, opts...)
	})
	return out, r.classify(err)
}

// Batch retries each item independently.
func (r *Retry[I, O]) Batch(ctx context.Context, inputs []I, opts ...Option) ([]O, error) {
	return DefaultBatch[I, O](ctx, r, inputs, opts...)
}

func (r *Retry[I, O]) options(opts []Option) []Option {
	return append([]Option{WithParams(r.cfg.Params)}, opts...)
}

// policy stops retrying once the caller's context ends or a chunk has been
// streamed. Deadlines of inner units are retried like any other failure.
func (r *Retry[I, O]) policy(ctx context.Context, emitted *bool) resilience.RetryConfig {
	policy := resilience.RetryConfig{
		MaxAttempts:    r.cfg.MaxAttempts,
		InitialBackoff: r.cfg.Backoff,
		MaxBackoff:     r.cfg.MaxBackoff,
		BackoffFactor:  r.cfg.BackoffFactor,
		RetryIf: func(err error) bool {
			if emitted != nil && *emitted {
				return false
			}
			if ctx.Err() != nil {
				return false
			}
			return r.cfg.RetryIf == nil || r.cfg.RetryIf(err)
		},
	}
	if r.cfg.OnRetry != nil {
		policy.OnRetry = func(attempt int, err error, _ time.Duration) { r.cfg.OnRetry(attempt, err) }
	}
	return policy
}

func (r *Retry[I, O]) classify(err error) error {
	var exhausted *resilience.ExhaustedError
	if errors.As(err, &exhausted) {
		return apperrors.ExhaustionFailure(r.Name(), exhausted.Attempts, exhausted.Err).
			WithDetail("last_error", fmt.Sprint(exhausted.Err))
	}
	return err
}
