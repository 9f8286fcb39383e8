package runnable

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// BatchError reports per-item failures of a batch run with ContinueOnError.
// Errors has one entry per input; successful items hold nil.
type BatchError struct {
	Errors []error
}

func (e *BatchError) Error() string {
	failed := e.Failed()
	if len(failed) == 0 {
		return "batch: no failures"
	}
	parts := make([]string, 0, len(failed))
	for _, i := range failed {
		parts = append(parts, fmt.Sprintf("item %d: %v", i, e.Errors[i]))
	}
	return fmt.Sprintf("batch: %d of %d items failed: %s", len(failed), len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap returns the non-nil item errors.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors))
	for _, err := range e.Errors {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Failed returns the indexes of the failed items.
func (e *BatchError) Failed() []int {
	var out []int
	for i, err := range e.Errors {
		if err != nil {
			out = append(out, i)
		}
	}
	return out
}

// acquire takes a slot of sem unless ctx ends first. A slot freed together
// with the cancellation is handed back, so a canceled batch launches nothing.
func acquire(ctx context.Context, sem chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case sem <- struct{}{}:
		if ctx.Err() != nil {
			<-sem
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// DefaultBatch runs u.Invoke over inputs. It is the Batch implementation of
// every unit in this package that has no better strategy.
//
// Items run sequentially unless WithMaxConcurrency allows more than one at a
// time. The output always has len(inputs) entries in input order. By default
// the first failure cancels outstanding items and is returned alone; with
// ContinueOnError every item runs and failures come back as *BatchError next
// to the partial output.
func DefaultBatch[I, O any](ctx context.Context, u Unit[I, O], inputs []I, opts ...Option) ([]O, error) {
	o := NewOptions(opts...)
	outs := make([]O, len(inputs))
	if len(inputs) == 0 {
		return outs, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(inputs))
	firstErr := -1

	if o.MaxConcurrency <= 1 {
		for i, in := range inputs {
			if err := ctx.Err(); err != nil {
				errs[i] = err
			} else {
				outs[i], errs[i] = safeInvoke(ctx, u, in, opts)
			}
			if errs[i] != nil && !o.ContinueOnError {
				firstErr = i
				break
			}
		}
	} else {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			sem  = make(chan struct{}, o.MaxConcurrency)
			stop bool
		)
		for i := range inputs {
			if !acquire(ctx, sem) {
				for j := i; j < len(inputs); j++ {
					errs[j] = ctx.Err()
				}
				break
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				out, err := safeInvoke(ctx, u, inputs[i], opts)
				if err == nil {
					outs[i] = out
					return
				}
				errs[i] = err
				if o.ContinueOnError {
					return
				}
				mu.Lock()
				if !stop {
					stop = true
					firstErr = i
					cancel()
				}
				mu.Unlock()
			}(i)
		}
		wg.Wait()
	}

	if !o.ContinueOnError {
		if firstErr < 0 {
			for i, err := range errs {
				if err != nil {
					firstErr = i
					break
				}
			}
		}
		if firstErr >= 0 {
			return nil, fmt.Errorf("%s: batch item %d: %w", u.Name(), firstErr, errs[firstErr])
		}
		return outs, nil
	}

	for _, err := range errs {
		if err != nil {
			return outs, &BatchError{Errors: errs}
		}
	}
	return outs, nil
}

// Future is the pending result of an asynchronous run.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func goFuture[T any](name string, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = panicError(name, r)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// BatchAsync starts u.Batch on a separate goroutine and returns immediately.
// Canceling ctx cancels the run.
func BatchAsync[I, O any](ctx context.Context, u Unit[I, O], inputs []I, opts ...Option) *Future[[]O] {
	inputs = append([]I(nil), inputs...)
	return goFuture(u.Name(), func() ([]O, error) {
		return u.Batch(ctx, inputs, opts...)
	})
}

// InvokeAsync starts u.Invoke on a separate goroutine and returns immediately.
func InvokeAsync[I, O any](ctx context.Context, u Unit[I, O], input I, opts ...Option) *Future[O] {
	return goFuture(u.Name(), func() (O, error) {
		return u.Invoke(ctx, input, opts...)
	})
}
