package runnable

import (
	"context"
	"fmt"
	"runtime/debug"

	apperrors "github.com/kbukum/runkit/errors"
)

// KindOf returns the code of the outermost AppError in err's chain.
func KindOf(err error) apperrors.ErrorCode {
	return apperrors.CodeOf(err)
}

// stageError classifies an error returned by user code. AppErrors pass
// through so callers keep their own taxonomy.
func stageError(unit string, err error) error {
	if err == nil || apperrors.IsAppError(err) {
		return err
	}
	return apperrors.StageFailure(unit, err)
}

func panicError(unit string, r any) error {
	return apperrors.StageFailure(unit, fmt.Errorf("panic: %v", r)).
		WithDetail("stack", string(debug.Stack()))
}

// safeInvoke runs u.Invoke on behalf of a composer goroutine, turning a
// panic into a StageFailure instead of crashing the process.
func safeInvoke[I, O any](ctx context.Context, u Unit[I, O], in I, opts []Option) (out O, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(u.Name(), r)
		}
	}()
	return u.Invoke(ctx, in, opts...)
}
