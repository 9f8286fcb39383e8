package runnable

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	apperrors "github.com/kbukum/runkit/errors"
)

func TestLambda_Invoke(t *testing.T) {
	out, err := upperUnit().Invoke(context.Background(), "abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "ABC" {
		t.Errorf("expected ABC, got %s", out)
	}
}

func TestLambda_WrapsErrorsAsStageFailure(t *testing.T) {
	_, err := failingUnit("parser", new(atomic.Int32)).Invoke(context.Background(), "x")
	if KindOf(err) != apperrors.ErrCodeStageFailure {
		t.Fatalf("expected STAGE_FAILURE, got %v", err)
	}
	if !errors.Is(err, errBoom) {
		t.Error("expected the original error to be reachable")
	}
}

func TestLambda_PassesAppErrorsThrough(t *testing.T) {
	u := NewLambda("validate", func(_ context.Context, s string) (string, error) {
		return "", apperrors.InvalidInput("text", "empty")
	})
	_, err := u.Invoke(context.Background(), "")
	if KindOf(err) != apperrors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT to pass through, got %v", err)
	}
}

func TestLambda_RecoversPanics(t *testing.T) {
	u := NewLambda("crash", func(_ context.Context, s string) (string, error) {
		panic("bad state")
	})
	_, err := u.Invoke(context.Background(), "x")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeStageFailure {
		t.Fatalf("expected STAGE_FAILURE, got %v", err)
	}
	if _, ok := appErr.Details["stack"]; !ok {
		t.Error("expected a stack in the details")
	}
}

func TestParamLambda_ReceivesParams(t *testing.T) {
	u := NewParamLambda("greet", func(_ context.Context, s string, p Params) (string, error) {
		return p.GetString("greeting", "hello") + " " + s, nil
	})
	out, _ := u.Invoke(context.Background(), "bob", WithParams(Params{"greeting": "hi"}))
	if out != "hi bob" {
		t.Errorf("expected 'hi bob', got %q", out)
	}
	out, _ = u.Invoke(context.Background(), "bob")
	if out != "hello bob" {
		t.Errorf("expected 'hello bob', got %q", out)
	}
}

func TestLambda_StreamWithoutIncrementalOutput(t *testing.T) {
	var chunks []string
	out, err := upperUnit().Stream(context.Background(), "abc", collect(&chunks))
	if err != nil {
		t.Fatal(err)
	}
	if out != "ABC" || len(chunks) != 1 || chunks[0] != "ABC" {
		t.Errorf("expected exactly one chunk equal to the output, got %v / %q", chunks, out)
	}
}

func TestStreamLambda_ChunkOrder(t *testing.T) {
	var chunks []string
	out, err := wordStream().Stream(context.Background(), "one two three", collect(&chunks))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "two", "three"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %v, got %v", want, chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected %s, got %s", i, want[i], chunks[i])
		}
	}
	if out != "one two three" {
		t.Errorf("unexpected aggregate %q", out)
	}
}

func TestStreamLambda_InvokeDiscardsChunks(t *testing.T) {
	out, err := wordStream().Invoke(context.Background(), "a b")
	if err != nil || out != "a b" {
		t.Errorf("expected aggregate, got %q (%v)", out, err)
	}
}

func TestStreamLambda_SinkErrorIsReturnedUnchanged(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	_, err := wordStream().Stream(context.Background(), "a b c", func(context.Context, string) error {
		calls++
		return stop
	})
	if err != stop {
		t.Errorf("expected the sink error unchanged, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected production to stop after the first chunk, got %d calls", calls)
	}
}
