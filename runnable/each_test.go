package runnable

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestEach_MapsInOrder(t *testing.T) {
	each := NewEach[string, string](slowMiddle())
	out, err := each.Invoke(context.Background(), []string{"a", "b", "c"}, WithMaxConcurrency(3))
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(out) != "[A B C]" {
		t.Errorf("expected [A B C], got %v", out)
	}
	if each.Name() != "each(slow_middle)" {
		t.Errorf("unexpected name %s", each.Name())
	}
}

func TestEach_FailsFastEvenWhenCallerContinues(t *testing.T) {
	picky := NewLambda("picky", func(_ context.Context, s string) (string, error) {
		if s == "b" {
			return "", errBoom
		}
		return s, nil
	})
	each := NewEach[string, string](picky)

	out, err := each.Invoke(context.Background(), []string{"a", "b"}, ContinueOnError())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	var be *BatchError
	if errors.As(err, &be) {
		t.Error("each must not return a partial batch")
	}
	if out != nil {
		t.Errorf("expected no output, got %v", out)
	}
}

func TestEach_IsolationThroughFallback(t *testing.T) {
	picky := NewLambda("picky", func(_ context.Context, s string) (string, error) {
		if s == "b" {
			return "", errBoom
		}
		return s, nil
	})
	safe := Must(WithFallbacks[string, string](picky, NewLambda("placeholder", func(context.Context, string) (string, error) {
		return "?", nil
	})))

	out, err := NewEach[string, string](safe).Invoke(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(out) != "[a ? c]" {
		t.Errorf("expected [a ? c], got %v", out)
	}
}

func TestEach_StreamEmitsWholeList(t *testing.T) {
	var chunks [][]string
	out, err := NewEach[string, string](upperUnit()).Stream(context.Background(), []string{"x", "y"}, collect(&chunks))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || fmt.Sprint(chunks[0]) != "[X Y]" || fmt.Sprint(out) != "[X Y]" {
		t.Errorf("unexpected stream result %v / %v", chunks, out)
	}
}
