package recipe

import (
	"context"
	"reflect"
	"testing"
	"time"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/runnable"
)

func invokeBuiltin(t *testing.T, reg *Registry, name string, in any, params runnable.Params) (any, error) {
	t.Helper()
	u, ok := reg.Unit(name)
	if !ok {
		t.Fatalf("builtin %s is not registered", name)
	}
	return u.Invoke(context.Background(), in, runnable.WithParams(params))
}

func TestBuiltins_Units(t *testing.T) {
	reg := Builtins()
	tests := []struct {
		unit   string
		in     any
		params runnable.Params
		want   any
	}{
		{"identity", 42, nil, 42},
		{"trim", "  hi  ", nil, "hi"},
		{"upper", "hi", nil, "HI"},
		{"lower", "HI", nil, "hi"},
		{"words", " a  b c ", nil, []any{"a", "b", "c"}},
		{"count", "héllo", nil, 5},
		{"count", []any{1, 2}, nil, 2},
		{"count", map[string]any{"a": 1}, nil, 1},
		{"join", []any{"a", "b"}, nil, "a b"},
		{"join", []any{"a", 1}, runnable.Params{"sep": ","}, "a,1"},
		{"reverse", "abc", nil, "cba"},
		{"reverse", []any{1, 2, 3}, nil, []any{3, 2, 1}},
		{"template", "bob", runnable.Params{"template": "hi {input}!"}, "hi bob!"},
		{"template", map[string]any{"name": "ann", "n": 2}, runnable.Params{"template": "{name}:{n}"}, "ann:2"},
		{"prefix", "x", runnable.Params{"text": ">"}, ">x"},
		{"suffix", "x", runnable.Params{"text": "!"}, "x!"},
		{"delay", "x", runnable.Params{"duration": "1ms"}, "x"},
	}
	for _, tt := range tests {
		got, err := invokeBuiltin(t, reg, tt.unit, tt.in, tt.params)
		if err != nil {
			t.Errorf("%s(%v): %v", tt.unit, tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s(%v): expected %v, got %v", tt.unit, tt.in, tt.want, got)
		}
	}
}

func TestBuiltins_Errors(t *testing.T) {
	reg := Builtins()

	_, err := invokeBuiltin(t, reg, "upper", []any{"a"}, nil)
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("upper on a list: expected INVALID_INPUT, got %v", err)
	}

	_, err = invokeBuiltin(t, reg, "template", "x", nil)
	if !apperrors.HasCode(err, apperrors.ErrCodeMissingField) {
		t.Errorf("template without params: expected MISSING_FIELD, got %v", err)
	}

	_, err = invokeBuiltin(t, reg, "fail", "x", runnable.Params{"message": "nope"})
	if !apperrors.HasCode(err, apperrors.ErrCodeStageFailure) {
		t.Errorf("fail: expected STAGE_FAILURE, got %v", err)
	}
}

func TestBuiltins_Flaky(t *testing.T) {
	reg := Builtins()
	params := runnable.Params{"failures": 2}
	for i := 1; i <= 2; i++ {
		if _, err := invokeBuiltin(t, reg, "flaky", "x", params); err == nil {
			t.Fatalf("call %d: expected a failure", i)
		}
	}
	got, err := invokeBuiltin(t, reg, "flaky", "x", params)
	if err != nil || got != "x" {
		t.Fatalf("third call: expected x, got %v, %v", got, err)
	}
}

func TestBuiltins_DelayHonorsContext(t *testing.T) {
	u, _ := Builtins().Unit("delay")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := u.Invoke(ctx, "x", runnable.WithParams(runnable.Params{"duration": "5s"}))
	if err == nil {
		t.Fatal("expected an error")
	}
	if time.Since(start) > time.Second {
		t.Error("delay did not stop at the deadline")
	}
}

func TestBuiltins_StreamWords(t *testing.T) {
	u, _ := Builtins().Unit("stream_words")
	var chunks []any
	out, err := u.Stream(context.Background(), " one two ", func(_ context.Context, c any) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !reflect.DeepEqual(chunks, []any{"one", "two"}) {
		t.Errorf("unexpected chunks %v", chunks)
	}
	if out != "one two" {
		t.Errorf("expected aggregate 'one two', got %v", out)
	}
}

func TestBuiltins_Predicates(t *testing.T) {
	reg := Builtins()
	tests := []struct {
		expr string
		in   any
		want bool
	}{
		{"empty", "  ", true},
		{"empty", "x", false},
		{"non_empty", []any{1}, true},
		{"is_map", map[string]any{}, true},
		{"is_map", "x", false},
		{"is_list", []any{}, true},
		{"is_text", "x", true},
		{"has_key:name", map[string]any{"name": 1}, true},
		{"has_key:name", "name", false},
		{"contains:ell", "hello", true},
		{"equals:hi", "hi", true},
		{"equals:hi", "hii", false},
		{"longer_than:3", "abcd", true},
		{"longer_than:3", []any{1, 2}, false},
	}
	for _, tt := range tests {
		pred, err := reg.Predicate(tt.expr)
		if err != nil {
			t.Fatalf("%s: %v", tt.expr, err)
		}
		got, err := pred(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("%s: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("%s(%v): expected %v, got %v", tt.expr, tt.in, tt.want, got)
		}
	}
}

func TestRegistry_PredicateErrors(t *testing.T) {
	reg := Builtins()
	if _, err := reg.Predicate("nope"); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if _, err := reg.Predicate("has_key"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for a factory without argument, got %v", err)
	}
	if _, err := reg.Predicate("longer_than:many"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for a bad argument, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := Builtins()
	units := reg.Units()
	if len(units) != 15 || units[0] != "count" {
		t.Errorf("unexpected units %v", units)
	}
	if err := reg.Register(runnable.NewPassthrough[any]()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.RegisterAs("upper", runnable.NewPassthrough[any]()); !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
	preds := reg.Predicates()
	if preds[0] != "contains:" {
		t.Errorf("expected factories listed with a colon, got %v", preds)
	}
}
