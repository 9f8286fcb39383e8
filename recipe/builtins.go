package recipe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/runnable"
)

// Builtins returns a registry holding the built-in text units and predicates.
func Builtins() *Registry {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		panic(err)
	}
	return r
}

// RegisterBuiltins adds the built-in units and predicates to r.
//
// Units: identity, trim, upper, lower, words, count, join, reverse,
// template, prefix, suffix, stream_words, delay, fail, flaky.
// Predicates: empty, non_empty, is_map, is_list, is_text, and the factories
// has_key:<key>, contains:<text>, equals:<text>, longer_than:<n>.
func RegisterBuiltins(r *Registry) error {
	units := []runnable.Unit[any, any]{
		runnable.NewLambda("identity", func(_ context.Context, in any) (any, error) { return in, nil }),
		textUnit("trim", func(s string, _ runnable.Params) (any, error) { return strings.TrimSpace(s), nil }),
		textUnit("upper", func(s string, _ runnable.Params) (any, error) { return strings.ToUpper(s), nil }),
		textUnit("lower", func(s string, _ runnable.Params) (any, error) { return strings.ToLower(s), nil }),
		textUnit("words", func(s string, _ runnable.Params) (any, error) { return anyList(strings.Fields(s)), nil }),
		textUnit("prefix", func(s string, p runnable.Params) (any, error) { return p.GetString("text", "") + s, nil }),
		textUnit("suffix", func(s string, p runnable.Params) (any, error) { return s + p.GetString("text", ""), nil }),
		runnable.NewParamLambda("count", count),
		runnable.NewParamLambda("join", join),
		runnable.NewParamLambda("reverse", reverse),
		runnable.NewParamLambda("template", template),
		runnable.NewStreamLambda("stream_words", streamWords),
		runnable.NewParamLambda("delay", delay),
		runnable.NewParamLambda("fail", func(_ context.Context, _ any, p runnable.Params) (any, error) {
			return nil, errors.New(p.GetString("message", "forced failure"))
		}),
		newFlaky(),
	}
	for _, u := range units {
		if err := r.Register(u); err != nil {
			return err
		}
	}

	predicates := map[string]runnable.Predicate[any]{
		"empty":     func(_ context.Context, in any) (bool, error) { return isEmpty(in), nil },
		"non_empty": func(_ context.Context, in any) (bool, error) { return !isEmpty(in), nil },
		"is_map": func(_ context.Context, in any) (bool, error) {
			_, err := toMap(in)
			return err == nil && in != nil, nil
		},
		"is_list": func(_ context.Context, in any) (bool, error) {
			_, err := toList(in)
			return err == nil && in != nil, nil
		},
		"is_text": func(_ context.Context, in any) (bool, error) {
			_, ok := in.(string)
			return ok, nil
		},
	}
	for name, p := range predicates {
		if err := r.RegisterPredicate(name, p); err != nil {
			return err
		}
	}

	factories := map[string]PredicateFactory{
		"has_key":     hasKey,
		"contains":    textMatch(strings.Contains),
		"equals":      textMatch(func(s, arg string) bool { return s == arg }),
		"longer_than": longerThan,
	}
	for name, f := range factories {
		if err := r.RegisterPredicateFactory(name, f); err != nil {
			return err
		}
	}
	return nil
}

func textUnit(name string, fn func(s string, p runnable.Params) (any, error)) runnable.Unit[any, any] {
	return runnable.NewParamLambda(name, func(_ context.Context, in any, p runnable.Params) (any, error) {
		s, err := toText(in)
		if err != nil {
			return nil, apperrors.InvalidInput("input", name+": "+err.Error())
		}
		return fn(s, p)
	})
}

func anyList(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func count(_ context.Context, in any, _ runnable.Params) (any, error) {
	switch v := in.(type) {
	case []any:
		return len(v), nil
	case runnable.Map:
		return len(v), nil
	case map[string]any:
		return len(v), nil
	}
	s, err := toText(in)
	if err != nil {
		return nil, apperrors.InvalidInput("input", "count: "+err.Error())
	}
	return utf8.RuneCountInString(s), nil
}

func join(_ context.Context, in any, p runnable.Params) (any, error) {
	items, err := toList(in)
	if err != nil {
		return nil, apperrors.InvalidInput("input", "join: "+err.Error())
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprint(item)
	}
	return strings.Join(parts, p.GetString("sep", " ")), nil
}

func reverse(_ context.Context, in any, _ runnable.Params) (any, error) {
	if items, err := toList(in); err == nil && in != nil {
		out := slices.Clone(items)
		slices.Reverse(out)
		return out, nil
	}
	s, err := toText(in)
	if err != nil {
		return nil, apperrors.InvalidInput("input", "reverse: "+err.Error())
	}
	runes := []rune(s)
	slices.Reverse(runes)
	return string(runes), nil
}

// template fills {input} with the input text, or {key} with fields of a map input.
func template(_ context.Context, in any, p runnable.Params) (any, error) {
	tmpl := p.GetString("template", "")
	if tmpl == "" {
		return nil, apperrors.MissingField("params.template")
	}
	if m, err := toMap(in); err == nil && in != nil {
		pairs := make([]string, 0, len(m)*2)
		for _, k := range m.Keys() {
			pairs = append(pairs, "{"+k+"}", fmt.Sprint(m[k]))
		}
		return strings.NewReplacer(pairs...).Replace(tmpl), nil
	}
	s, err := toText(in)
	if err != nil {
		return nil, apperrors.InvalidInput("input", "template: "+err.Error())
	}
	return strings.ReplaceAll(tmpl, "{input}", s), nil
}

// streamWords emits each word of the input and returns them joined by spaces.
func streamWords(ctx context.Context, in any, _ runnable.Params, emit runnable.Sink[any]) (any, error) {
	s, err := toText(in)
	if err != nil {
		return nil, apperrors.InvalidInput("input", "stream_words: "+err.Error())
	}
	words := strings.Fields(s)
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := emit(ctx, w); err != nil {
			return nil, err
		}
	}
	return strings.Join(words, " "), nil
}

// delay waits for params.duration (default 100ms) and returns its input.
func delay(ctx context.Context, in any, p runnable.Params) (any, error) {
	d, err := time.ParseDuration(p.GetString("duration", "100ms"))
	if err != nil {
		return nil, apperrors.InvalidInput("params.duration", err.Error())
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return in, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flaky fails its first params.failures calls (default 1) and then echoes
// its input. The count is kept per registered instance.
type flaky struct {
	runnable.Unit[any, any]
	calls atomic.Int64
}

func newFlaky() *flaky {
	f := &flaky{}
	f.Unit = runnable.NewParamLambda("flaky", func(_ context.Context, in any, p runnable.Params) (any, error) {
		n := f.calls.Add(1)
		if n <= int64(intParam(p, "failures", 1)) {
			return nil, fmt.Errorf("flaky: call %d failed", n)
		}
		return in, nil
	})
	return f
}

func intParam(p runnable.Params, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func isEmpty(in any) bool {
	switch v := in.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case runnable.Map:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

func hasKey(key string) (runnable.Predicate[any], error) {
	if key == "" {
		return nil, errors.New("a key is required")
	}
	return func(_ context.Context, in any) (bool, error) {
		m, err := toMap(in)
		if err != nil {
			return false, nil
		}
		_, ok := m[key]
		return ok, nil
	}, nil
}

func textMatch(match func(s, arg string) bool) PredicateFactory {
	return func(arg string) (runnable.Predicate[any], error) {
		return func(_ context.Context, in any) (bool, error) {
			s, err := toText(in)
			if err != nil {
				return false, nil
			}
			return match(s, arg), nil
		}, nil
	}
}

func longerThan(arg string) (runnable.Predicate[any], error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("longer_than needs an integer, got %q", arg)
	}
	return func(ctx context.Context, in any) (bool, error) {
		size, err := count(ctx, in, nil)
		if err != nil {
			return false, nil
		}
		return size.(int) > n, nil
	}, nil
}
