package recipe

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/middleware"
	"github.com/kbukum/runkit/runnable"
)

func compileYAML(t *testing.T, reg *Registry, doc string, opts ...CompileOption) runnable.Unit[any, any] {
	t.Helper()
	r, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	u, err := Compile(r, reg, opts...)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return u
}

func TestCompile_Sequence(t *testing.T) {
	u := compileYAML(t, Builtins(), shoutYAML)
	if u.Name() != "shout" {
		t.Errorf("expected the recipe name, got %s", u.Name())
	}
	got, err := u.Invoke(context.Background(), "  hello ")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "HELLO" {
		t.Errorf("expected HELLO, got %v", got)
	}
}

func TestCompile_Parallel(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: stats
root:
  parallel:
    - key: loud
      unit: upper
    - key: size
      unit: count
`)
	got, err := u.Invoke(context.Background(), "ab c")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := runnable.Map{"loud": "AB C", "size": 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCompile_Assign(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: greet
root:
  assign:
    - key: greeting
      unit: template
      params:
        template: "hello {name}"
`)
	got, err := u.Invoke(context.Background(), map[string]any{"name": "ann"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := runnable.Map{"name": "ann", "greeting": "hello ann"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	_, err = u.Invoke(context.Background(), "not a map")
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for text input, got %v", err)
	}
}

func TestCompile_BranchAndEach(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: route
root:
  branch:
    cases:
      - when: longer_than:5
        then:
          sequence:
            - unit: words
            - each: {unit: upper}
            - unit: join
              params: {sep: "_"}
    default:
      passthrough: true
`)
	tests := []struct {
		in   string
		want any
	}{
		{"short", "short"},
		{"a longer text", "A_LONGER_TEXT"},
	}
	for _, tt := range tests {
		got, err := u.Invoke(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestCompile_RecipeParamsReachUnits(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: tagged
params:
  text: ">> "
root:
  unit: prefix
`)
	got, err := u.Invoke(context.Background(), "x")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != ">> x" {
		t.Errorf("expected '>> x', got %v", got)
	}
	got, _ = u.Invoke(context.Background(), "x", runnable.WithParams(runnable.Params{"text": "# "}))
	if got != "# x" {
		t.Errorf("call params must override bound ones, got %v", got)
	}
}

func TestCompile_RetryRecovers(t *testing.T) {
	var mu sync.Mutex
	var retried []string
	onRetry := func(unit string, _ int, _ error) {
		mu.Lock()
		retried = append(retried, unit)
		mu.Unlock()
	}
	u := compileYAML(t, Builtins(), `
name: steady
root:
  unit: flaky
  params: {failures: 2}
  retry: {max_attempts: 3}
`, WithOnRetry(onRetry))

	got, err := u.Invoke(context.Background(), "ok")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %v", got)
	}
	if len(retried) != 2 || retried[0] != "flaky" {
		t.Errorf("expected two retries of flaky, got %v", retried)
	}
}

func TestCompile_RetryExhausted(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: doomed
root:
  unit: fail
  retry: {max_attempts: 2}
`)
	_, err := u.Invoke(context.Background(), "x")
	if runnable.KindOf(err) != apperrors.ErrCodeExhaustionFailure {
		t.Fatalf("expected EXHAUSTION_FAILURE, got %v", err)
	}
	if !apperrors.HasCode(err, apperrors.ErrCodeStageFailure) {
		t.Error("expected the last attempt's STAGE_FAILURE as cause")
	}
}

func TestCompile_Fallbacks(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: safe
root:
  unit: fail
  fallbacks:
    - unit: fail
    - unit: suffix
      params: {text: "?"}
`)
	got, err := u.Invoke(context.Background(), "x")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "x?" {
		t.Errorf("expected x?, got %v", got)
	}
}

func TestCompile_Timeout(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: slow
root:
  unit: delay
  params: {duration: 2s}
  timeout: 20ms
`)
	_, err := u.Invoke(context.Background(), "x")
	if runnable.KindOf(err) != apperrors.ErrCodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestCompile_DefaultTimeout(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: slow
root:
  unit: delay
  params: {duration: 2s}
`, WithDefaultTimeout(20*time.Millisecond))
	_, err := u.Invoke(context.Background(), "x")
	if runnable.KindOf(err) != apperrors.ErrCodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestCompile_CircuitBreakerOpens(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: fragile
root:
  unit: fail
  circuit_breaker: {max_failures: 1, reset_timeout: 1m}
`)
	_, err := u.Invoke(context.Background(), "x")
	if runnable.KindOf(err) != apperrors.ErrCodeStageFailure {
		t.Fatalf("first call: expected STAGE_FAILURE, got %v", err)
	}
	_, err = u.Invoke(context.Background(), "x")
	if runnable.KindOf(err) != apperrors.ErrCodeCircuitOpen {
		t.Fatalf("second call: expected CIRCUIT_OPEN, got %v", err)
	}
}

func TestCompile_BulkheadRejects(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: narrow
root:
  unit: delay
  params: {duration: 200ms}
  bulkhead: {max_concurrent: 1}
`)
	first := runnable.InvokeAsync(context.Background(), u, any("a"))
	time.Sleep(30 * time.Millisecond)

	_, err := u.Invoke(context.Background(), "b")
	if runnable.KindOf(err) != apperrors.ErrCodeOverloaded {
		t.Errorf("expected OVERLOADED, got %v", err)
	}
	if _, err := first.Wait(context.Background()); err != nil {
		t.Errorf("first call: %v", err)
	}
}

func TestCompile_RateLimitRejects(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: metered
root:
  unit: upper
  rate_limit: {rate: 0.001, burst: 2}
`)
	for _, in := range []string{"a", "b"} {
		if _, err := u.Invoke(context.Background(), in); err != nil {
			t.Fatalf("call %s within burst: %v", in, err)
		}
	}
	_, err := u.Invoke(context.Background(), "c")
	if runnable.KindOf(err) != apperrors.ErrCodeOverloaded {
		t.Errorf("expected OVERLOADED, got %v", err)
	}
}

func TestCompile_RateLimitWithFallback(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: metered
root:
  unit: upper
  rate_limit: {rate: 0.001, burst: 1}
  fallbacks:
    - passthrough: true
`)
	out, _ := u.Invoke(context.Background(), "a")
	if out != "A" {
		t.Fatalf("expected A, got %v", out)
	}
	out, err := u.Invoke(context.Background(), "b")
	if err != nil || out != "b" {
		t.Errorf("expected the limited call to fall back to b, got %v, %v", out, err)
	}
}

func TestCompile_Stream(t *testing.T) {
	u := compileYAML(t, Builtins(), `
name: talk
root:
  sequence:
    - unit: trim
    - unit: stream_words
`)
	var chunks []any
	out, err := u.Stream(context.Background(), "  a b ", func(_ context.Context, c any) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !reflect.DeepEqual(chunks, []any{"a", "b"}) || out != "a b" {
		t.Errorf("unexpected chunks %v and result %v", chunks, out)
	}
}

func TestCompile_BatchContinueOnError(t *testing.T) {
	u := compileYAML(t, Builtins(), "name: loud\nroot:\n  unit: upper\n")
	outs, err := u.Batch(context.Background(), []any{"a", []any{"b"}, "c"}, runnable.ContinueOnError())
	be, ok := err.(*runnable.BatchError)
	if !ok {
		t.Fatalf("expected *BatchError, got %v", err)
	}
	if !reflect.DeepEqual(be.Failed(), []int{1}) {
		t.Errorf("expected item 1 to fail, got %v", be.Failed())
	}
	if outs[0] != "A" || outs[2] != "C" {
		t.Errorf("unexpected outputs %v", outs)
	}
}

func TestCompile_LeafAndRootMiddleware(t *testing.T) {
	var wrapped []string
	record := func(prefix string) middleware.Middleware[any, any] {
		return func(u runnable.Unit[any, any]) runnable.Unit[any, any] {
			wrapped = append(wrapped, prefix+u.Name())
			return u
		}
	}
	compileYAML(t, Builtins(), shoutYAML, WithMiddleware(record("leaf:")), WithRootMiddleware(record("root:")))

	want := []string{"leaf:trim", "leaf:upper", "root:shout"}
	if !reflect.DeepEqual(wrapped, want) {
		t.Errorf("expected %v, got %v", want, wrapped)
	}
}

func TestCompile_UnknownNames(t *testing.T) {
	reg := Builtins()
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"unit", "name: a\nroot:\n  sequence:\n    - unit: trim\n    - unit: nope\n", "root.sequence[1]"},
		{"predicate", "name: b\nroot:\n  branch:\n    cases:\n      - when: nope\n        then: {unit: trim}\n    default: {unit: trim}\n", "root.branch.cases[0].when"},
	}
	for _, tt := range tests {
		r, err := Parse([]byte(tt.doc))
		if err != nil {
			t.Fatalf("%s: Parse: %v", tt.name, err)
		}
		_, err = Compile(r, reg)
		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.Code != apperrors.ErrCodeNotFound {
			t.Fatalf("%s: expected NOT_FOUND, got %v", tt.name, err)
		}
		if appErr.Details["path"] != tt.path {
			t.Errorf("%s: expected path %s, got %v", tt.name, tt.path, appErr.Details["path"])
		}
	}
}

func TestCompile_Includes(t *testing.T) {
	reg := Builtins()
	set := recipeSet{}
	for _, doc := range []string{
		"name: clean\nroot:\n  sequence:\n    - unit: trim\n    - unit: lower\n",
		"name: outer\nroot:\n  sequence:\n    - recipe: clean\n    - unit: reverse\n",
	} {
		r, err := Parse([]byte(doc))
		if err != nil {
			t.Fatal(err)
		}
		set[r.Name] = r
	}

	u, err := Compile(set["outer"], reg, WithIncludes(set))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, err := u.Invoke(context.Background(), " AbC ")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "cba" {
		t.Errorf("expected cba, got %v", got)
	}

	if _, err := Compile(set["outer"], reg); !apperrors.HasCode(err, apperrors.ErrCodeCompositionFailure) {
		t.Errorf("expected COMPOSITION_FAILURE without an includer, got %v", err)
	}
}

func TestCompile_IncludeCycle(t *testing.T) {
	set := recipeSet{}
	for _, doc := range []string{
		"name: ping\nroot:\n  recipe: pong\n",
		"name: pong\nroot:\n  sequence:\n    - unit: trim\n    - recipe: ping\n",
	} {
		r, err := Parse([]byte(doc))
		if err != nil {
			t.Fatal(err)
		}
		set[r.Name] = r
	}
	_, err := Compile(set["ping"], Builtins(), WithIncludes(set))
	if !apperrors.HasCode(err, apperrors.ErrCodeCompositionFailure) {
		t.Fatalf("expected COMPOSITION_FAILURE, got %v", err)
	}
}

func TestCompile_FreshStatePerCompilation(t *testing.T) {
	reg := Builtins()
	doc := "name: fragile\nroot:\n  unit: fail\n  circuit_breaker: {max_failures: 1}\n"
	a := compileYAML(t, reg, doc)
	b := compileYAML(t, reg, doc)

	a.Invoke(context.Background(), "x")
	_, err := b.Invoke(context.Background(), "x")
	if runnable.KindOf(err) == apperrors.ErrCodeCircuitOpen {
		t.Error("breakers must not be shared between compilations")
	}
}
