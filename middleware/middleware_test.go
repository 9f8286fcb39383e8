package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/resilience"
	"github.com/kbukum/runkit/runnable"
)

var errBoom = errors.New("boom")

func upper() runnable.Unit[string, string] {
	return runnable.NewLambda("upper", func(_ context.Context, in string) (string, error) {
		return strings.ToUpper(in), nil
	})
}

func failing(calls *atomic.Int32) runnable.Unit[string, string] {
	return runnable.NewLambda("broken", func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", errBoom
	})
}

// tag appends its name on the way in so ordering is observable.
func tag(name string, order *[]string, mu *sync.Mutex) Middleware[string, string] {
	return func(inner runnable.Unit[string, string]) runnable.Unit[string, string] {
		return wrap(inner, func(ctx context.Context, call Call, next func(context.Context) error) error {
			mu.Lock()
			*order = append(*order, name)
			mu.Unlock()
			return next(ctx)
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	u := Apply(upper(), tag("a", &order, &mu), tag("b", &order, &mu), nil, tag("c", &order, &mu))

	out, err := u.Invoke(context.Background(), "hi")
	if err != nil || out != "HI" {
		t.Fatalf("unexpected result %q, %v", out, err)
	}
	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("expected a,b,c got %v", order)
	}
	if u.Name() != "upper" {
		t.Errorf("expected wrapped name to be kept, got %q", u.Name())
	}
}

func TestWrapCoversAllModes(t *testing.T) {
	var calls []Call
	var mu sync.Mutex
	record := func(inner runnable.Unit[string, string]) runnable.Unit[string, string] {
		return wrap(inner, func(ctx context.Context, call Call, next func(context.Context) error) error {
			mu.Lock()
			calls = append(calls, call)
			mu.Unlock()
			return next(ctx)
		})
	}
	u := record(upper())
	ctx := context.Background()

	if _, err := u.Invoke(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	var chunks []string
	out, err := u.Stream(ctx, "b", func(_ context.Context, c string) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil || out != "B" || len(chunks) != 1 {
		t.Fatalf("unexpected stream result %q %v %v", out, chunks, err)
	}
	outs, err := u.Batch(ctx, []string{"x", "y", "z"})
	if err != nil || strings.Join(outs, "") != "XYZ" {
		t.Fatalf("unexpected batch result %v %v", outs, err)
	}

	want := []Call{
		{Unit: "upper", Mode: ModeInvoke, Items: 1},
		{Unit: "upper", Mode: ModeStream, Items: 1},
		{Unit: "upper", Mode: ModeBatch, Items: 3},
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %+v, got %+v", i, want[i], calls[i])
		}
	}
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: logger.FormatJSON}, "test", &buf)
	ctx := logger.ContextWithRunID(context.Background(), "run-1")

	ok := Apply(upper(), WithLogging[string, string](log))
	if _, err := ok.Invoke(ctx, "hi"); err != nil {
		t.Fatal(err)
	}
	bad := Apply(failing(new(atomic.Int32)), WithLogging[string, string](log))
	if _, err := bad.Invoke(ctx, "hi"); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first["level"] != "debug" || first[logger.FieldUnit] != "upper" || first[logger.FieldRunID] != "run-1" {
		t.Errorf("unexpected success line %v", first)
	}
	if second["level"] != "error" || second[logger.FieldErrorCode] != string(apperrors.ErrCodeStageFailure) {
		t.Errorf("unexpected failure line %v", second)
	}
	if second[logger.FieldMode] != string(ModeInvoke) {
		t.Errorf("expected mode invoke, got %v", second[logger.FieldMode])
	}
}

func TestWithTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	u := Apply(upper(), WithTracing[string, string]("recipe"))
	if _, err := u.Batch(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	bad := Apply(failing(new(atomic.Int32)), WithTracing[string, string](""))
	_, _ = bad.Invoke(context.Background(), "a")

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "recipe.upper" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
	if spans[1].Name != observability.SpanUnit+".broken" {
		t.Errorf("unexpected span name %q", spans[1].Name)
	}
	attrs := map[string]string{}
	for _, kv := range spans[1].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[observability.AttrErrorCode] != string(apperrors.ErrCodeStageFailure) {
		t.Errorf("expected error code attribute, got %v", attrs)
	}
}

func TestWithMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ok := Apply(upper(), WithMetrics[string, string](metrics))
	bad := Apply(failing(new(atomic.Int32)), WithMetrics[string, string](metrics))
	_, _ = ok.Invoke(ctx, "a")
	_, _ = ok.Invoke(ctx, "b")
	_, _ = bad.Invoke(ctx, "c")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	if totals["unit.runs"] != 3 || totals["unit.errors"] != 1 || totals["unit.active"] != 0 {
		t.Errorf("unexpected totals %v", totals)
	}
}

func TestWithCircuitBreaker(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "broken",
		MaxFailures: 2,
		Timeout:     time.Hour,
	})
	var calls atomic.Int32
	u := Apply(failing(&calls), WithCircuitBreaker[string, string](cb))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := u.Invoke(ctx, "x"); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected errBoom, got %v", i, err)
		}
	}
	_, err := u.Invoke(ctx, "x")
	if !apperrors.HasCode(err, apperrors.ErrCodeCircuitOpen) {
		t.Fatalf("expected CIRCUIT_OPEN, got %v", err)
	}
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Error("expected ErrCircuitOpen in the chain")
	}
	if calls.Load() != 2 {
		t.Errorf("expected the open circuit to skip the unit, got %d calls", calls.Load())
	}
}

func TestWithCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "slow", MaxFailures: 1, Timeout: time.Hour})
	slow := runnable.NewLambda("slow", func(ctx context.Context, in string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	u := Apply(slow, WithCircuitBreaker[string, string](cb))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = u.Invoke(ctx, "x")
	if cb.State() != resilience.StateClosed {
		t.Errorf("expected cancellation to leave the circuit closed, got %s", cb.State())
	}
}

func TestWithBulkhead(t *testing.T) {
	b := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "one", MaxConcurrent: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := runnable.NewLambda("blocking", func(_ context.Context, in string) (string, error) {
		close(started)
		<-release
		return in, nil
	})
	u := Apply(blocking, WithBulkhead[string, string](b))

	done := make(chan error, 1)
	go func() {
		_, err := u.Invoke(context.Background(), "first")
		done <- err
	}()
	<-started

	_, err := u.Invoke(context.Background(), "second")
	if !apperrors.HasCode(err, apperrors.ErrCodeOverloaded) {
		t.Fatalf("expected OVERLOADED, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if b.InUse() != 0 {
		t.Errorf("expected slot to be released, in use %d", b.InUse())
	}
}

func TestWithRateLimit(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "slow-api", Rate: 0.001, Burst: 1})
	var calls atomic.Int32
	counted := runnable.NewLambda("counted", func(_ context.Context, in string) (string, error) {
		calls.Add(1)
		return in, nil
	})
	u := Apply(counted, WithRateLimit[string, string](rl))

	if _, err := u.Invoke(context.Background(), "first"); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	_, err := u.Invoke(context.Background(), "second")
	if !apperrors.HasCode(err, apperrors.ErrCodeOverloaded) {
		t.Fatalf("expected OVERLOADED, got %v", err)
	}
	if !errors.Is(err, resilience.ErrRateLimited) {
		t.Error("expected ErrRateLimited in the chain")
	}
	if calls.Load() != 1 {
		t.Errorf("expected the limited call to skip the unit, got %d calls", calls.Load())
	}
}

func TestWithRateLimitCanceledWhileQueued(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "queue", Rate: 0.001, Burst: 1, MaxWait: time.Hour})
	u := Apply(upper(), WithRateLimit[string, string](rl))
	if _, err := u.Invoke(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := u.Invoke(ctx, "b")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the context error, got %v", err)
	}
	if apperrors.HasCode(err, apperrors.ErrCodeOverloaded) {
		t.Error("a queued call ended by its context is not OVERLOADED")
	}
}
