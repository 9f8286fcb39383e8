package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/runkit/logger"
)

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The provider should be shut down on exit.
func InitMeter(ctx context.Context, cfg *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Run status values recorded on unit.runs.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the instruments recorded for unit executions.
type Metrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
	errors   metric.Int64Counter
	retries  metric.Int64Counter
	requests metric.Int64Counter
}

// NewMetrics creates the runkit instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runs, err := meter.Int64Counter("unit.runs",
		metric.WithDescription("Unit executions by unit, mode and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unit.runs counter: %w", err)
	}

	duration, err := meter.Float64Histogram("unit.duration",
		metric.WithDescription("Duration of unit executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unit.duration histogram: %w", err)
	}

	active, err := meter.Int64UpDownCounter("unit.active",
		metric.WithDescription("Unit executions in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unit.active counter: %w", err)
	}

	errs, err := meter.Int64Counter("unit.errors",
		metric.WithDescription("Unit failures by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unit.errors counter: %w", err)
	}

	retries, err := meter.Int64Counter("unit.retries",
		metric.WithDescription("Retry attempts after a failed try"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unit.retries counter: %w", err)
	}

	requests, err := meter.Int64Counter("http.requests",
		metric.WithDescription("HTTP requests by route and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http.requests counter: %w", err)
	}

	return &Metrics{
		runs:     runs,
		duration: duration,
		active:   active,
		errors:   errs,
		retries:  retries,
		requests: requests,
	}, nil
}

// NewGlobalMetrics creates the instruments on the global meter provider.
func NewGlobalMetrics() (*Metrics, error) {
	return NewMetrics(Meter(InstrumentationName))
}

// RecordRunStart increments the in-flight count for unit.
func (m *Metrics) RecordRunStart(ctx context.Context, unit, mode string) {
	m.active.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrUnit, unit),
		attribute.String(AttrMode, mode),
	))
}

// RecordRunEnd decrements the in-flight count and records the completed run.
func (m *Metrics) RecordRunEnd(ctx context.Context, unit, mode, status string, d time.Duration) {
	base := []attribute.KeyValue{
		attribute.String(AttrUnit, unit),
		attribute.String(AttrMode, mode),
	}
	m.active.Add(ctx, -1, metric.WithAttributes(base...))
	m.runs.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String(AttrStatus, status))...))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(base...))
}

// RecordError counts a unit failure by error code.
func (m *Metrics) RecordError(ctx context.Context, unit, code string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrUnit, unit),
		attribute.String(AttrErrorCode, code),
	))
}

// RecordRetry counts one retry of unit.
func (m *Metrics) RecordRetry(ctx context.Context, unit string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrUnit, unit)))
}

// RecordRequest counts one HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, route string, status int) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int(AttrStatus, status),
	))
}
