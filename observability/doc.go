// Package observability sets up OpenTelemetry tracing and metrics for runkit.
//
// Providers export over OTLP HTTP and are only started when enabled in
// config; otherwise the global no-op providers stay installed and the
// middleware that records spans and instruments costs next to nothing.
//
// Metrics instruments: unit.runs, unit.duration, unit.active, unit.errors,
// unit.retries and http.requests.
package observability
