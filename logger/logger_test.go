package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func jsonLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := &Config{Level: level, Format: FormatJSON, Output: "stdout"}
	return NewWithWriter(cfg, "runkit-test", &buf), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "\n") {
		line = line[strings.LastIndex(line, "\n")+1:]
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "invalid-level", Format: FormatJSON}, "test", &buf)
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be dropped at info level, got %q", buf.String())
	}
	l.Info("shown")
	if buf.Len() == 0 {
		t.Error("expected info line")
	}
}

func TestNewFromEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")
	defer os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("LOG_FORMAT")

	l := NewFromEnv("env-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestJSONOutputCarriesServiceAndFields(t *testing.T) {
	l, buf := jsonLogger(t, "debug")
	l.WithComponent("engine").Info("run finished", Fields(FieldRecipe, "shout", FieldItems, 3))

	m := decodeLine(t, buf)
	if m[FieldService] != "runkit-test" {
		t.Errorf("expected service field, got %v", m[FieldService])
	}
	if m[FieldComponent] != "engine" {
		t.Errorf("expected component engine, got %v", m[FieldComponent])
	}
	if m[FieldRecipe] != "shout" {
		t.Errorf("expected recipe shout, got %v", m[FieldRecipe])
	}
	if m[FieldItems] != float64(3) {
		t.Errorf("expected items 3, got %v", m[FieldItems])
	}
	if m["message"] != "run finished" {
		t.Errorf("unexpected message %v", m["message"])
	}
}

func TestWithComponentPreservesService(t *testing.T) {
	l := NewDefault("test")
	cl := l.WithComponent("handler")
	if cl.service != "test" {
		t.Errorf("service should be preserved, got %q", cl.service)
	}
}

func TestWithContext(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithRunID(ctx, "run-7")
	ctx = ContextWithTraceID(ctx, "abc123")

	l.WithContext(ctx).Info("hello")
	m := decodeLine(t, buf)
	if m[FieldRequestID] != "req-1" {
		t.Errorf("expected request_id, got %v", m[FieldRequestID])
	}
	if m[FieldRunID] != "run-7" {
		t.Errorf("expected run_id, got %v", m[FieldRunID])
	}
	if m[FieldTraceID] != "abc123" {
		t.Errorf("expected trace_id, got %v", m[FieldTraceID])
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	if RunIDFromContext(ctx) != "" || RequestIDFromContext(ctx) != "" {
		t.Error("expected empty IDs on a bare context")
	}
	ctx = ContextWithRunID(ContextWithRequestID(ctx, "r"), "x")
	if RunIDFromContext(ctx) != "x" || RequestIDFromContext(ctx) != "r" {
		t.Error("expected stored IDs")
	}
}

func TestWithError(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	l.WithError(fmt.Errorf("boom")).Error("failed")
	m := decodeLine(t, buf)
	if m[FieldError] != "boom" {
		t.Errorf("expected error field, got %v", m[FieldError])
	}
}

func TestNewNopDiscards(t *testing.T) {
	l := NewNop()
	l.Info("nothing")
	l.WithComponent("x").Error("still nothing")
}

func TestInit(t *testing.T) {
	Init(Config{Level: "info", Format: FormatJSON}, "init-svc")
	gl := GetGlobalLogger()
	if gl == nil {
		t.Fatal("expected global logger to be set after Init")
	}
	if gl.service != "init-svc" {
		t.Errorf("expected init-svc, got %q", gl.service)
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
}

func TestSetGlobalLogger(t *testing.T) {
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	l, buf := jsonLogger(t, "debug")
	SetGlobalLogger(l)
	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")
	if got := strings.Count(buf.String(), "\n"); got != 4 {
		t.Errorf("expected 4 lines, got %d", got)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatConsole {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected output 'stderr', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stderr"}, false},
		{"valid console", Config{Level: "debug", Format: "console", Output: "stdout"}, false},
		{"invalid level", Config{Level: "bad", Format: "json", Output: "stderr"}, true},
		{"invalid format", Config{Level: "info", Format: "xml", Output: "stderr"}, true},
		{"invalid output", Config{Level: "info", Format: "json", Output: "file"}, true},
		{"component override", Config{Level: "info", Format: "json", Output: "stderr", Components: map[string]string{"engine": "debug"}}, false},
		{"invalid component level", Config{Level: "info", Format: "json", Output: "stderr", Components: map[string]string{"engine": "loud"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: FormatConsole, NoColor: true}, "svc", &buf)
	l.Info("ready", Fields(FieldUnit, "upper"))
	out := buf.String()
	if !strings.Contains(out, "ready") || !strings.Contains(out, "unit=upper") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name     string
		input    []interface{}
		expected map[string]interface{}
	}{
		{"key-value pairs", []interface{}{"unit", "upper", "attempt", 2}, map[string]interface{}{"unit": "upper", "attempt": 2}},
		{"odd number of args", []interface{}{"unit", "upper", "trailing"}, map[string]interface{}{"unit": "upper"}},
		{"non-string key skipped", []interface{}{123, "value", "key", "val"}, map[string]interface{}{"key": "val"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Fields(tc.input...)
			if len(result) != len(tc.expected) {
				t.Errorf("expected %d fields, got %d", len(tc.expected), len(result))
			}
			for k, v := range tc.expected {
				if result[k] != v {
					t.Errorf("Fields[%q] = %v, expected %v", k, result[k], v)
				}
			}
		})
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	ef := ErrorFields("upper", fmt.Errorf("something broke"))
	if ef[FieldUnit] != "upper" || ef[FieldError] != "something broke" {
		t.Errorf("unexpected error fields %v", ef)
	}

	df := DurationFields("upper", 150*time.Millisecond)
	if df[FieldUnit] != "upper" || df[FieldDuration] != int64(150) {
		t.Errorf("unexpected duration fields %v", df)
	}
}

func TestRegistryDerivesComponentLoggers(t *testing.T) {
	base, buf := jsonLogger(t, "info")
	Configure(base, map[string]string{"engine": "debug", "bogus": "loud"})
	t.Cleanup(func() { Configure(nil, nil) })

	engine := Get("engine")
	if Get("engine") != engine {
		t.Error("expected the same logger for repeated lookups")
	}
	if engine.Component() != "engine" {
		t.Errorf("expected component engine, got %q", engine.Component())
	}
	engine.Debug("compiled")
	m := decodeLine(t, buf)
	if m[FieldComponent] != "engine" || m["level"] != "debug" || m[FieldService] != "runkit-test" {
		t.Errorf("unexpected engine line %v", m)
	}

	buf.Reset()
	Get("api").Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected api to keep the base level, got %q", buf.String())
	}
	Get("bogus").Info("shown")
	if m := decodeLine(t, buf); m[FieldComponent] != "bogus" {
		t.Errorf("expected an invalid override to be ignored, got %v", m)
	}

	if got := strings.Join(Components(), ","); got != "api,bogus,engine" {
		t.Errorf("unexpected components %q", got)
	}
}

func TestRegistryRegister(t *testing.T) {
	Configure(nil, nil)
	t.Cleanup(func() { Configure(nil, nil) })

	custom := NewNop()
	Register("custom", custom)
	if Get("custom") != custom {
		t.Error("expected the registered logger")
	}
	if Get("fresh").Component() != "fresh" {
		t.Error("expected an unregistered name to derive from the global logger")
	}
}

func TestWithComponentIsIdempotent(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	api := l.WithComponent("api")
	if api.WithComponent("api") != api {
		t.Error("expected re-tagging with the same name to return the logger")
	}
	api.WithFields(map[string]interface{}{"k": "v"}).Info("x")
	line := strings.TrimSpace(buf.String())
	if strings.Count(line, `"component"`) != 1 {
		t.Errorf("expected a single component field, got %s", line)
	}
	if api.WithError(fmt.Errorf("e")).Component() != "api" {
		t.Error("expected derived loggers to keep the component")
	}
}
