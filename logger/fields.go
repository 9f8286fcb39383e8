package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldTraceID   = "trace_id"
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldRecipe    = "recipe"
	FieldUnit      = "unit"
	FieldMode      = "mode"
	FieldAttempt   = "attempt"
	FieldItems     = "items"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldErrorCode = "error_code"
	FieldDuration  = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("run finished", logger.Fields("recipe", "shout", "items", 3))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for a unit run that failed.
func ErrorFields(unit string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldUnit:  unit,
		FieldError: err.Error(),
	}
}

// DurationFields creates fields for a timed unit run.
func DurationFields(unit string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldUnit:     unit,
		FieldDuration: d.Milliseconds(),
	}
}
