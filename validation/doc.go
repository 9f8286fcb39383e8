// Package validation validates configuration, request bodies and recipe
// definitions.
//
// Struct tag validation uses the validator library:
//
//	type RetryConfig struct {
//	    MaxAttempts int `validate:"min=1"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic validation collects field errors:
//
//	v := validation.New()
//	v.Required("name", name).Duration("timeout", timeout)
//	if err := v.Validate(); err != nil { ... }
package validation
