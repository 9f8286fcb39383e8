package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/kbukum/runkit/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("name", "shout")
	if v.HasErrors() {
		t.Error("expected no errors for valid input")
	}

	v2 := New()
	v2.Required("name", "   ")
	if !v2.HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorPattern(t *testing.T) {
	v := New()
	v.Pattern("name", "my-recipe_1", `^[a-z0-9_-]+$`)
	if v.HasErrors() {
		t.Errorf("expected no errors, got %v", v.Errors())
	}

	v2 := New()
	v2.Pattern("name", "Has Spaces", `^[a-z0-9_-]+$`)
	if !v2.HasErrors() {
		t.Error("expected pattern mismatch")
	}

	v3 := New()
	v3.Pattern("name", "", `^[a-z]+$`)
	if v3.HasErrors() {
		t.Error("empty values are left to Required")
	}
}

func TestValidatorOneOf(t *testing.T) {
	v := New()
	v.OneOf("format", "json", []string{"json", "console"})
	if v.HasErrors() {
		t.Error("expected json to be allowed")
	}

	v2 := New()
	v2.OneOf("format", "xml", []string{"json", "console"})
	if !v2.HasErrors() {
		t.Error("expected xml to be rejected")
	}
}

func TestValidatorDuration(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"", false},
		{"250ms", false},
		{"2s", false},
		{"soon", true},
		{"-1s", true},
		{"0s", true},
	}
	for _, tt := range tests {
		v := New().Duration("timeout", tt.value)
		if v.HasErrors() != tt.wantErr {
			t.Errorf("Duration(%q): expected error=%v, got %v", tt.value, tt.wantErr, v.Errors())
		}
	}
}

func TestValidatorMinAndCustom(t *testing.T) {
	v := New().Min("max_attempts", 0, 1).Custom(false, "root", "exactly one node kind is required")
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors()))
	}
	if v.Errors()[1].Field != "root" {
		t.Errorf("expected second error on root, got %s", v.Errors()[1].Field)
	}
}

func TestValidatorValidate(t *testing.T) {
	v := New()
	if v.Validate() != nil {
		t.Error("expected nil for no errors")
	}

	v.Required("name", "").MaxLength("description", strings.Repeat("x", 5), 3)
	appErr := v.Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Errorf("expected 2 field errors in details, got %v", appErr.Details["fields"])
	}
}

func TestValidatorMerge(t *testing.T) {
	inner := New().Required("root.unit", "")
	outer := New().Merge(inner).Merge(nil)
	if len(outer.Errors()) != 1 {
		t.Errorf("expected merged error, got %v", outer.Errors())
	}
}

func TestStructValidateValid(t *testing.T) {
	type Policy struct {
		MaxAttempts int           `json:"max_attempts" validate:"min=1"`
		Backoff     time.Duration `json:"backoff" validate:"gte=0"`
	}

	if err := Validate(Policy{MaxAttempts: 3}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	type Policy struct {
		MaxAttempts int `json:"max_attempts" validate:"min=1"`
	}

	err := Validate(Policy{MaxAttempts: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "max_attempts: must be at least 1") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStructValidateMapstructureNames(t *testing.T) {
	type Engine struct {
		RecipeDirs []string `mapstructure:"recipe_dirs" validate:"min=1"`
	}

	err := Validate(Engine{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "recipe_dirs: must be at least 1 items") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("MaxAttempts"); got != "max_attempts" {
		t.Errorf("expected max_attempts, got %s", got)
	}
}
