// Package settings decodes and validates policy settings.
//
// Settings are checked in three steps, stopping at the first failure: the
// document is decoded into the settings type, the optional JSON schema is
// applied to the raw document, then the struct is validated with
// go-playground/validator tags and, when it implements entities.Validatable,
// its own Validate method.
package settings

import (
	"context"
	stdErrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// validate is a package-level singleton for better performance.
// Creating a new validator on each call is expensive; reusing is recommended.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Option configures a settings validator.
type Option func(*config)

type config struct {
	schema ports.DocumentValidator
}

// WithSchema validates the raw document against a schema before decoding.
func WithSchema(schema ports.DocumentValidator) Option {
	return func(c *config) {
		c.schema = schema
	}
}

// Decode decodes raw settings into S. A null or empty document yields the zero S.
func Decode[S any](raw []byte) (S, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		var zero S
		return zero, nil
	}
	return wireformat.DecodeSettings[S](raw)
}

// Validate runs the validator struct tags of s, then s.Validate() when s
// implements entities.Validatable. Errors from Validate are returned as is so
// their message reaches the settings response unchanged.
func Validate(s any) error {
	v := reflect.ValueOf(s)
	for v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return nil
	}
	target := v.Interface()

	if isStruct(v.Type()) {
		if err := validate.Struct(target); err != nil {
			var fieldErrs validator.ValidationErrors
			if stdErrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				return fieldError(fieldErrs)
			}
			return &errors.ConfigError{Err: err}
		}
	}

	if validatable, ok := target.(entities.Validatable); ok {
		return validatable.Validate()
	}
	return nil
}

// Validator returns a settings validation function for S, suitable for a
// policy definition.
func Validator[S any](opts ...Option) func(context.Context, []byte) error {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(_ context.Context, raw []byte) error {
		s, err := Decode[S](raw)
		if err != nil {
			return err
		}
		if cfg.schema != nil {
			if err := cfg.schema.Validate(documentOrEmpty(raw)); err != nil {
				return err
			}
		}
		return Validate(&s)
	}
}

// fieldError reports every failing field in one message.
func fieldError(fieldErrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return &errors.ConfigError{Field: fieldPath(fieldErrs[0]), Err: stdErrors.New(strings.Join(msgs, "; "))}
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s fails %s", field, fe.Tag())
	}
}

// fieldPath drops the struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func isStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func documentOrEmpty(raw []byte) []byte {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []byte("{}")
	}
	return raw
}
