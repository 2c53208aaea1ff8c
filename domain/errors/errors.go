// Package errors provides the failure taxonomy of the SDK.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// Response codes reported in rejected validation responses.
const (
	CodeDecodeError       = "decode-error"
	CodeCapabilityDenied  = "capability-denied"
	CodeCapabilityTimeout = "capability-timeout"
	CodeHostError         = "host-error"
	CodeInternalError     = "internal-error"
	CodeInvalidSettings   = "invalid-settings"
)

// Sentinels a HostCaller can return (or wrap) to signal a failure class
// without building a typed error.
var (
	ErrNotGranted = stdErrors.New("capability not granted")
	ErrTimeout    = stdErrors.New("capability call timed out")
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is implemented by errors that can describe themselves as an ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// Unknown errors are categorized as internal.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    entities.ErrorTypeInternal,
		Code:    CodeInternalError,
	}
}

// Code returns the response code a rejection caused by err should carry.
func Code(err error) string {
	if err == nil {
		return ""
	}
	if d := ToErrorDetail(err); d.Code != "" {
		return d.Code
	}
	return CodeInternalError
}

// DecodeError reports malformed or schema-incompatible bytes. Values that cannot
// be serialized are reported with the same type and Encoding set.
type DecodeError struct {
	Err error
	// Type names what was being decoded or encoded (e.g. "ValidationRequest").
	Type string
	// Capability is set when the failure happened around a capability call.
	Capability string
	// Encoding is true when serialization, not parsing, failed.
	Encoding bool
}

func (e *DecodeError) Error() string {
	verb := "decode"
	if e.Encoding {
		verb = "encode"
	}
	if e.Capability != "" {
		return fmt.Sprintf("%s %s for %s: %v", verb, e.Type, e.Capability, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", verb, e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DecodeError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeDecode, e.Error()).
		WithCode(CodeDecodeError).
		WithCapability(e.Capability)
}

// NotGrantedError reports a capability the host refuses to this policy instance.
// It is an expected outcome, not a programming error.
type NotGrantedError struct {
	Capability string
	// Reason is the host supplied explanation, if any.
	Reason string
}

func (e *NotGrantedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("capability %s not granted: %s", e.Capability, e.Reason)
	}
	return fmt.Sprintf("capability %s not granted", e.Capability)
}

// Is makes errors.Is(err, ErrNotGranted) hold.
func (e *NotGrantedError) Is(target error) bool {
	return target == ErrNotGranted
}

// ToErrorDetail implements DetailedError.
func (e *NotGrantedError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeCapability, e.Error()).
		WithCode(CodeCapabilityDenied).
		WithCapability(e.Capability)
}

// TimeoutError reports a capability call the host gave up on.
type TimeoutError struct {
	Capability string
	Reason     string
}

func (e *TimeoutError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("capability %s timed out: %s", e.Capability, e.Reason)
	}
	return fmt.Sprintf("capability %s timed out", e.Capability)
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// Is makes errors.Is(err, ErrTimeout) hold.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ToErrorDetail implements DetailedError.
func (e *TimeoutError) ToErrorDetail() *entities.ErrorDetail {
	d := entities.NewErrorDetail(entities.ErrorTypeTimeout, e.Error()).
		WithCode(CodeCapabilityTimeout).
		WithCapability(e.Capability)
	d.IsTimeout = true
	return d
}

// HostError reports a host side transport or execution failure.
type HostError struct {
	Err        error
	Capability string
	// Detail is the host supplied error payload, if any.
	Detail string
}

func (e *HostError) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("host call %s failed: %s: %v", e.Capability, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("host call %s failed: %s", e.Capability, e.Detail)
	default:
		return fmt.Sprintf("host call %s failed: %v", e.Capability, e.Err)
	}
}

func (e *HostError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *HostError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeHost, e.Error()).
		WithCode(CodeHostError).
		WithCapability(e.Capability)
}

// InternalError reports an unexpected failure of author logic or of the SDK itself.
type InternalError struct {
	Err error
	// Stack is captured when the failure was a recovered panic.
	Stack []byte
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *InternalError) ToErrorDetail() *entities.ErrorDetail {
	d := entities.NewErrorDetail(entities.ErrorTypeInternal, e.Error()).WithCode(CodeInternalError)
	if e.Stack != nil {
		d.Type = entities.ErrorTypePanic
		d.Stack = e.Stack
	}
	return d
}

// ConfigError represents a settings or metadata validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	d := entities.NewErrorDetail(entities.ErrorTypeValidation, e.Error()).WithCode(CodeInvalidSettings)
	if e.Field != "" {
		d.Details = map[string]any{"field": e.Field}
	}
	return d
}

// SchemaError represents a schema generation or validation error.
type SchemaError struct {
	Err  error
	Type string
}

func (e *SchemaError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("schema error for type %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("schema error: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *SchemaError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeValidation, e.Error()).WithCode(CodeInvalidSettings)
}

// MemoryError represents a guest memory allocation failure.
type MemoryError struct {
	Requested int // Requested allocation size
	Current   int // Current total allocated
	Limit     int // Maximum allowed
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory allocation failed: requested %d bytes, current %d bytes, limit %d bytes",
		e.Requested, e.Current, e.Limit)
}

// ToErrorDetail implements DetailedError.
func (e *MemoryError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail(entities.ErrorTypeInternal, e.Error()).WithCode(CodeInternalError)
}
