package entities

import "fmt"

// Error types carried in ErrorDetail.Type.
const (
	ErrorTypeDecode     = "decode"
	ErrorTypeCapability = "capability"
	ErrorTypeTimeout    = "timeout"
	ErrorTypeHost       = "host"
	ErrorTypePanic      = "panic"
	ErrorTypeValidation = "validation"
	ErrorTypeInternal   = "internal"
)

// ErrorDetail provides structured error information.
// The runtime logs it when an invocation fails, and hosts may use the same
// shape as the error payload of a failed capability call.
type ErrorDetail struct {
	// Wrapped contains the cause, if any.
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	// Details contains additional error context.
	Details map[string]any `json:"details,omitempty"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Type categorizes the error, see the ErrorType constants.
	Type string `json:"type"`

	// Code is the machine-readable code reported back to the host
	// (e.g. "capability-denied").
	Code string `json:"code"`

	// Capability names the host capability involved, if any.
	Capability string `json:"capability,omitempty"`

	// Stack contains the stack trace for panic errors.
	Stack []byte `json:"stack,omitempty"`

	// IsTimeout indicates if this was a timeout error.
	IsTimeout bool `json:"is_timeout,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != ErrorTypeInternal {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// NewErrorDetail creates a new ErrorDetail with the given type and message.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{
		Type:    errorType,
		Message: message,
	}
}

// WithDetails attaches details and returns the receiver.
func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	e.Details = details
	return e
}

// WithCode sets the response code and returns the receiver.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}

// WithCapability records the capability involved and returns the receiver.
func (e *ErrorDetail) WithCapability(capability string) *ErrorDetail {
	e.Capability = capability
	return e
}
