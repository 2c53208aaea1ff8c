package hostfuncs

import (
	"github.com/goccy/go-json"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

// Error identifiers carried in ErrorResponse.Type.
const (
	ErrorTypeValidation = "VALIDATION_ERROR"
	ErrorTypeNotFound   = "NOT_FOUND"
	ErrorTypeNotGranted = "NOT_GRANTED"
	ErrorTypeTimeout    = "TIMEOUT"
	ErrorTypeInternal   = "INTERNAL_ERROR"
)

// ErrorResponse is the structured error a host returns to a guest. The guest
// maps NOT_GRANTED/403 to capability-denied and TIMEOUT/504 to
// capability-timeout; everything else is a host error.
type ErrorResponse struct {
	// Type is a machine-readable error type identifier (e.g., "NOT_GRANTED").
	Type string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a numeric error code (e.g., 403, 500).
	Code int `json:"code"`
}

// Error implements error.
func (e ErrorResponse) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}

// Is makes errors.Is match the SDK sentinels.
func (e ErrorResponse) Is(target error) bool {
	switch target {
	case errors.ErrNotGranted:
		return e.Type == ErrorTypeNotGranted || e.Code == 403
	case errors.ErrTimeout:
		return e.Type == ErrorTypeTimeout || e.Code == 504
	}
	return false
}

// ToJSON serializes the ErrorResponse to JSON bytes.
// Returns nil if serialization fails (which should never happen for this simple type).
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{Type: ErrorTypeValidation, Message: message, Code: 400}
}

// NewNotFoundError creates an error response for calls nobody handles.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{Type: ErrorTypeNotFound, Message: "unknown host capability: " + name, Code: 404}
}

// NewNotGrantedError creates an error response for a capability the policy may not use.
func NewNotGrantedError(message string) ErrorResponse {
	return ErrorResponse{Type: ErrorTypeNotGranted, Message: message, Code: 403}
}

// NewTimeoutError creates an error response for a call the host gave up on.
func NewTimeoutError(message string) ErrorResponse {
	return ErrorResponse{Type: ErrorTypeTimeout, Message: message, Code: 504}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{Type: ErrorTypeInternal, Message: message, Code: 500}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	var msg string
	if err, ok := panicValue.(error); ok {
		msg = err.Error()
	} else if s, ok := panicValue.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	return NewInternalError("panic: " + msg)
}
