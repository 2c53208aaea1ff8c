package entities

import "github.com/goccy/go-json"

// ValidationResponse is the envelope returned to the host by the validate entry point.
type ValidationResponse struct {
	// Accepted reports the admission decision.
	Accepted bool `json:"accepted"`

	// Message explains a rejection.
	Message *string `json:"message,omitempty"`

	// Code is the machine-readable rejection code (e.g. "decode-error").
	Code *string `json:"code,omitempty"`

	// AuditAnnotations are attached to the audit event of the request.
	AuditAnnotations map[string]string `json:"audit_annotations,omitempty"`

	// MutatedObject is the complete replacement object of a mutating acceptance.
	MutatedObject json.RawMessage `json:"mutated_object,omitempty"`

	// Warnings are returned to the API client.
	Warnings []string `json:"warnings,omitempty"`
}

// SettingsValidationResponse is the envelope returned by the validate_settings entry point.
type SettingsValidationResponse struct {
	// Valid reports whether the settings are usable.
	Valid bool `json:"valid"`

	// Message explains why the settings are invalid.
	Message *string `json:"message,omitempty"`
}

// SettingsAccepted returns a valid settings response.
func SettingsAccepted() SettingsValidationResponse {
	return SettingsValidationResponse{Valid: true}
}

// SettingsRejected returns an invalid settings response with the given reason.
func SettingsRejected(message string) SettingsValidationResponse {
	return SettingsValidationResponse{Valid: false, Message: &message}
}

// Validatable is implemented by settings types that check their own invariants.
type Validatable interface {
	Validate() error
}
