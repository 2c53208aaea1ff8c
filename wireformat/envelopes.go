package wireformat

import (
	"bytes"
	stdErrors "errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

// ErrNotAnObject is returned when a mutated object does not encode to a JSON object.
var ErrNotAnObject = stdErrors.New("mutated object must encode to a JSON object")

// internalErrorResponse is returned when even a rejection cannot be encoded.
var internalErrorResponse = []byte(`{"accepted":false,"message":"failed to encode validation response","code":"internal-error"}`)

// invalidSettingsResponse is returned when a settings response cannot be encoded.
var invalidSettingsResponse = []byte(`{"valid":false,"message":"failed to encode settings validation response"}`)

// DecodeValidationRequest decodes the envelope passed to the validate entry point.
func DecodeValidationRequest(data []byte) (*entities.ValidationRequest, error) {
	req, err := Decode[entities.ValidationRequest](data)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// EncodeValidationRequest encodes a request envelope, as the host would.
func EncodeValidationRequest(req *entities.ValidationRequest) ([]byte, error) {
	return Encode(req)
}

// ResponseFromOutcome converts an outcome to its envelope. Pointer outcomes are
// accepted; a nil one, like a nil outcome, is an error. A mutated object that
// cannot be serialized is an error.
func ResponseFromOutcome(outcome entities.ValidationOutcome) (entities.ValidationResponse, error) {
	switch o := entities.Normalize(outcome).(type) {
	case entities.Accepted:
		return entities.ValidationResponse{
			Accepted:         true,
			Warnings:         o.Warnings,
			AuditAnnotations: o.AuditAnnotations,
		}, nil
	case entities.Mutated:
		doc, err := encodeObject(o.Object)
		if err != nil {
			return entities.ValidationResponse{}, err
		}
		return entities.ValidationResponse{
			Accepted:         true,
			MutatedObject:    doc,
			Warnings:         o.Warnings,
			AuditAnnotations: o.AuditAnnotations,
		}, nil
	case entities.Rejected:
		r := entities.NewRejected(o.Code, o.Message)
		return entities.ValidationResponse{Accepted: false, Code: &r.Code, Message: &r.Message}, nil
	case nil:
		return entities.ValidationResponse{}, &errors.InternalError{Err: stdErrors.New("policy returned no outcome")}
	default:
		return entities.ValidationResponse{}, &errors.InternalError{Err: fmt.Errorf("unknown outcome type %T", outcome)}
	}
}

// EncodeValidationResponse encodes an outcome. It never fails: an outcome that
// cannot be encoded degrades to a rejection with code internal-error.
func EncodeValidationResponse(outcome entities.ValidationOutcome) []byte {
	resp, err := ResponseFromOutcome(outcome)
	if err != nil {
		message := err.Error()
		code := errors.CodeInternalError
		resp = entities.ValidationResponse{Accepted: false, Code: &code, Message: &message}
	}

	data, err := Encode(resp)
	if err != nil {
		return internalErrorResponse
	}
	return data
}

// DecodeValidationResponse decodes a response envelope, as the host would.
func DecodeValidationResponse(data []byte) (*entities.ValidationResponse, error) {
	resp, err := Decode[entities.ValidationResponse](data)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// OutcomeFromResponse converts an envelope back into an outcome. A mutated object
// is returned as compact json.RawMessage; a rejection ignores any mutated object.
func OutcomeFromResponse(resp *entities.ValidationResponse) entities.ValidationOutcome {
	if !resp.Accepted {
		var code, message string
		if resp.Code != nil {
			code = *resp.Code
		}
		if resp.Message != nil {
			message = *resp.Message
		}
		return entities.NewRejected(code, message)
	}
	if len(resp.MutatedObject) > 0 && !bytes.Equal(bytes.TrimSpace(resp.MutatedObject), []byte("null")) {
		doc, err := Compact(resp.MutatedObject)
		if err != nil {
			doc = resp.MutatedObject
		}
		return entities.Mutated{
			Object:           json.RawMessage(doc),
			Warnings:         resp.Warnings,
			AuditAnnotations: resp.AuditAnnotations,
		}
	}
	return entities.Accepted{Warnings: resp.Warnings, AuditAnnotations: resp.AuditAnnotations}
}

// DecodeOutcome decodes a response envelope straight into an outcome.
func DecodeOutcome(data []byte) (entities.ValidationOutcome, error) {
	resp, err := DecodeValidationResponse(data)
	if err != nil {
		return nil, err
	}
	return OutcomeFromResponse(resp), nil
}

// DecodeSettings decodes a settings document into a new S. A null document
// yields the zero S; empty or malformed input is a *errors.DecodeError.
func DecodeSettings[S any](data []byte) (S, error) {
	var s S
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return s, nil
	}
	err := decodeInto(data, &s, typeName[S]())
	return s, err
}

// EncodeSettingsResponse encodes a settings validation result. It never fails.
func EncodeSettingsResponse(resp entities.SettingsValidationResponse) []byte {
	if resp.Valid {
		resp.Message = nil
	} else if resp.Message == nil || *resp.Message == "" {
		resp = entities.SettingsRejected("settings are not valid")
	}
	data, err := Encode(resp)
	if err != nil {
		return invalidSettingsResponse
	}
	return data
}

// DecodeSettingsResponse decodes a settings validation result, as the host would.
func DecodeSettingsResponse(data []byte) (*entities.SettingsValidationResponse, error) {
	resp, err := Decode[entities.SettingsValidationResponse](data)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// EncodeProtocolVersion encodes a protocol version as a JSON string ("v1").
func EncodeProtocolVersion(v entities.ProtocolVersion) ([]byte, error) {
	return Encode(v)
}

// DecodeProtocolVersion decodes the JSON string form of a protocol version.
func DecodeProtocolVersion(data []byte) (entities.ProtocolVersion, error) {
	return Decode[entities.ProtocolVersion](data)
}

// EncodeMetadata encodes policy metadata, e.g. for the module annotation.
func EncodeMetadata(m *entities.Metadata) ([]byte, error) {
	return Encode(m)
}

// DecodeMetadata decodes policy metadata from its JSON form.
func DecodeMetadata(data []byte) (*entities.Metadata, error) {
	m, err := Decode[entities.Metadata](data)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func encodeObject(obj any) (json.RawMessage, error) {
	data, err := Encode(obj)
	if err != nil {
		return nil, err
	}
	doc, err := Compact(data)
	if err != nil {
		return nil, &errors.DecodeError{Type: "mutated object", Encoding: true, Err: err}
	}
	if len(doc) == 0 || doc[0] != '{' {
		return nil, &errors.DecodeError{Type: "mutated object", Encoding: true, Err: ErrNotAnObject}
	}
	return doc, nil
}
