package entities

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	admissionv1 "k8s.io/api/admission/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ErrNoObject is returned when a request carries no object to decode.
var ErrNoObject = errors.New("admission request carries no object")

// admissionRequestFields lists the JSON keys owned by admissionv1.AdmissionRequest.
// Everything else is preserved in KubernetesAdmissionRequest.Extra.
var admissionRequestFields = []string{
	"uid", "kind", "resource", "subResource",
	"requestKind", "requestResource", "requestSubResource",
	"name", "namespace", "operation", "userInfo",
	"object", "oldObject", "dryRun", "options",
}

// ValidationRequest is the envelope the host sends to the validate entry point.
type ValidationRequest struct {
	// Request is the admission request under review.
	Request KubernetesAdmissionRequest `json:"request"`

	// Settings is the deployer supplied settings document.
	Settings json.RawMessage `json:"settings"`
}

// DecodeSettings decodes the settings document into a fresh value.
// Missing or null settings leave into untouched.
func (r *ValidationRequest) DecodeSettings(into any) error {
	if isNullDocument(r.Settings) {
		return nil
	}
	if err := json.Unmarshal(r.Settings, into); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}

// KubernetesAdmissionRequest is the admission request as seen by a policy.
// Fields not known to admissionv1.AdmissionRequest are kept in Extra and
// written back when the request is encoded again.
type KubernetesAdmissionRequest struct {
	admissionv1.AdmissionRequest

	// Extra holds unknown top-level fields, keyed by JSON name.
	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known admission fields and captures the rest.
func (r *KubernetesAdmissionRequest) UnmarshalJSON(data []byte) error {
	var known admissionv1.AdmissionRequest
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range admissionRequestFields {
		delete(all, key)
	}

	r.AdmissionRequest = known
	r.Extra = nil
	if len(all) > 0 {
		r.Extra = all
	}
	return nil
}

// MarshalJSON encodes the admission fields followed by the preserved unknown fields.
func (r KubernetesAdmissionRequest) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(r.AdmissionRequest)
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+len(admissionRequestFields))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, owned := merged[key]; !owned {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// DecodeObject decodes the object under admission into a fresh value.
func (r *KubernetesAdmissionRequest) DecodeObject(into any) error {
	return decodeDocument(r.Object.Raw, into)
}

// DecodeOldObject decodes the previous version of the object (UPDATE and DELETE).
func (r *KubernetesAdmissionRequest) DecodeOldObject(into any) error {
	return decodeDocument(r.OldObject.Raw, into)
}

// UnstructuredObject returns a fresh unstructured copy of the object under admission.
func (r *KubernetesAdmissionRequest) UnstructuredObject() (*unstructured.Unstructured, error) {
	if isNullDocument(r.Object.Raw) {
		return nil, ErrNoObject
	}
	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON(r.Object.Raw); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return u, nil
}

// ObjectMap returns the object under admission as a generic map, or nil when absent.
func (r *KubernetesAdmissionRequest) ObjectMap() (map[string]any, error) {
	return documentMap(r.Object.Raw)
}

// OldObjectMap returns the previous object as a generic map, or nil when absent.
func (r *KubernetesAdmissionRequest) OldObjectMap() (map[string]any, error) {
	return documentMap(r.OldObject.Raw)
}

func decodeDocument(raw []byte, into any) error {
	if isNullDocument(raw) {
		return ErrNoObject
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	return nil
}

func documentMap(raw []byte) (map[string]any, error) {
	if isNullDocument(raw) {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return m, nil
}

func isNullDocument(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
