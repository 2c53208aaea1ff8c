package entities

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	imagespec "github.com/opencontainers/image-spec/specs-go/v1"
)

// LookupHostResponse is the reply of net/v1/dns_lookup_host.
type LookupHostResponse struct {
	IPs []string `json:"ips"`
}

// ManifestDigestResponse is the reply of oci/v1/manifest_digest.
type ManifestDigestResponse struct {
	Digest string `json:"digest"`
}

// OCIManifestResponse is the reply of oci/v1/oci_manifest. Exactly one of
// Image and Index is set, depending on what the reference points to.
type OCIManifestResponse struct {
	Image *imagespec.Manifest
	Index *imagespec.Index
}

// IsIndex reports whether the reference resolved to a multi-platform index.
func (r *OCIManifestResponse) IsIndex() bool {
	return r.Index != nil
}

// UnmarshalJSON picks the index form when the document lists manifests,
// the image form otherwise.
func (r *OCIManifestResponse) UnmarshalJSON(data []byte) error {
	var probe struct {
		MediaType string          `json:"mediaType"`
		Manifests json.RawMessage `json:"manifests"`
		Config    json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	r.Image, r.Index = nil, nil
	if probe.MediaType == imagespec.MediaTypeImageIndex || (len(probe.Manifests) > 0 && len(probe.Config) == 0) {
		var index imagespec.Index
		if err := json.Unmarshal(data, &index); err != nil {
			return fmt.Errorf("decode image index: %w", err)
		}
		r.Index = &index
		return nil
	}
	var manifest imagespec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("decode image manifest: %w", err)
	}
	r.Image = &manifest
	return nil
}

// MarshalJSON encodes whichever form is set.
func (r OCIManifestResponse) MarshalJSON() ([]byte, error) {
	switch {
	case r.Index != nil:
		return json.Marshal(r.Index)
	case r.Image != nil:
		return json.Marshal(r.Image)
	default:
		return nil, errors.New("oci manifest response holds neither an image nor an index")
	}
}

// OCIManifestAndConfigResponse is the reply of oci/v1/oci_manifest_config.
type OCIManifestAndConfigResponse struct {
	Manifest imagespec.Manifest `json:"manifest"`
	Digest   string             `json:"digest"`
	Config   imagespec.Image    `json:"config"`
}

// SigstoreVerifyRequest is the payload of oci/verify.
// On the wire it is wrapped as {"SigstoreVerify": {...}}.
type SigstoreVerifyRequest struct {
	Image  string               `json:"image"`
	Config VerificationConfigV1 `json:"config"`
}

// MarshalJSON wraps the request in its variant tag.
func (r SigstoreVerifyRequest) MarshalJSON() ([]byte, error) {
	type plain SigstoreVerifyRequest
	return json.Marshal(map[string]plain{"SigstoreVerify": plain(r)})
}

// UnmarshalJSON unwraps the variant tag.
func (r *SigstoreVerifyRequest) UnmarshalJSON(data []byte) error {
	type plain SigstoreVerifyRequest
	var wrapped map[string]plain
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	inner, ok := wrapped["SigstoreVerify"]
	if !ok || len(wrapped) != 1 {
		return errors.New("expected a single SigstoreVerify request")
	}
	*r = SigstoreVerifyRequest(inner)
	return nil
}

// CertificateEncoding is the encoding of Certificate.Data.
type CertificateEncoding string

// Certificate encodings.
const (
	CertificateEncodingDer CertificateEncoding = "Der"
	CertificateEncodingPem CertificateEncoding = "Pem"
)

// ByteArray is a byte slice encoded as a JSON array of numbers, the form the host
// uses for certificate data. Decoding also accepts a base64 string.
type ByteArray []byte

// MarshalJSON encodes the bytes as a number array.
func (b ByteArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(b)*4 + 2)
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(v)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a number array or a base64 string.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var raw []byte
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*b = raw
		return nil
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make(ByteArray, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte value %d at index %d out of range", n, i)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// Certificate is a single X.509 certificate.
type Certificate struct {
	Encoding CertificateEncoding `json:"encoding"`
	Data     ByteArray           `json:"data"`
}

// CertificateVerificationRequest is the payload of crypto/v1/is_certificate_trusted.
type CertificateVerificationRequest struct {
	Cert Certificate `json:"cert"`

	// CertChain is ordered from the intermediates to the root. When empty the
	// host uses its own trust store.
	CertChain []Certificate `json:"cert_chain,omitempty"`

	// NotAfter is an RFC 3339 timestamp the certificate must still be valid at.
	NotAfter *string `json:"not_after,omitempty"`
}

// CertificateVerificationResponse is the reply of crypto/v1/is_certificate_trusted.
type CertificateVerificationResponse struct {
	Trusted bool   `json:"trusted"`
	Reason  string `json:"reason,omitempty"`
}

// ListResourcesByNamespaceRequest is the payload of kubernetes/list_resources_by_namespace.
type ListResourcesByNamespaceRequest struct {
	APIVersion    string `json:"api_version"`
	Kind          string `json:"kind"`
	Namespace     string `json:"namespace"`
	LabelSelector string `json:"label_selector,omitempty"`
	FieldSelector string `json:"field_selector,omitempty"`
}

// ListAllResourcesRequest is the payload of kubernetes/list_resources_all.
type ListAllResourcesRequest struct {
	APIVersion    string `json:"api_version"`
	Kind          string `json:"kind"`
	LabelSelector string `json:"label_selector,omitempty"`
	FieldSelector string `json:"field_selector,omitempty"`
}

// GetResourceRequest is the payload of kubernetes/get_resource.
type GetResourceRequest struct {
	APIVersion string `json:"api_version"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`

	// Namespace is empty for cluster scoped resources.
	Namespace string `json:"namespace,omitempty"`

	// DisableCache forces the host to query the API server.
	DisableCache bool `json:"disable_cache"`
}

// SubjectAccessReviewRequest is the payload of kubernetes/can_i.
type SubjectAccessReviewRequest struct {
	User         string `json:"user"`
	Group        string `json:"group"`
	Namespace    string `json:"namespace"`
	Resource     string `json:"resource"`
	Verb         string `json:"verb"`
	DisableCache bool   `json:"disable_cache"`
}
