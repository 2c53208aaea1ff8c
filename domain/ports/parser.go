package ports

import "github.com/kubewarden/policy-sdk-go/domain/entities"

// MetadataParser parses a metadata.yml document.
type MetadataParser interface {
	// Parse decodes and validates the document.
	Parse(data []byte) (*entities.Metadata, error)
}

// VerificationConfigParser parses a Sigstore verification config document.
type VerificationConfigParser interface {
	Parse(data []byte) (*entities.VerificationConfigV1, error)
}
