package ports

import (
	"context"

	"github.com/opencontainers/go-digest"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// OCIRegistry queries OCI registries through the host.
type OCIRegistry interface {
	// ManifestDigest returns the digest of the manifest image points to.
	ManifestDigest(ctx context.Context, image string) (digest.Digest, error)

	// Manifest returns the image manifest or image index image points to.
	Manifest(ctx context.Context, image string) (*entities.OCIManifestResponse, error)

	// ManifestAndConfig returns the image manifest, its digest and the image configuration.
	ManifestAndConfig(ctx context.Context, image string) (*entities.OCIManifestAndConfigResponse, error)
}

// ImageVerifier checks Sigstore signatures through the host.
type ImageVerifier interface {
	// VerifyImage reports whether image satisfies config.
	VerifyImage(ctx context.Context, image string, config entities.VerificationConfigV1) (bool, error)
}

// CertificateVerifier checks certificate trust through the host.
type CertificateVerifier interface {
	// VerifyCert reports whether cert chains up to a trusted root and is valid at notAfter.
	VerifyCert(ctx context.Context, req entities.CertificateVerificationRequest) (*entities.CertificateVerificationResponse, error)
}
