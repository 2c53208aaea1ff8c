package capabilities

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

var (
	_ ports.OCIRegistry   = (*Client)(nil)
	_ ports.ImageVerifier = (*Client)(nil)
)

// ErrEmptyVerifyReply is wrapped when the host answers a verification with no bytes.
var ErrEmptyVerifyReply = stdErrors.New("empty verification reply")

// ManifestDigest returns the digest of the manifest image points to.
func (c *Client) ManifestDigest(ctx context.Context, image string) (digest.Digest, error) {
	resp, err := Call[string, entities.ManifestDigestResponse](ctx, c, OCIManifestDigest, image)
	if err != nil {
		return "", err
	}
	d, err := digest.Parse(resp.Digest)
	if err != nil {
		return "", &errors.DecodeError{Type: "manifest digest", Capability: OCIManifestDigest.String(), Err: err}
	}
	return d, nil
}

// Manifest returns the image manifest or index image points to.
func (c *Client) Manifest(ctx context.Context, image string) (*entities.OCIManifestResponse, error) {
	resp, err := Call[string, entities.OCIManifestResponse](ctx, c, OCIManifest, image)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ManifestAndConfig returns the image manifest, its digest and the image configuration.
func (c *Client) ManifestAndConfig(ctx context.Context, image string) (*entities.OCIManifestAndConfigResponse, error) {
	resp, err := Call[string, entities.OCIManifestAndConfigResponse](ctx, c, OCIManifestAndConfig, image)
	if err != nil {
		return nil, err
	}
	if resp.Digest != "" {
		if _, err := digest.Parse(resp.Digest); err != nil {
			return nil, &errors.DecodeError{Type: "manifest digest", Capability: OCIManifestAndConfig.String(), Err: err}
		}
	}
	return &resp, nil
}

// VerifyImage asks the host to check the Sigstore signatures of image against config.
func (c *Client) VerifyImage(ctx context.Context, image string, config entities.VerificationConfigV1) (bool, error) {
	name := OCIVerify.String()
	if err := config.Validate(); err != nil {
		return false, &errors.DecodeError{Type: "verification config", Capability: name, Encoding: true, Err: err}
	}

	payload, err := wireformat.Encode(entities.SigstoreVerifyRequest{Image: image, Config: config})
	if err != nil {
		return false, withCapability(err, name)
	}

	reply, err := c.CallRaw(ctx, OCIVerify, payload)
	if err != nil {
		return false, err
	}
	return parseVerifyReply(name, reply)
}

// parseVerifyReply accepts a single status byte (non-zero means trusted), a JSON
// boolean, or a JSON object with an "is_trusted" or "trusted" field.
func parseVerifyReply(capability string, reply []byte) (bool, error) {
	trimmed := bytes.TrimSpace(reply)
	switch {
	case len(reply) == 0:
		return false, &errors.DecodeError{Type: "verification reply", Capability: capability, Err: ErrEmptyVerifyReply}
	case len(reply) == 1 && (reply[0] == 0 || reply[0] == 1):
		return reply[0] != 0, nil
	case bytes.Equal(trimmed, []byte("true")):
		return true, nil
	case bytes.Equal(trimmed, []byte("false")):
		return false, nil
	}

	var status struct {
		IsTrusted *bool `json:"is_trusted"`
		Trusted   *bool `json:"trusted"`
	}
	if err := wireformat.DecodeInto(reply, &status); err != nil {
		return false, withCapability(err, capability)
	}
	switch {
	case status.IsTrusted != nil:
		return *status.IsTrusted, nil
	case status.Trusted != nil:
		return *status.Trusted, nil
	default:
		return false, &errors.DecodeError{Type: "verification reply", Capability: capability,
			Err: fmt.Errorf("unrecognized reply %q", trimmed)}
	}
}
