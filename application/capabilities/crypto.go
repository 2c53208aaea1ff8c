package capabilities

import (
	"context"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
)

var _ ports.CertificateVerifier = (*Client)(nil)

// VerifyCert asks the host whether req.Cert chains up to a trusted root.
func (c *Client) VerifyCert(ctx context.Context, req entities.CertificateVerificationRequest) (*entities.CertificateVerificationResponse, error) {
	resp, err := Call[entities.CertificateVerificationRequest, entities.CertificateVerificationResponse](ctx, c, CertificateTrusted, req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsCertificateTrusted is VerifyCert reduced to its verdict. chain may be nil to
// use the host trust store; notAfter is an optional RFC 3339 timestamp.
func (c *Client) IsCertificateTrusted(ctx context.Context, cert entities.Certificate, chain []entities.Certificate, notAfter string) (bool, error) {
	req := entities.CertificateVerificationRequest{Cert: cert, CertChain: chain}
	if notAfter != "" {
		req.NotAfter = &notAfter
	}
	resp, err := c.VerifyCert(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.Trusted, nil
}
