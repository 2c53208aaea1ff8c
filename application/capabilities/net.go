package capabilities

import (
	"context"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
)

var _ ports.HostResolver = (*Client)(nil)

// LookupHost resolves host through the host's DNS resolver.
func (c *Client) LookupHost(ctx context.Context, host string) ([]string, error) {
	resp, err := Call[string, entities.LookupHostResponse](ctx, c, DNSLookupHost, host)
	if err != nil {
		return nil, err
	}
	return resp.IPs, nil
}
