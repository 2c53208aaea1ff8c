package ports

import (
	"context"
)

// HostResolver resolves host names through the host.
type HostResolver interface {
	// LookupHost returns the A and AAAA records of host as strings.
	LookupHost(ctx context.Context, host string) ([]string, error)
}
