package hostfuncs

import (
	"context"
	stdErrors "errors"
	"net"
	"strings"
	"time"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// DNSOption is a functional option for configuring DNS lookup behavior.
type DNSOption func(*dnsConfig)

type dnsConfig struct {
	nameserver string
	timeout    time.Duration
}

func defaultDNSConfig() dnsConfig {
	return dnsConfig{
		timeout: 5 * time.Second,
	}
}

// WithDNSLookupTimeout sets the DNS query timeout.
func WithDNSLookupTimeout(d time.Duration) DNSOption {
	return func(c *dnsConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDNSNameserver sets a custom nameserver ("8.8.8.8" or "8.8.8.8:53").
func WithDNSNameserver(ns string) DNSOption {
	return func(c *dnsConfig) {
		c.nameserver = ns
	}
}

// LookupHost serves net/v1/dns_lookup_host: it resolves host to its IPv4 and
// IPv6 addresses.
func LookupHost(ctx context.Context, host string, opts ...DNSOption) (entities.LookupHostResponse, error) {
	cfg := defaultDNSConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if host == "" {
		return entities.LookupHostResponse{}, NewValidationError("empty host name")
	}

	resolver := &net.Resolver{PreferGo: true}
	if cfg.nameserver != "" {
		ns := cfg.nameserver
		if _, _, err := net.SplitHostPort(ns); err != nil {
			ns = net.JoinHostPort(strings.Trim(ns, "[]"), "53")
		}
		resolver.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: cfg.timeout}
			return d.DialContext(ctx, network, ns)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	ips, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if (stdErrors.As(err, &dnsErr) && dnsErr.IsTimeout) || stdErrors.Is(err, context.DeadlineExceeded) {
			return entities.LookupHostResponse{}, NewTimeoutError(err.Error())
		}
		return entities.LookupHostResponse{}, ErrorResponse{Type: "LOOKUP_FAILED", Message: err.Error(), Code: 502}
	}

	records := make([]string, 0, len(ips))
	for _, ip := range ips {
		records = append(records, ip.IP.String())
	}
	return entities.LookupHostResponse{IPs: records}, nil
}
