package policytest

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kubewarden/policy-sdk-go/hostfuncs"
)

// FakeHost answers capability calls in tests. It embeds the registry, so it
// can be passed wherever a ports.HostCaller is expected, or handed to
// host.WithHostFunctions to back a compiled policy.
type FakeHost struct {
	*hostfuncs.HandlerRegistry

	// Log receives every event the policy logs.
	Log *hostfuncs.LogSink

	// Cluster serves the kubernetes capabilities and the legacy cluster context.
	Cluster *hostfuncs.Cluster
}

type fakeHostConfig struct {
	responses      map[string]any
	clusterOptions []hostfuncs.ClusterOption
	bundles        []hostfuncs.HostFuncBundle
	middleware     []hostfuncs.Middleware
	errs           []error
}

// FakeHostOption configures a FakeHost.
type FakeHostOption func(*fakeHostConfig)

// WithResponse answers calls to key (see hostfuncs.Key) with value. An
// hostfuncs.ErrorResponse value makes the call fail.
func WithResponse(key string, value any) FakeHostOption {
	return func(c *fakeHostConfig) {
		if c.responses == nil {
			c.responses = make(map[string]any)
		}
		c.responses[key] = value
	}
}

// WithClusterObjects adds objects to the fake cluster.
func WithClusterObjects(objects ...*unstructured.Unstructured) FakeHostOption {
	return func(c *fakeHostConfig) {
		c.clusterOptions = append(c.clusterOptions, hostfuncs.WithObjects(objects...))
	}
}

// WithClusterStateFile loads the fake cluster from a YAML or JSON file.
func WithClusterStateFile(path string) FakeHostOption {
	return func(c *fakeHostConfig) {
		f, err := os.Open(path)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("cluster state: %w", err))
			return
		}
		defer f.Close()

		objects, err := hostfuncs.LoadObjects(f)
		if err != nil {
			c.errs = append(c.errs, fmt.Errorf("cluster state %s: %w", path, err))
			return
		}
		c.clusterOptions = append(c.clusterOptions, hostfuncs.WithObjects(objects...))
	}
}

// WithAuthorizer decides can_i calls.
func WithAuthorizer(a hostfuncs.Authorizer) FakeHostOption {
	return func(c *fakeHostConfig) {
		c.clusterOptions = append(c.clusterOptions, hostfuncs.WithAuthorizer(a))
	}
}

// WithHostBundle adds handlers. Canned responses take precedence over them.
func WithHostBundle(bundle hostfuncs.HostFuncBundle) FakeHostOption {
	return func(c *fakeHostConfig) {
		c.bundles = append(c.bundles, bundle)
	}
}

// WithHostMiddleware wraps every handler of the fake host.
func WithHostMiddleware(mw ...hostfuncs.Middleware) FakeHostOption {
	return func(c *fakeHostConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// BuildFakeHost creates a FakeHost. Bundles are layered as cluster, then
// extra bundles, then canned responses, then the log sink.
func BuildFakeHost(opts ...FakeHostOption) (*FakeHost, error) {
	var cfg fakeHostConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.errs) > 0 {
		return nil, cfg.errs[0]
	}

	cluster := hostfuncs.NewCluster(cfg.clusterOptions...)
	sink := hostfuncs.NewLogSink(hostfuncs.DefaultMaxLogSize)

	layers := append([]hostfuncs.HostFuncBundle{cluster.Bundle()}, cfg.bundles...)
	if len(cfg.responses) > 0 {
		responses, err := hostfuncs.ResponsesBundle(cfg.responses)
		if err != nil {
			return nil, err
		}
		layers = append(layers, responses)
	}
	layers = append(layers, hostfuncs.LogBundle(sink))

	registry, err := hostfuncs.NewRegistry(
		hostfuncs.WithBundle(hostfuncs.Combine(layers...)),
		hostfuncs.WithMiddleware(append([]hostfuncs.Middleware{hostfuncs.PanicRecoveryMiddleware()}, cfg.middleware...)...),
	)
	if err != nil {
		return nil, err
	}
	return &FakeHost{HandlerRegistry: registry, Log: sink, Cluster: cluster}, nil
}

// NewFakeHost is BuildFakeHost for tests: it fails t on error.
func NewFakeHost(t *testing.T, opts ...FakeHostOption) *FakeHost {
	t.Helper()
	h, err := BuildFakeHost(opts...)
	require.NoError(t, err)
	return h
}
