package hostfuncs

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/application/capabilities"
	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

func echoHandler(_ context.Context, payload []byte) ([]byte, error) {
	return append([]byte("echo:"), payload...), nil
}

func decodeErrorResponse(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestKey(t *testing.T) {
	tests := []struct {
		call Call
		want string
	}{
		{Call{Binding: "kubewarden", Namespace: "oci", Operation: "v1/manifest_digest"}, "oci/v1/manifest_digest"},
		{Call{Namespace: "tracing", Operation: "log"}, "tracing/log"},
		{Call{Binding: "kubernetes", Namespace: "namespaces", Operation: "list"}, "kubernetes:namespaces/list"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.call.Key())

			parsed, ok := ParseKey(tt.want)
			require.True(t, ok)
			if tt.call.Binding == "" {
				tt.call.Binding = entities.HostBinding
			}
			assert.Equal(t, tt.call, parsed)
		})
	}

	for _, bad := range []string{"", "oci", "/op", "ns/", ":ns/op"} {
		_, ok := ParseKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestNewRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Empty(t, reg.Names())
}

func TestNewRegistry_WithByteHandler(t *testing.T) {
	reg, err := NewRegistry(
		WithByteHandler("test/echo", echoHandler),
		WithCapability(entities.NewCapability("oci", "digest").WithVersion(1), echoHandler),
	)
	require.NoError(t, err)

	assert.True(t, reg.Has("test/echo"))
	assert.True(t, reg.Has("oci/v1/digest"))
	assert.False(t, reg.Has("test/nonexistent"))
	assert.Equal(t, []string{"oci/v1/digest", "test/echo"}, reg.Names())
}

func TestNewRegistry_InvalidNames(t *testing.T) {
	tests := []struct {
		name    string
		opts    []RegistryOption
		wantErr string
	}{
		{
			name:    "duplicate",
			opts:    []RegistryOption{WithByteHandler("test/a", echoHandler), WithByteHandler("test/a", echoHandler)},
			wantErr: "duplicate handler name",
		},
		{
			name:    "empty",
			opts:    []RegistryOption{WithByteHandler("", echoHandler)},
			wantErr: "cannot be empty",
		},
		{
			name:    "no operation",
			opts:    []RegistryOption{WithByteHandler("echo", echoHandler)},
			wantErr: "malformed handler name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHandlerRegistry_Dispatch(t *testing.T) {
	reg, err := NewRegistry(
		WithByteHandler("test/echo", echoHandler),
		WithByteHandler("test/denied", FailingHandler(NewNotGrantedError("no"))),
		WithByteHandler("test/broken", func(context.Context, []byte) ([]byte, error) {
			return nil, stdErrors.New("disk full")
		}),
		WithByteHandler("test/slow", func(context.Context, []byte) ([]byte, error) {
			return nil, context.DeadlineExceeded
		}),
		WithMaxPayloadSize(8),
	)
	require.NoError(t, err)

	ctx := context.Background()
	call := func(op string) Call { return Call{Binding: "kubewarden", Namespace: "test", Operation: op} }

	t.Run("found handler", func(t *testing.T) {
		resp, isErr := reg.Dispatch(ctx, call("echo"), []byte("hello"))
		assert.False(t, isErr)
		assert.Equal(t, "echo:hello", string(resp))
	})

	tests := []struct {
		name     string
		op       string
		payload  string
		wantType string
		wantCode int
	}{
		{name: "not found", op: "unknown", wantType: ErrorTypeNotFound, wantCode: 404},
		{name: "error response", op: "denied", wantType: ErrorTypeNotGranted, wantCode: 403},
		{name: "plain error", op: "broken", wantType: ErrorTypeInternal, wantCode: 500},
		{name: "deadline", op: "slow", wantType: ErrorTypeTimeout, wantCode: 504},
		{name: "payload too large", op: "echo", payload: "123456789", wantType: ErrorTypeValidation, wantCode: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, isErr := reg.Dispatch(ctx, call(tt.op), []byte(tt.payload))
			require.True(t, isErr)
			errResp := decodeErrorResponse(t, resp)
			assert.Equal(t, tt.wantType, errResp.Type)
			assert.Equal(t, tt.wantCode, errResp.Code)
		})
	}
}

func TestHandlerRegistry_HostCaller(t *testing.T) {
	reg, err := NewRegistry(
		WithHandler("net/v1/dns_lookup_host", func(_ context.Context, host string) (entities.LookupHostResponse, error) {
			if host == "blocked.example" {
				return entities.LookupHostResponse{}, NewNotGrantedError("dns lookups are disabled")
			}
			return entities.LookupHostResponse{IPs: []string{"192.0.2.10"}}, nil
		}),
		WithByteHandler("oci/v1/manifest_digest", FailingHandler(NewTimeoutError("registry slow"))),
	)
	require.NoError(t, err)

	client := capabilities.NewClient(reg)
	ctx := context.Background()

	ips, err := client.LookupHost(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.10"}, ips)

	_, err = client.LookupHost(ctx, "blocked.example")
	assert.Equal(t, errors.CodeCapabilityDenied, errors.Code(err))
	assert.Contains(t, err.Error(), "dns lookups are disabled")

	_, err = client.ManifestDigest(ctx, "busybox")
	assert.Equal(t, errors.CodeCapabilityTimeout, errors.Code(err))

	_, err = client.VerifyCert(ctx, entities.CertificateVerificationRequest{})
	assert.Equal(t, errors.CodeHostError, errors.Code(err))
	assert.Contains(t, err.Error(), ErrorTypeNotFound)
}

func TestHandlerRegistry_NamesIsACopy(t *testing.T) {
	reg, err := NewRegistry(WithByteHandler("test/echo", echoHandler))
	require.NoError(t, err)

	names := reg.Names()
	names[0] = "changed"
	assert.Equal(t, []string{"test/echo"}, reg.Names())
}

func TestNewJSONHandler(t *testing.T) {
	type req struct {
		Name string `json:"name"`
	}
	type resp struct {
		Greeting string `json:"greeting"`
	}
	handler := NewJSONHandler(func(_ context.Context, r req) (resp, error) {
		if r.Name == "" {
			return resp{}, NewValidationError("name is required")
		}
		return resp{Greeting: "hello " + r.Name}, nil
	})

	out, err := handler(context.Background(), []byte(`{"name":"alice"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"greeting":"hello alice"}`, string(out))

	_, err = handler(context.Background(), []byte(`{"name":`))
	var errResp ErrorResponse
	require.True(t, stdErrors.As(err, &errResp))
	assert.Equal(t, ErrorTypeValidation, errResp.Type)

	_, err = handler(context.Background(), []byte(`{}`))
	require.True(t, stdErrors.As(err, &errResp))
	assert.Equal(t, "name is required", errResp.Message)
}
