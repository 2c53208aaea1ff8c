package hostfuncs

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

func TestResponsesBundle(t *testing.T) {
	bundle, err := ResponsesBundle(map[string]any{
		"oci/v1/manifest_digest":           entities.ManifestDigestResponse{Digest: "sha256:abc"},
		"crypto/v1/is_certificate_trusted": json.RawMessage(`{"trusted":true}`),
		"oci/verify":                       []byte{1},
		"net/v1/dns_lookup_host":           NewNotGrantedError("no dns"),
	})
	require.NoError(t, err)

	reg, err := NewRegistry(WithBundle(bundle))
	require.NoError(t, err)
	ctx := context.Background()

	reply, isErr := reg.Dispatch(ctx, Call{Namespace: "oci", Operation: "v1/manifest_digest"}, nil)
	require.False(t, isErr)
	assert.JSONEq(t, `{"digest":"sha256:abc"}`, string(reply))

	reply, isErr = reg.Dispatch(ctx, Call{Namespace: "crypto", Operation: "v1/is_certificate_trusted"}, nil)
	require.False(t, isErr)
	assert.JSONEq(t, `{"trusted":true}`, string(reply))

	reply, isErr = reg.Dispatch(ctx, Call{Namespace: "oci", Operation: "verify"}, nil)
	require.False(t, isErr)
	assert.Equal(t, []byte{1}, reply)

	reply, isErr = reg.Dispatch(ctx, Call{Namespace: "net", Operation: "v1/dns_lookup_host"}, nil)
	require.True(t, isErr)
	assert.Equal(t, ErrorTypeNotGranted, decodeErrorResponse(t, reply).Type)
}

func TestResponsesBundle_Unencodable(t *testing.T) {
	_, err := ResponsesBundle(map[string]any{"oci/verify": make(chan int)})
	assert.Error(t, err)
}

func TestCombine_LaterWins(t *testing.T) {
	first, err := ResponsesBundle(map[string]any{"oci/verify": []byte{0}, "oci/v1/oci_manifest": []byte("{}")})
	require.NoError(t, err)
	second, err := ResponsesBundle(map[string]any{"oci/verify": []byte{1}})
	require.NoError(t, err)

	reg, err := NewRegistry(WithBundle(Combine(first, second)))
	require.NoError(t, err)

	reply, _ := reg.Dispatch(context.Background(), Call{Namespace: "oci", Operation: "verify"}, nil)
	assert.Equal(t, []byte{1}, reply)
	assert.Equal(t, []string{"oci/v1/oci_manifest", "oci/verify"}, reg.Names())
}

func TestNetBundle(t *testing.T) {
	reg, err := NewRegistry(WithBundle(NetBundle()))
	require.NoError(t, err)
	assert.True(t, reg.Has("net/v1/dns_lookup_host"))

	reply, isErr := reg.Dispatch(context.Background(), Call{Namespace: "net", Operation: "v1/dns_lookup_host"}, []byte(`""`))
	require.True(t, isErr)
	assert.Equal(t, ErrorTypeValidation, decodeErrorResponse(t, reply).Type)
}

func TestHostContextFrom(t *testing.T) {
	call := Call{Binding: "kubewarden", Namespace: "oci", Operation: "verify"}
	hc := HostContextFrom(context.Background(), call)
	hc.SetValue("attempt", 1)

	same := HostContextFrom(hc, call)
	v, ok := same.GetValue("attempt")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, "oci/verify", same.FunctionName())

	other := HostContextFrom(hc, Call{Namespace: "net", Operation: "x"})
	_, ok = other.GetValue("attempt")
	assert.False(t, ok)
}
