package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

func TestDecodeError(t *testing.T) {
	baseErr := fmt.Errorf("unexpected end of JSON input")
	err := &DecodeError{Type: "ValidationRequest", Err: baseErr}

	assert.Equal(t, "decode ValidationRequest: unexpected end of JSON input", err.Error())
	assert.True(t, errors.Is(err, baseErr))
	assert.Equal(t, CodeDecodeError, Code(err))
}

func TestDecodeError_WithCapability(t *testing.T) {
	err := &DecodeError{Type: "ManifestDigestResponse", Capability: "oci/v1/manifest_digest", Err: fmt.Errorf("bad")}

	assert.Equal(t, "decode ManifestDigestResponse for oci/v1/manifest_digest: bad", err.Error())
	assert.Equal(t, "oci/v1/manifest_digest", ToErrorDetail(err).Capability)
}

func TestNotGrantedError(t *testing.T) {
	err := &NotGrantedError{Capability: "oci/v1/manifest_digest"}

	assert.Equal(t, "capability oci/v1/manifest_digest not granted", err.Error())
	assert.True(t, errors.Is(err, ErrNotGranted))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, CodeCapabilityDenied, Code(err))

	withReason := &NotGrantedError{Capability: "net/v1/dns_lookup_host", Reason: "not in allowlist"}
	assert.Equal(t, "capability net/v1/dns_lookup_host not granted: not in allowlist", withReason.Error())
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Capability: "kubernetes/get_resource"}

	assert.Equal(t, "capability kubernetes/get_resource timed out", err.Error())
	assert.True(t, err.Timeout())
	assert.True(t, errors.Is(err, ErrTimeout))

	detail := ToErrorDetail(err)
	assert.True(t, detail.IsTimeout)
	assert.Equal(t, CodeCapabilityTimeout, detail.Code)
}

func TestHostError(t *testing.T) {
	tests := []struct {
		name string
		err  *HostError
		want string
	}{
		{"cause only", &HostError{Capability: "oci/verify", Err: fmt.Errorf("trap")}, "host call oci/verify failed: trap"},
		{"detail only", &HostError{Capability: "oci/verify", Detail: "registry unreachable"}, "host call oci/verify failed: registry unreachable"},
		{"both", &HostError{Capability: "oci/verify", Detail: "registry unreachable", Err: fmt.Errorf("trap")}, "host call oci/verify failed: registry unreachable: trap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.Equal(t, CodeHostError, Code(tt.err))
		})
	}
}

func TestInternalError_Panic(t *testing.T) {
	err := &InternalError{Err: fmt.Errorf("boom"), Stack: []byte("goroutine 1")}

	detail := ToErrorDetail(err)
	assert.Equal(t, entities.ErrorTypePanic, detail.Type)
	assert.Equal(t, CodeInternalError, detail.Code)
	assert.Equal(t, []byte("goroutine 1"), detail.Stack)
}

func TestConfigError(t *testing.T) {
	baseErr := fmt.Errorf("must be non-negative")
	err := &ConfigError{Field: "threshold", Err: baseErr}

	assert.Equal(t, "validation failed for field 'threshold': must be non-negative", err.Error())
	assert.True(t, errors.Is(err, baseErr))
	assert.Equal(t, CodeInvalidSettings, Code(err))
	assert.Equal(t, map[string]any{"field": "threshold"}, ToErrorDetail(err).Details)
}

func TestCode_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("resolving registry: %w", &NotGrantedError{Capability: "net/v1/dns_lookup_host"})
	assert.Equal(t, CodeCapabilityDenied, Code(wrapped))

	assert.Equal(t, CodeInternalError, Code(errors.New("plain")))
	assert.Equal(t, "", Code(nil))
}

func TestToErrorDetail(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToErrorDetail(nil))
	})

	t.Run("error detail passes through", func(t *testing.T) {
		detail := entities.NewErrorDetail(entities.ErrorTypeHost, "boom").WithCode("custom")
		got := ToErrorDetail(fmt.Errorf("wrap: %w", detail))
		require.NotNil(t, got)
		assert.Same(t, detail, got)
		assert.Equal(t, "custom", Code(detail))
	})

	t.Run("generic error is internal", func(t *testing.T) {
		got := ToErrorDetail(errors.New("unexpected"))
		assert.Equal(t, entities.ErrorTypeInternal, got.Type)
		assert.Equal(t, "unexpected", got.Message)
	})
}

func TestDecodeError_Encoding(t *testing.T) {
	err := &DecodeError{Type: "chan int", Encoding: true, Err: fmt.Errorf("unsupported type")}

	assert.Equal(t, "encode chan int: unsupported type", err.Error())
	assert.Equal(t, CodeDecodeError, Code(err))
}
