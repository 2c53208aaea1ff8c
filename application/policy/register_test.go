//go:build !wasip1

package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

func resetRegistration(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		registered, registerErr = nil, ErrNotRegistered
	})
}

func TestServe_NotRegistered(t *testing.T) {
	resetRegistration(t)
	registered, registerErr = nil, ErrNotRegistered

	msg := requireRejected(t, serveValidate([]byte(createPodRequest)), errors.CodeInternalError)
	assert.Contains(t, msg, "not registered")

	resp, err := wireformat.DecodeSettingsResponse(serveValidateSettings([]byte(`{}`)))
	require.NoError(t, err)
	assert.False(t, resp.Valid)

	assert.Equal(t, uint32(1), serveProtocolVersion())
}

func TestRegister(t *testing.T) {
	resetRegistration(t)

	require.NoError(t, Register(Definition{Validate: acceptAll}))

	r, err := Registered()
	require.NoError(t, err)
	require.NotNil(t, r)

	resp := decodeResponse(t, serveValidate([]byte(createPodRequest)))
	assert.True(t, resp.Accepted)
	assert.JSONEq(t, `{"valid":true}`, string(serveValidateSettings(nil)))
}

func TestRegister_InvalidDefinitionRejectsEverything(t *testing.T) {
	resetRegistration(t)

	err := Register(Definition{Validate: acceptAll, Metadata: entities.Metadata{ProtocolVersion: 9}})
	require.Error(t, err)

	msg := requireRejected(t, serveValidate([]byte(createPodRequest)), errors.CodeInternalError)
	assert.Contains(t, msg, "protocolVersion")
}

func TestRegister_NativeHostCallsFail(t *testing.T) {
	resetRegistration(t)

	require.NoError(t, Register(Definition{Validate: func(ctx context.Context, _ *entities.ValidationRequest, h *Host) (entities.ValidationOutcome, error) {
		_, err := h.LookupHost(ctx, "example.com")
		return entities.Accept(), err
	}}))

	requireRejected(t, serveValidate([]byte(createPodRequest)), errors.CodeHostError)
}
