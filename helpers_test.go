package kubewarden_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kubewarden "github.com/kubewarden/policy-sdk-go"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

func TestEnvelopeHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func() ([]byte, error)
		want  string
	}{
		{
			name:  "accept",
			build: kubewarden.AcceptRequest,
			want:  `{"accepted":true}`,
		},
		{
			name:  "accept with warnings",
			build: func() ([]byte, error) { return kubewarden.AcceptRequestWithWarnings("deprecated field") },
			want:  `{"accepted":true,"warnings":["deprecated field"]}`,
		},
		{
			name: "reject",
			build: func() ([]byte, error) {
				return kubewarden.RejectRequest("privileged containers are not allowed", "privileged")
			},
			want: `{"accepted":false,"message":"privileged containers are not allowed","code":"privileged"}`,
		},
		{
			name:  "reject without code",
			build: func() ([]byte, error) { return kubewarden.RejectRequest("no", kubewarden.NoCode) },
			want:  `{"accepted":false,"message":"no","code":"rejected"}`,
		},
		{
			name: "mutate",
			build: func() ([]byte, error) {
				return kubewarden.MutateRequest(map[string]any{"metadata": map[string]any{"name": "web"}})
			},
			want: `{"accepted":true,"mutated_object":{"metadata":{"name":"web"}}}`,
		},
		{
			name:  "accept settings",
			build: kubewarden.AcceptSettings,
			want:  `{"valid":true}`,
		},
		{
			name:  "reject settings",
			build: func() ([]byte, error) { return kubewarden.RejectSettings("threshold must be non-negative") },
			want:  `{"valid":false,"message":"threshold must be non-negative"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.build()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestMutateRequest_NotAnObject(t *testing.T) {
	t.Parallel()

	_, err := kubewarden.MutateRequest([]string{"not", "an", "object"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeDecodeError, errors.Code(err))
}
