package capabilities

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

const testDigest = "sha256:3b18e512dba79e4c8300dd08aeb37f8e728b8dad6c4b6f0ce8b0b1d0b1a1a2a3"

func TestKnownCapabilityOperations(t *testing.T) {
	want := []string{
		"net/v1/dns_lookup_host",
		"oci/v1/manifest_digest",
		"oci/v1/oci_manifest",
		"oci/v1/oci_manifest_config",
		"oci/verify",
		"crypto/v1/is_certificate_trusted",
		"kubernetes/list_resources_by_namespace",
		"kubernetes/list_resources_all",
		"kubernetes/get_resource",
		"kubernetes/can_i",
	}
	got := make([]string, 0, len(Known))
	for _, c := range Known {
		got = append(got, c.String())
	}
	assert.Equal(t, want, got)
}

func TestManifestDigest(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, "kubewarden", "oci", "v1/manifest_digest", []byte(`"busybox:1.36"`)).
		Return([]byte(`{"digest":"`+testDigest+`"}`), nil)

	d, err := client.ManifestDigest(context.Background(), "busybox:1.36")
	require.NoError(t, err)
	assert.Equal(t, digest.Digest(testDigest), d)
	assert.Equal(t, digest.SHA256, d.Algorithm())
}

func TestManifestDigest_InvalidDigest(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"digest":"not-a-digest"}`), nil)

	_, err := client.ManifestDigest(context.Background(), "busybox")
	assert.Equal(t, errors.CodeDecodeError, errors.Code(err))
}

func TestManifest(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantIndex bool
	}{
		{
			name: "image manifest",
			reply: `{"schemaVersion":2,"mediaType":"application/vnd.oci.image.manifest.v1+json",
				"config":{"mediaType":"application/vnd.oci.image.config.v1+json","digest":"` + testDigest + `","size":7023},
				"layers":[]}`,
		},
		{
			name: "image index",
			reply: `{"schemaVersion":2,"mediaType":"application/vnd.oci.image.index.v1+json",
				"manifests":[{"mediaType":"application/vnd.oci.image.manifest.v1+json","digest":"` + testDigest + `","size":7143,
				"platform":{"architecture":"amd64","os":"linux"}}]}`,
			wantIndex: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, host := newMockClient()
			host.On("HostCall", mock.Anything, "kubewarden", "oci", "v1/oci_manifest", mock.Anything).
				Return([]byte(tt.reply), nil)

			resp, err := client.Manifest(context.Background(), "ghcr.io/kubewarden/policy:v1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndex, resp.IsIndex())
			if tt.wantIndex {
				require.Len(t, resp.Index.Manifests, 1)
				assert.Equal(t, "amd64", resp.Index.Manifests[0].Platform.Architecture)
			} else {
				require.NotNil(t, resp.Image)
				assert.Equal(t, int64(7023), resp.Image.Config.Size)
			}
		})
	}
}

func TestManifestAndConfig(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, "kubewarden", "oci", "v1/oci_manifest_config", mock.Anything).
		Return([]byte(`{"manifest":{"schemaVersion":2,"layers":[]},"digest":"`+testDigest+`",
			"config":{"architecture":"arm64","os":"linux","rootfs":{"type":"layers","diff_ids":[]}}}`), nil)

	resp, err := client.ManifestAndConfig(context.Background(), "busybox")
	require.NoError(t, err)
	assert.Equal(t, testDigest, resp.Digest)
	assert.Equal(t, "arm64", resp.Config.Architecture)
}

func TestVerifyImage(t *testing.T) {
	config := entities.VerificationConfigV1{
		AllOf: []entities.Signature{entities.GithubActionSignature("kubewarden", "")},
	}

	tests := []struct {
		name    string
		reply   []byte
		want    bool
		wantErr bool
	}{
		{name: "trusted byte", reply: []byte{1}, want: true},
		{name: "untrusted byte", reply: []byte{0}, want: false},
		{name: "json true", reply: []byte("true"), want: true},
		{name: "json false", reply: []byte("false"), want: false},
		{name: "json object", reply: []byte(`{"is_trusted":true,"digest":"` + testDigest + `"}`), want: true},
		{name: "empty reply", reply: []byte{}, wantErr: true},
		{name: "garbage", reply: []byte(`{"foo":1}`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, host := newMockClient()
			host.On("HostCall", mock.Anything, "kubewarden", "oci", "verify", mock.Anything).
				Return(tt.reply, nil)

			trusted, err := client.VerifyImage(context.Background(), "ghcr.io/kubewarden/policy:v1", config)
			if tt.wantErr {
				assert.Equal(t, errors.CodeDecodeError, errors.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, trusted)
		})
	}
}

func TestVerifyImage_Payload(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, "kubewarden", "oci", "verify", mock.Anything).
		Return([]byte{1}, nil)

	config := entities.VerificationConfigV1{AllOf: []entities.Signature{entities.PubKeySignature("KEY")}}
	_, err := client.VerifyImage(context.Background(), "busybox", config)
	require.NoError(t, err)

	payload := host.Calls[0].Arguments.Get(4).([]byte)
	assert.JSONEq(t, `{"SigstoreVerify":{"image":"busybox","config":{"allOf":[{"kind":"pubKey","key":"KEY"}]}}}`, string(payload))
}

func TestVerifyImage_InvalidConfigSkipsHost(t *testing.T) {
	client, host := newMockClient()

	_, err := client.VerifyImage(context.Background(), "busybox", entities.VerificationConfigV1{
		AllOf: []entities.Signature{{Kind: "unknown"}},
	})

	var decodeErr *errors.DecodeError
	require.True(t, stdErrors.As(err, &decodeErr))
	assert.True(t, decodeErr.Encoding)
	host.AssertNotCalled(t, "HostCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyCert(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, "kubewarden", "crypto", "v1/is_certificate_trusted", mock.Anything).
		Return([]byte(`{"trusted":false,"reason":"certificate expired"}`), nil)

	cert := entities.Certificate{Encoding: entities.CertificateEncodingPem, Data: entities.ByteArray("PEM")}
	trusted, err := client.IsCertificateTrusted(context.Background(), cert, nil, "2030-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.False(t, trusted)

	payload := host.Calls[0].Arguments.Get(4).([]byte)
	assert.JSONEq(t, `{"cert":{"encoding":"Pem","data":[80,69,77]},"not_after":"2030-01-01T00:00:00Z"}`, string(payload))
}

func TestListResourcesByNamespace(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, "kubewarden", "kubernetes", "list_resources_by_namespace", mock.Anything).
		Return([]byte(`{"apiVersion":"v1","kind":"PodList","items":[
			{"apiVersion":"v1","kind":"Pod","metadata":{"name":"web","namespace":"default"}}]}`), nil)

	req := entities.ListResourcesByNamespaceRequest{APIVersion: "v1", Kind: "Pod", Namespace: "default", LabelSelector: "app=web"}
	list, err := client.ListResourcesByNamespace(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "web", list.Items[0].GetName())

	payload := host.Calls[0].Arguments.Get(4).([]byte)
	assert.JSONEq(t, `{"api_version":"v1","kind":"Pod","namespace":"default","label_selector":"app=web"}`, string(payload))
}

func TestListAllResourcesAs_Typed(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, "kubewarden", "kubernetes", "list_resources_all", mock.Anything).
		Return([]byte(`{"apiVersion":"v1","kind":"NamespaceList","items":[{"metadata":{"name":"kube-system"}},{"metadata":{"name":"default"}}]}`), nil)

	list, err := ListAllResourcesAs[corev1.NamespaceList](context.Background(), client,
		entities.ListAllResourcesRequest{APIVersion: "v1", Kind: "Namespace"})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "kube-system", list.Items[0].Name)
}

func TestGetResource(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, "kubewarden", "kubernetes", "get_resource", mock.Anything).
		Return([]byte(`{"apiVersion":"v1","kind":"Namespace","metadata":{"name":"default","labels":{"team":"a"}}}`), nil)

	obj, err := client.GetResource(context.Background(), entities.GetResourceRequest{APIVersion: "v1", Kind: "Namespace", Name: "default"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "a"}, obj.GetLabels())

	payload := host.Calls[0].Arguments.Get(4).([]byte)
	assert.JSONEq(t, `{"api_version":"v1","kind":"Namespace","name":"default","disable_cache":false}`, string(payload))
}

func TestCanI(t *testing.T) {
	client, host := newMockClient()
	host.On("HostCall", mock.Anything, "kubewarden", "kubernetes", "can_i", mock.Anything).
		Return([]byte(`{"allowed":true,"reason":"RBAC: allowed by ClusterRoleBinding"}`), nil)

	status, err := client.CanI(context.Background(), entities.SubjectAccessReviewRequest{
		User: "alice", Namespace: "default", Resource: "pods", Verb: "create",
	})
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Contains(t, status.Reason, "RBAC")
}
