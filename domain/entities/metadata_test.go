package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
)

func validMetadata() Metadata {
	return Metadata{
		ProtocolVersion: ProtocolV1,
		Rules: []admissionregistrationv1.RuleWithOperations{{
			Operations: []admissionregistrationv1.OperationType{admissionregistrationv1.Create, admissionregistrationv1.Update},
			Rule: admissionregistrationv1.Rule{
				APIGroups:   []string{""},
				APIVersions: []string{"v1"},
				Resources:   []string{"pods"},
			},
		}},
		ExecutionMode:            ExecutionModeWapc,
		MinimumKubewardenVersion: "1.10.0",
		Capabilities:             []string{"oci/**", "net/v1/dns_lookup_host"},
		BackgroundAudit:          true,
	}
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Metadata)
		wantErr string
	}{
		{name: "valid", mutate: func(*Metadata) {}},
		{name: "unknown protocol", mutate: func(m *Metadata) { m.ProtocolVersion = 0 }, wantErr: "protocolVersion"},
		{name: "bad execution mode", mutate: func(m *Metadata) { m.ExecutionMode = "docker" }, wantErr: "ExecutionMode"},
		{name: "bad semver", mutate: func(m *Metadata) { m.MinimumKubewardenVersion = "latest" }, wantErr: "MinimumKubewardenVersion"},
		{name: "bad capability pattern", mutate: func(m *Metadata) { m.Capabilities = []string{"oci/[unterminated"} }, wantErr: "Capabilities[0]"},
		{name: "unknown operation", mutate: func(m *Metadata) {
			m.Rules[0].Operations = []admissionregistrationv1.OperationType{"PATCH"}
		}, wantErr: `unknown operation "PATCH"`},
		{name: "rule without resources", mutate: func(m *Metadata) { m.Rules[0].Resources = nil }, wantErr: "no resources"},
		{name: "incomplete context aware resource", mutate: func(m *Metadata) {
			m.ContextAwareResources = []ContextAwareResource{{APIVersion: "v1"}}
		}, wantErr: "ContextAwareResources[0].Kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMetadata()
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMetadata_Allows(t *testing.T) {
	m := validMetadata()

	assert.True(t, m.Allows(NewCapability("oci", "manifest_digest").WithVersion(1)))
	assert.True(t, m.Allows(NewCapability("oci", "verify")))
	assert.True(t, m.Allows(NewCapability("net", "dns_lookup_host").WithVersion(1)))
	assert.False(t, m.Allows(NewCapability("net", "dns_lookup_host").WithVersion(2)))
	assert.False(t, m.Allows(NewCapability("kubernetes", "can_i")))

	empty := Metadata{}
	assert.False(t, empty.Allows(NewCapability("oci", "verify")))
}

func TestMetadata_AllowsPatterns(t *testing.T) {
	digest := NewCapability("oci", "manifest_digest").WithVersion(1)

	tests := []struct {
		pattern string
		want    bool
	}{
		{pattern: "oci/**", want: true},
		{pattern: "oci/v1/*", want: true},
		{pattern: "oci/v1/manifest_digest", want: true},
		{pattern: "oci/*", want: false},
		{pattern: "oci/v2/*", want: false},
		{pattern: "*/v1/*", want: true},
		{pattern: "net/**", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			m := Metadata{Capabilities: []string{tt.pattern}}
			assert.Equal(t, tt.want, m.Allows(digest))
		})
	}

	unversioned := Metadata{Capabilities: []string{"oci/*"}}
	assert.True(t, unversioned.Allows(NewCapability("oci", "verify")))
}

func TestMetadata_ContextAware(t *testing.T) {
	m := validMetadata()
	assert.False(t, m.ContextAware())

	m.ContextAwareResources = []ContextAwareResource{{APIVersion: "v1", Kind: "Namespace"}}
	assert.True(t, m.ContextAware())
}

func TestMetadata_KubewardenVersionSatisfies(t *testing.T) {
	m := validMetadata()

	ok, err := m.KubewardenVersionSatisfies("1.12.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.KubewardenVersionSatisfies("1.9.3")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.KubewardenVersionSatisfies("not-a-version")
	assert.Error(t, err)
}
