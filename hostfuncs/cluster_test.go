package hostfuncs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/application/capabilities"
	"github.com/kubewarden/policy-sdk-go/application/clustercontext"
	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

const clusterState = `
apiVersion: v1
kind: Namespace
metadata:
  name: default
  labels:
    team: platform
---
apiVersion: v1
kind: Namespace
metadata:
  name: kube-system
---
apiVersion: v1
kind: List
items:
  - apiVersion: v1
    kind: Service
    metadata:
      name: web
      namespace: default
      labels:
        app: web
    spec:
      ports:
        - port: 80
  - apiVersion: v1
    kind: Service
    metadata:
      name: dns
      namespace: kube-system
---
apiVersion: networking.k8s.io/v1
kind: Ingress
metadata:
  name: web
  namespace: default
spec:
  rules:
    - host: web.example.com
---
`

func newTestCluster(t *testing.T) (*capabilities.Client, *HandlerRegistry) {
	t.Helper()
	objects, err := LoadObjects(strings.NewReader(clusterState))
	require.NoError(t, err)
	require.Len(t, objects, 5)

	cluster := NewCluster(
		WithObjects(objects...),
		WithAuthorizer(func(req entities.SubjectAccessReviewRequest) (bool, string) {
			if req.User == "alice" && req.Verb == "get" {
				return true, "alice may read"
			}
			return false, "denied by test authorizer"
		}),
	)
	reg, err := NewRegistry(WithBundle(cluster.Bundle()))
	require.NoError(t, err)
	return capabilities.NewClient(reg), reg
}

func TestLoadObjects_Errors(t *testing.T) {
	_, err := LoadObjects(strings.NewReader("metadata:\n  name: x\n"))
	assert.ErrorContains(t, err, "no apiVersion or kind")

	_, err = LoadObjects(strings.NewReader("kind: [\n"))
	assert.Error(t, err)

	objects, err := LoadObjects(strings.NewReader("---\n---\n"))
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestCluster_ListByNamespace(t *testing.T) {
	client, _ := newTestCluster(t)
	ctx := context.Background()

	list, err := client.ListResourcesByNamespace(ctx, entities.ListResourcesByNamespaceRequest{
		APIVersion: "v1", Kind: "Service", Namespace: "default",
	})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "web", list.Items[0].GetName())

	list, err = client.ListResourcesByNamespace(ctx, entities.ListResourcesByNamespaceRequest{
		APIVersion: "v1", Kind: "Service", Namespace: "default", LabelSelector: "app=api",
	})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	_, err = client.ListResourcesByNamespace(ctx, entities.ListResourcesByNamespaceRequest{APIVersion: "v1", Kind: "Service"})
	assert.Equal(t, errors.CodeHostError, errors.Code(err))
}

func TestCluster_ListAll(t *testing.T) {
	client, _ := newTestCluster(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  entities.ListAllResourcesRequest
		want []string
	}{
		{name: "all services", req: entities.ListAllResourcesRequest{APIVersion: "v1", Kind: "Service"}, want: []string{"web", "dns"}},
		{name: "label selector", req: entities.ListAllResourcesRequest{APIVersion: "v1", Kind: "Namespace", LabelSelector: "team"}, want: []string{"default"}},
		{name: "field selector", req: entities.ListAllResourcesRequest{APIVersion: "v1", Kind: "Service", FieldSelector: "metadata.namespace=kube-system"}, want: []string{"dns"}},
		{name: "wrong api version", req: entities.ListAllResourcesRequest{APIVersion: "v2", Kind: "Service"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := client.ListAllResources(ctx, tt.req)
			require.NoError(t, err)
			var names []string
			for _, item := range list.Items {
				names = append(names, item.GetName())
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err := client.ListAllResources(ctx, entities.ListAllResourcesRequest{APIVersion: "v1", Kind: "Service", LabelSelector: "app in ("})
	assert.Equal(t, errors.CodeHostError, errors.Code(err))
	assert.Contains(t, err.Error(), ErrorTypeValidation)
}

func TestCluster_GetResource(t *testing.T) {
	client, _ := newTestCluster(t)
	ctx := context.Background()

	obj, err := client.GetResource(ctx, entities.GetResourceRequest{APIVersion: "v1", Kind: "Service", Name: "web", Namespace: "default"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"app": "web"}, obj.GetLabels())

	_, err = client.GetResource(ctx, entities.GetResourceRequest{APIVersion: "v1", Kind: "Service", Name: "web"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCluster_CanI(t *testing.T) {
	client, _ := newTestCluster(t)
	ctx := context.Background()

	status, err := client.CanI(ctx, entities.SubjectAccessReviewRequest{User: "alice", Verb: "get", Resource: "pods"})
	require.NoError(t, err)
	assert.True(t, status.Allowed)

	status, err = client.CanI(ctx, entities.SubjectAccessReviewRequest{User: "bob", Verb: "delete", Resource: "pods"})
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, "denied by test authorizer", status.Reason)
}

func TestCluster_CanIWithoutAuthorizer(t *testing.T) {
	status, err := NewCluster().CanI(context.Background(), entities.SubjectAccessReviewRequest{User: "alice"})
	require.NoError(t, err)
	assert.False(t, status.Allowed)
}

func TestCluster_LegacyClusterContext(t *testing.T) {
	client, _ := newTestCluster(t)
	cc := clustercontext.New(client)
	ctx := context.Background()

	namespaces, err := cc.Namespaces(ctx)
	require.NoError(t, err)
	require.Len(t, namespaces, 2)
	assert.Equal(t, "default", namespaces[0].Name)
	assert.Equal(t, "platform", namespaces[0].Labels["team"])

	services, err := cc.Services(ctx, clustercontext.InNamespace("default"))
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, int32(80), services[0].Spec.Ports[0].Port)

	ingresses, err := cc.Ingress(ctx, clustercontext.AllNamespaces, "web")
	require.NoError(t, err)
	require.Len(t, ingresses, 1)
	assert.Equal(t, "web.example.com", ingresses[0].Spec.Rules[0].Host)
}
