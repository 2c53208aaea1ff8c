package capabilities

import (
	"context"

	authorizationv1 "k8s.io/api/authorization/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
)

var (
	_ ports.ClusterReader  = (*Client)(nil)
	_ ports.AccessReviewer = (*Client)(nil)
)

// ListResourcesByNamespace lists resources of one kind in one namespace.
func (c *Client) ListResourcesByNamespace(ctx context.Context, req entities.ListResourcesByNamespaceRequest) (*unstructured.UnstructuredList, error) {
	return ListResourcesByNamespaceAs[*unstructured.UnstructuredList](ctx, c, req)
}

// ListAllResources lists resources of one kind across the cluster.
func (c *Client) ListAllResources(ctx context.Context, req entities.ListAllResourcesRequest) (*unstructured.UnstructuredList, error) {
	return ListAllResourcesAs[*unstructured.UnstructuredList](ctx, c, req)
}

// GetResource fetches a single resource.
func (c *Client) GetResource(ctx context.Context, req entities.GetResourceRequest) (*unstructured.Unstructured, error) {
	return GetResourceAs[*unstructured.Unstructured](ctx, c, req)
}

// CanI runs a SubjectAccessReview on the host.
func (c *Client) CanI(ctx context.Context, req entities.SubjectAccessReviewRequest) (*authorizationv1.SubjectAccessReviewStatus, error) {
	resp, err := Call[entities.SubjectAccessReviewRequest, authorizationv1.SubjectAccessReviewStatus](ctx, c, CanI, req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListResourcesByNamespaceAs decodes the list into a typed list such as *corev1.PodList.
func ListResourcesByNamespaceAs[L any](ctx context.Context, c *Client, req entities.ListResourcesByNamespaceRequest) (L, error) {
	return Call[entities.ListResourcesByNamespaceRequest, L](ctx, c, ListByNamespace, req)
}

// ListAllResourcesAs decodes the list into a typed list such as *corev1.NamespaceList.
func ListAllResourcesAs[L any](ctx context.Context, c *Client, req entities.ListAllResourcesRequest) (L, error) {
	return Call[entities.ListAllResourcesRequest, L](ctx, c, ListAll, req)
}

// GetResourceAs decodes the resource into a typed object such as *corev1.Namespace.
func GetResourceAs[T any](ctx context.Context, c *Client, req entities.GetResourceRequest) (T, error) {
	return Call[entities.GetResourceRequest, T](ctx, c, GetResource, req)
}
