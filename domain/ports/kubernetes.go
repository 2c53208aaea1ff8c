package ports

import (
	"context"

	authorizationv1 "k8s.io/api/authorization/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// ClusterReader reads cluster state through the host. Only resources declared
// in the policy's context-aware resources are served.
type ClusterReader interface {
	// ListResourcesByNamespace lists resources of one kind in one namespace.
	ListResourcesByNamespace(ctx context.Context, req entities.ListResourcesByNamespaceRequest) (*unstructured.UnstructuredList, error)

	// ListAllResources lists resources of one kind across the cluster.
	ListAllResources(ctx context.Context, req entities.ListAllResourcesRequest) (*unstructured.UnstructuredList, error)

	// GetResource fetches a single resource.
	GetResource(ctx context.Context, req entities.GetResourceRequest) (*unstructured.Unstructured, error)
}

// AccessReviewer asks the host whether a subject may perform an action.
type AccessReviewer interface {
	CanI(ctx context.Context, req entities.SubjectAccessReviewRequest) (*authorizationv1.SubjectAccessReviewStatus, error)
}
