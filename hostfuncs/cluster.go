package hostfuncs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
	authorizationv1 "k8s.io/api/authorization/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// Capabilities served by a Cluster.
var (
	ListResourcesByNamespaceCapability = entities.NewCapability("kubernetes", "list_resources_by_namespace")
	ListAllResourcesCapability         = entities.NewCapability("kubernetes", "list_resources_all")
	GetResourceCapability              = entities.NewCapability("kubernetes", "get_resource")
	CanICapability                     = entities.NewCapability("kubernetes", "can_i")
)

// LegacyBinding is the binding of the cluster context calls of older hosts.
const LegacyBinding = "kubernetes"

// Authorizer answers can_i requests.
type Authorizer func(req entities.SubjectAccessReviewRequest) (allowed bool, reason string)

// Cluster is an in-memory cluster state serving the kubernetes capabilities.
type Cluster struct {
	objects    []*unstructured.Unstructured
	authorizer Authorizer
}

// ClusterOption configures a Cluster.
type ClusterOption func(*Cluster)

// WithObjects adds objects to the cluster state.
func WithObjects(objects ...*unstructured.Unstructured) ClusterOption {
	return func(c *Cluster) {
		c.objects = append(c.objects, objects...)
	}
}

// WithAuthorizer sets the can_i authorizer. Without one every review is denied.
func WithAuthorizer(a Authorizer) ClusterOption {
	return func(c *Cluster) {
		c.authorizer = a
	}
}

// NewCluster creates a cluster state.
func NewCluster(opts ...ClusterOption) *Cluster {
	c := &Cluster{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadObjects decodes a multi-document YAML (or JSON) stream of Kubernetes
// objects. Empty documents are skipped; "List" objects are flattened.
func LoadObjects(r io.Reader) ([]*unstructured.Unstructured, error) {
	dec := yaml.NewDecoder(r)
	var objects []*unstructured.Unstructured
	for {
		var raw any
		err := dec.Decode(&raw)
		if stdErrors.Is(err, io.EOF) {
			return objects, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode cluster objects: %w", err)
		}
		if raw == nil {
			continue
		}

		// A JSON round trip gives the value types unstructured objects expect.
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("decode cluster objects: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(encoded, &doc); err != nil {
			return nil, fmt.Errorf("decode cluster objects: %w", err)
		}

		obj := &unstructured.Unstructured{Object: doc}
		if obj.GetAPIVersion() == "" || obj.GetKind() == "" {
			return nil, fmt.Errorf("object %q has no apiVersion or kind", obj.GetName())
		}
		if obj.IsList() {
			if err := obj.EachListItem(func(item runtime.Object) error {
				u, ok := item.(*unstructured.Unstructured)
				if !ok {
					return fmt.Errorf("unexpected list item %T", item)
				}
				objects = append(objects, u)
				return nil
			}); err != nil {
				return nil, err
			}
			continue
		}
		objects = append(objects, obj)
	}
}

// ListByNamespace serves kubernetes/list_resources_by_namespace.
func (c *Cluster) ListByNamespace(_ context.Context, req entities.ListResourcesByNamespaceRequest) (map[string]any, error) {
	if req.Namespace == "" {
		return nil, NewValidationError("namespace is required")
	}
	return c.list(req.APIVersion, req.Kind, req.Namespace, req.LabelSelector, req.FieldSelector)
}

// ListAll serves kubernetes/list_resources_all.
func (c *Cluster) ListAll(_ context.Context, req entities.ListAllResourcesRequest) (map[string]any, error) {
	return c.list(req.APIVersion, req.Kind, "", req.LabelSelector, req.FieldSelector)
}

// Get serves kubernetes/get_resource.
func (c *Cluster) Get(_ context.Context, req entities.GetResourceRequest) (map[string]any, error) {
	for _, obj := range c.objects {
		if matchesType(obj, req.APIVersion, req.Kind) && obj.GetName() == req.Name && obj.GetNamespace() == req.Namespace {
			return obj.DeepCopy().Object, nil
		}
	}
	return nil, ErrorResponse{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s %s %q not found", req.APIVersion, req.Kind, qualifiedName(req.Namespace, req.Name)),
		Code:    404,
	}
}

// CanI serves kubernetes/can_i.
func (c *Cluster) CanI(_ context.Context, req entities.SubjectAccessReviewRequest) (authorizationv1.SubjectAccessReviewStatus, error) {
	if c.authorizer == nil {
		return authorizationv1.SubjectAccessReviewStatus{Allowed: false, Reason: "no authorizer configured"}, nil
	}
	allowed, reason := c.authorizer(req)
	return authorizationv1.SubjectAccessReviewStatus{Allowed: allowed, Denied: !allowed, Reason: reason}, nil
}

func (c *Cluster) list(apiVersion, kind, namespace, labelSelector, fieldSelector string) (map[string]any, error) {
	labelSel, err := labels.Parse(labelSelector)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid label selector: %v", err))
	}
	fieldSel, err := fields.ParseSelector(fieldSelector)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid field selector: %v", err))
	}

	var items []any
	for _, obj := range c.sorted() {
		if !matchesType(obj, apiVersion, kind) {
			continue
		}
		if namespace != "" && obj.GetNamespace() != namespace {
			continue
		}
		if !labelSel.Matches(labels.Set(obj.GetLabels())) {
			continue
		}
		if !fieldSel.Matches(fields.Set{"metadata.name": obj.GetName(), "metadata.namespace": obj.GetNamespace()}) {
			continue
		}
		items = append(items, obj.DeepCopy().Object)
	}
	if items == nil {
		items = []any{}
	}

	return map[string]any{
		"apiVersion": apiVersion,
		"kind":       kind + "List",
		"metadata":   map[string]any{},
		"items":      items,
	}, nil
}

// sorted returns the objects ordered by namespace, then name.
func (c *Cluster) sorted() []*unstructured.Unstructured {
	out := append([]*unstructured.Unstructured(nil), c.objects...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GetNamespace() != out[j].GetNamespace() {
			return out[i].GetNamespace() < out[j].GetNamespace()
		}
		return out[i].GetName() < out[j].GetName()
	})
	return out
}

// Bundle returns the handlers of the kubewarden kubernetes capabilities and
// of the legacy cluster context calls.
func (c *Cluster) Bundle() HostFuncBundle {
	legacy := func(apiVersion, kind string) ByteHandler {
		return func(context.Context, []byte) ([]byte, error) {
			list, err := c.list(apiVersion, kind, "", "", "")
			if err != nil {
				return nil, err
			}
			return marshal(list)
		}
	}

	return &staticBundle{
		handlers: map[string]ByteHandler{
			ListResourcesByNamespaceCapability.String(): NewJSONHandler(c.ListByNamespace),
			ListAllResourcesCapability.String():         NewJSONHandler(c.ListAll),
			GetResourceCapability.String():              NewJSONHandler(c.Get),
			CanICapability.String():                     NewJSONHandler(c.CanI),

			Key(LegacyBinding, "namespaces", "list"): legacy("v1", "Namespace"),
			Key(LegacyBinding, "services", "list"):   legacy("v1", "Service"),
			Key(LegacyBinding, "ingresses", "list"):  legacy("networking.k8s.io/v1", "Ingress"),
		},
	}
}

func matchesType(obj *unstructured.Unstructured, apiVersion, kind string) bool {
	return obj.GetAPIVersion() == apiVersion && obj.GetKind() == kind
}

func qualifiedName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, NewInternalError(err.Error())
	}
	return data, nil
}
