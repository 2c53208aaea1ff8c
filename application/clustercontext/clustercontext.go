// Package clustercontext reads cluster state through the legacy "kubernetes"
// binding: each resource kind is a namespace of its own with a single "list"
// operation that returns every object of that kind.
//
// New policies should prefer the kubernetes capabilities of the capabilities
// package, which support selectors and single object lookups.
package clustercontext

import (
	"context"
	stdErrors "errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"

	"github.com/kubewarden/policy-sdk-go/application/capabilities"
	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// Binding is the waPC binding of the legacy cluster context calls.
const Binding = "kubernetes"

// Legacy list calls.
var (
	NamespacesList = entities.NewCapability("namespaces", "list")
	IngressesList  = entities.NewCapability("ingresses", "list")
	ServicesList   = entities.NewCapability("services", "list")
)

// ErrNotFound is returned when a named object does not exist.
var ErrNotFound = stdErrors.New("not found")

// NamespaceFilter restricts namespaced results.
type NamespaceFilter struct {
	namespace string
}

// AllNamespaces matches objects of every namespace.
var AllNamespaces = NamespaceFilter{}

// InNamespace matches objects of one namespace.
func InNamespace(namespace string) NamespaceFilter {
	return NamespaceFilter{namespace: namespace}
}

// Matches reports whether an object in namespace passes the filter.
func (f NamespaceFilter) Matches(namespace string) bool {
	return f.namespace == "" || f.namespace == namespace
}

// ClusterContext serves the legacy cluster context calls.
type ClusterContext struct {
	client *capabilities.Client
}

// New creates a ClusterContext over a capability client.
func New(client *capabilities.Client) *ClusterContext {
	return &ClusterContext{client: client}
}

// Namespaces returns every namespace of the cluster.
func (c *ClusterContext) Namespaces(ctx context.Context) ([]corev1.Namespace, error) {
	list, err := list[corev1.NamespaceList](ctx, c.client, NamespacesList)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Namespace returns the namespace called name, or ErrNotFound.
func (c *ClusterContext) Namespace(ctx context.Context, name string) (*corev1.Namespace, error) {
	namespaces, err := c.Namespaces(ctx)
	if err != nil {
		return nil, err
	}
	for i := range namespaces {
		if namespaces[i].Name == name {
			return &namespaces[i], nil
		}
	}
	return nil, fmt.Errorf("namespace %q: %w", name, ErrNotFound)
}

// Ingresses returns the ingresses passing filter.
func (c *ClusterContext) Ingresses(ctx context.Context, filter NamespaceFilter) ([]networkingv1.Ingress, error) {
	list, err := list[networkingv1.IngressList](ctx, c.client, IngressesList)
	if err != nil {
		return nil, err
	}
	out := make([]networkingv1.Ingress, 0, len(list.Items))
	for _, ing := range list.Items {
		if filter.Matches(ing.Namespace) {
			out = append(out, ing)
		}
	}
	return out, nil
}

// Ingress returns the ingresses called name passing filter. A broad filter may
// match one ingress per namespace.
func (c *ClusterContext) Ingress(ctx context.Context, filter NamespaceFilter, name string) ([]networkingv1.Ingress, error) {
	ingresses, err := c.Ingresses(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := ingresses[:0]
	for _, ing := range ingresses {
		if ing.Name == name {
			out = append(out, ing)
		}
	}
	return out, nil
}

// Services returns the services passing filter.
func (c *ClusterContext) Services(ctx context.Context, filter NamespaceFilter) ([]corev1.Service, error) {
	list, err := list[corev1.ServiceList](ctx, c.client, ServicesList)
	if err != nil {
		return nil, err
	}
	out := make([]corev1.Service, 0, len(list.Items))
	for _, svc := range list.Items {
		if filter.Matches(svc.Namespace) {
			out = append(out, svc)
		}
	}
	return out, nil
}

// Service returns the services called name passing filter.
func (c *ClusterContext) Service(ctx context.Context, filter NamespaceFilter, name string) ([]corev1.Service, error) {
	services, err := c.Services(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := services[:0]
	for _, svc := range services {
		if svc.Name == name {
			out = append(out, svc)
		}
	}
	return out, nil
}

func list[L any](ctx context.Context, client *capabilities.Client, call entities.Capability) (L, error) {
	var zero L
	reply, err := client.CallBinding(ctx, Binding, call, nil)
	if err != nil {
		return zero, err
	}
	decoded, err := wireformat.Decode[L](reply)
	if err != nil {
		var decodeErr *errors.DecodeError
		if stdErrors.As(err, &decodeErr) {
			decodeErr.Capability = Binding + "/" + call.String()
		}
		return zero, err
	}
	return decoded, nil
}
