package hostfuncs

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// HostFuncBundle is a pre-configured set of related host functions.
// Bundles allow registering multiple handlers at once for common use cases.
type HostFuncBundle interface {
	// Handlers returns a map of registry keys to ByteHandler functions.
	Handlers() map[string]ByteHandler
}

// staticBundle implements HostFuncBundle with a fixed set of handlers.
type staticBundle struct {
	handlers map[string]ByteHandler
}

func (b *staticBundle) Handlers() map[string]ByteHandler {
	return b.handlers
}

// DNSLookupHostCapability is served by NetBundle.
var DNSLookupHostCapability = entities.NewCapability("net", "dns_lookup_host").WithVersion(1)

// NetBundle returns a bundle resolving host names with the system resolver:
// net/v1/dns_lookup_host.
func NetBundle(opts ...DNSOption) HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			DNSLookupHostCapability.String(): NewJSONHandler(func(ctx context.Context, host string) (entities.LookupHostResponse, error) {
				return LookupHost(ctx, host, opts...)
			}),
		},
	}
}

// LogBundle returns a bundle storing guest log events in sink: tracing/log.
func LogBundle(sink *LogSink) HostFuncBundle {
	return &staticBundle{
		handlers: map[string]ByteHandler{
			LogCapability.String(): sink.Handle,
		},
	}
}

// ResponsesBundle answers fixed replies, keyed like the registry. A value is
// sent as is when it is []byte or json.RawMessage, returned as an error when it
// is an ErrorResponse, and JSON encoded otherwise.
func ResponsesBundle(responses map[string]any) (HostFuncBundle, error) {
	handlers := make(map[string]ByteHandler, len(responses))
	for key, value := range responses {
		switch v := value.(type) {
		case ErrorResponse:
			handlers[key] = FailingHandler(v)
		case []byte:
			handlers[key] = StaticHandler(v)
		case json.RawMessage:
			handlers[key] = StaticHandler(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode response for %s: %w", key, err)
			}
			handlers[key] = StaticHandler(data)
		}
	}
	return &staticBundle{handlers: handlers}, nil
}

// compositeBundle combines multiple bundles into one.
type compositeBundle struct {
	bundles []HostFuncBundle
}

func (b *compositeBundle) Handlers() map[string]ByteHandler {
	result := make(map[string]ByteHandler)
	for _, bundle := range b.bundles {
		for name, handler := range bundle.Handlers() {
			result[name] = handler
		}
	}
	return result
}

// Combine merges bundles. Later bundles override earlier ones on the same key.
func Combine(bundles ...HostFuncBundle) HostFuncBundle {
	return &compositeBundle{bundles: bundles}
}

// WithBundle registers all handlers from a bundle.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		for name, handler := range bundle.Handlers() {
			if err := b.addHandler(name, handler); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}
