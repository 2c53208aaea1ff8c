package hostfuncs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
)

// DefaultMaxPayloadSize limits the size of incoming payloads (1MB).
// This prevents a misbehaving module from making the host buffer huge requests.
const DefaultMaxPayloadSize = 1 * 1024 * 1024

// Call identifies one capability call.
type Call struct {
	Binding   string
	Namespace string
	Operation string
}

// Key returns the registry key of the call: "namespace/operation" on the
// kubewarden binding, "binding:namespace/operation" on any other.
func (c Call) Key() string {
	return Key(c.Binding, c.Namespace, c.Operation)
}

// Capability returns the call as a capability name.
func (c Call) Capability() entities.Capability {
	return entities.NewCapability(c.Namespace, c.Operation)
}

// Key builds the registry key of a call.
func Key(binding, namespace, operation string) string {
	if binding == "" || binding == entities.HostBinding {
		return namespace + "/" + operation
	}
	return binding + ":" + namespace + "/" + operation
}

// ParseKey splits a registry key back into a Call.
func ParseKey(key string) (Call, bool) {
	call := Call{Binding: entities.HostBinding}
	if binding, rest, found := strings.Cut(key, ":"); found {
		call.Binding, key = binding, rest
	}
	namespace, operation, found := strings.Cut(key, "/")
	if !found || namespace == "" || operation == "" || call.Binding == "" {
		return Call{}, false
	}
	call.Namespace, call.Operation = namespace, operation
	return call, true
}

var _ ports.HostCaller = (*HandlerRegistry)(nil)

// HandlerRegistry is an immutable collection of capability handlers.
// Once created via NewRegistry, handlers cannot be added or removed.
// This ensures thread safety and lock-free lookups during execution.
type HandlerRegistry struct {
	handlers       map[string]ByteHandler
	names          []string // sorted for consistent iteration
	maxPayloadSize int
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	handlers       map[string]ByteHandler
	middleware     []Middleware
	errors         []error
	maxPayloadSize int
}

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// NewRegistry creates an immutable HandlerRegistry with the given options.
// Returns an error if any call is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware()),
//	    WithBundle(NetBundle()),
//	    WithByteHandler("oci/v1/manifest_digest", handler),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{
		handlers:       make(map[string]ByteHandler),
		maxPayloadSize: DefaultMaxPayloadSize,
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, stdErrors.Join(b.errors...)
	}

	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	// Apply middleware in reverse order so the first middleware wraps outermost.
	wrappedHandlers := make(map[string]ByteHandler, len(b.handlers))
	for name, handler := range b.handlers {
		wrapped := handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			wrapped = b.middleware[i](wrapped)
		}
		wrappedHandlers[name] = wrapped
	}

	return &HandlerRegistry{
		handlers:       wrappedHandlers,
		names:          names,
		maxPayloadSize: b.maxPayloadSize,
	}, nil
}

// Dispatch serves one call. The boolean reports whether the reply is an
// ErrorResponse document, i.e. whether the host must set the error flag.
func (r *HandlerRegistry) Dispatch(ctx context.Context, call Call, payload []byte) ([]byte, bool) {
	key := call.Key()
	handler, ok := r.handlers[key]
	if !ok {
		return NewNotFoundError(key).ToJSON(), true
	}
	if r.maxPayloadSize > 0 && len(payload) > r.maxPayloadSize {
		return NewValidationError(fmt.Sprintf("payload of %d bytes exceeds the limit of %d", len(payload), r.maxPayloadSize)).ToJSON(), true
	}

	reply, err := handler(HostContextFrom(ctx, call), payload)
	if err != nil {
		return errorPayload(err), true
	}
	return reply, false
}

// HostCall implements ports.HostCaller, so a registry can stand in for the
// host when policy code runs natively. Error replies are returned the way the
// WASM host caller returns them: as *errors.HostError carrying the document.
func (r *HandlerRegistry) HostCall(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
	reply, isError := r.Dispatch(ctx, Call{Binding: binding, Namespace: namespace, Operation: operation}, payload)
	if isError {
		return nil, &errors.HostError{Detail: string(reply)}
	}
	return reply, nil
}

// Has returns true if a handler is registered for key.
func (r *HandlerRegistry) Has(key string) bool {
	_, ok := r.handlers[key]
	return ok
}

// Names returns a sorted list of all registered keys.
func (r *HandlerRegistry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

// errorPayload turns a handler error into an ErrorResponse document.
func errorPayload(err error) []byte {
	var resp ErrorResponse
	switch {
	case stdErrors.As(err, &resp):
	case stdErrors.Is(err, context.DeadlineExceeded), stdErrors.Is(err, errors.ErrTimeout):
		resp = NewTimeoutError(err.Error())
	case stdErrors.Is(err, errors.ErrNotGranted):
		resp = NewNotGrantedError(err.Error())
	default:
		resp = NewInternalError(err.Error())
	}
	return resp.ToJSON()
}

// addHandler registers a handler under key.
// Returns an error if the key is malformed or already registered.
func (b *registryBuilder) addHandler(key string, handler ByteHandler) error {
	if key == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if _, ok := ParseKey(key); !ok {
		return fmt.Errorf("malformed handler name %q, want namespace/operation", key)
	}
	if _, exists := b.handlers[key]; exists {
		return fmt.Errorf("duplicate handler name: %q", key)
	}
	b.handlers[key] = handler
	return nil
}

// WithByteHandler registers a raw ByteHandler under key.
// Use WithHandler for type-safe registration with automatic JSON handling.
func WithByteHandler(key string, handler ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(key, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithCapability registers a handler for a capability on the kubewarden binding.
func WithCapability(capability entities.Capability, handler ByteHandler) RegistryOption {
	return WithByteHandler(capability.String(), handler)
}

// WithHandler registers a typed host function with automatic JSON handling.
//
// Example usage:
//
//	WithHandler("oci/v1/manifest_digest", func(ctx context.Context, image string) (entities.ManifestDigestResponse, error) {
//	    return entities.ManifestDigestResponse{Digest: digests[image]}, nil
//	})
func WithHandler[Req any, Resp any](key string, fn HostFunc[Req, Resp]) RegistryOption {
	return WithByteHandler(key, NewJSONHandler(fn))
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// WithMaxPayloadSize sets the payload size limit. Zero or less disables it.
func WithMaxPayloadSize(n int) RegistryOption {
	return func(b *registryBuilder) {
		b.maxPayloadSize = n
	}
}
