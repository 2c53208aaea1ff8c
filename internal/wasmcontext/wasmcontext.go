// Package wasmcontext carries the per-invocation context of a policy module.
// The runtime shim sets it when the host calls an exported function; the log
// handler and the capability client read it.
package wasmcontext

import (
	stdcontext "context"
	"sync"
)

// contextKey is a type alias for context value keys to avoid collisions.
type contextKey string

// RequestUIDKey is the context key for the admission request UID.
const RequestUIDKey contextKey = "request_uid"

// invocationKey holds the Invocation attached by WithInvocation.
const invocationKey contextKey = "invocation"

// Invocation describes the export call currently being served.
type Invocation struct {
	// Entrypoint is the export the host called ("validate", "validate_settings").
	Entrypoint string
	// RequestUID is the admission request UID, empty for settings validation.
	RequestUID string
	// Operation is the admission operation (CREATE, UPDATE, ...).
	Operation string
	// Kind is the kind of the object under admission.
	Kind string
}

// contextStore holds the current context for the module instance.
// Since WASM is single-threaded, we can use a simple global variable.
var contextStore = struct {
	ctx stdcontext.Context
	sync.RWMutex
}{
	ctx: stdcontext.Background(),
}

// SetCurrentContext sets the current execution context.
func SetCurrentContext(ctx stdcontext.Context) {
	contextStore.Lock()
	defer contextStore.Unlock()
	contextStore.ctx = ctx
}

// GetCurrentContext returns the current execution context, or
// context.Background() when none has been set.
func GetCurrentContext() stdcontext.Context {
	contextStore.RLock()
	defer contextStore.RUnlock()
	if contextStore.ctx == nil {
		return stdcontext.Background()
	}
	return contextStore.ctx
}

// ResetContext resets the global context to background.
// It should be called (usually via defer) after an invocation completes.
func ResetContext() {
	SetCurrentContext(stdcontext.Background())
}

// WithInvocation returns a child of parent carrying inv. A nil parent means
// context.Background().
func WithInvocation(parent stdcontext.Context, inv Invocation) stdcontext.Context {
	if parent == nil {
		parent = stdcontext.Background()
	}
	ctx := stdcontext.WithValue(parent, invocationKey, inv)
	if inv.RequestUID != "" {
		ctx = stdcontext.WithValue(ctx, RequestUIDKey, inv.RequestUID)
	}
	return ctx
}

// InvocationFrom returns the invocation attached to ctx.
func InvocationFrom(ctx stdcontext.Context) (Invocation, bool) {
	if ctx == nil {
		return Invocation{}, false
	}
	inv, ok := ctx.Value(invocationKey).(Invocation)
	return inv, ok
}

// Fields returns the invocation as flat key/value pairs for log events.
// Empty values are omitted.
func Fields(ctx stdcontext.Context) map[string]string {
	inv, ok := InvocationFrom(ctx)
	if !ok {
		return nil
	}
	fields := make(map[string]string, 4)
	for key, value := range map[string]string{
		"entrypoint":  inv.Entrypoint,
		"request_uid": inv.RequestUID,
		"operation":   inv.Operation,
		"kind":        inv.Kind,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
