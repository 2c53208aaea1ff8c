package hostfuncs

import (
	"context"
)

// HostContext wraps a standard context.Context with the capability call being
// served. Middleware can store request-scoped values on it without polluting
// the standard context.
type HostContext interface {
	context.Context

	// Call returns the capability call being served.
	Call() Call

	// FunctionName returns the registry key of the call.
	FunctionName() string

	// SetValue stores a request-scoped value. Unlike context.WithValue,
	// this mutates the existing HostContext.
	SetValue(key, value any)

	// GetValue retrieves a request-scoped value set by SetValue.
	GetValue(key any) (value any, ok bool)
}

// hostContext is the concrete implementation of HostContext.
type hostContext struct {
	context.Context
	values map[any]any
	call   Call
}

// NewHostContext creates a new HostContext wrapping the given context.
func NewHostContext(ctx context.Context, call Call) HostContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &hostContext{
		Context: ctx,
		call:    call,
		values:  make(map[any]any),
	}
}

func (c *hostContext) Call() Call {
	return c.call
}

func (c *hostContext) FunctionName() string {
	return c.call.Key()
}

func (c *hostContext) SetValue(key, value any) {
	c.values[key] = value
}

func (c *hostContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// HostContextFrom returns ctx when it already is a HostContext for call, and
// wraps it otherwise.
func HostContextFrom(ctx context.Context, call Call) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.Call() == call {
		return hc
	}
	return NewHostContext(ctx, call)
}
