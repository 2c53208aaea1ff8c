package ports

import "context"

// HostCaller is the single foreign-call primitive the sandbox exposes.
// Every host capability is reached through it.
type HostCaller interface {
	// HostCall invokes operation in namespace of binding with an encoded payload
	// and returns the host's encoded reply.
	HostCall(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error)
}

// HostCallFunc adapts a plain function to HostCaller.
type HostCallFunc func(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error)

// HostCall implements HostCaller.
func (f HostCallFunc) HostCall(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
	return f(ctx, binding, namespace, operation, payload)
}
