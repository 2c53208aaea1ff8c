// Package wazero registers the policy host interface with a wazero runtime.
//
// A policy imports a single function, kubewarden.host_call, taking the packed
// binding, namespace, operation and payload buffers and returning a packed
// reply. This package implements that import on top of a
// hostfuncs.HandlerRegistry:
//
//   - it reads the four argument buffers from guest memory
//   - it dispatches the call to the registry
//   - it allocates the reply in the guest with the "allocate" export
//   - it sets abi.ErrorFlag on the result when the reply is an error document
//
// # Basic Usage
//
//	registry, err := hostfuncs.NewRegistry(
//	    hostfuncs.WithBundle(hostfuncs.NetBundle()),
//	)
//	if err != nil {
//	    return err
//	}
//
//	runtime := wazero.NewRuntime(ctx)
//	err = kwwazero.RegisterWithRuntime(ctx, runtime, registry)
package wazero
