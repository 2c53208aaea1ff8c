//go:build wasip1

package wasm

import (
	"context"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
	"github.com/kubewarden/policy-sdk-go/internal/abi"
)

// Compile-time interface compliance check
var _ ports.HostCaller = (*HostCaller)(nil)

// HostCaller implements ports.HostCaller over the kubewarden.host_call import.
type HostCaller struct{}

// NewHostCaller creates the host call adapter.
func NewHostCaller() *HostCaller {
	return &HostCaller{}
}

// HostCall copies the arguments into guest memory, calls the host and takes
// ownership of the reply buffer. An error reply is returned as a
// *errors.HostError whose Detail is the raw host payload.
func (c *HostCaller) HostCall(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bindingPacked := abi.PtrFromBytes([]byte(binding))
	namespacePacked := abi.PtrFromBytes([]byte(namespace))
	operationPacked := abi.PtrFromBytes([]byte(operation))
	payloadPacked := abi.PtrFromBytes(payload)
	defer func() {
		abi.DeallocatePacked(bindingPacked)
		abi.DeallocatePacked(namespacePacked)
		abi.DeallocatePacked(operationPacked)
		abi.DeallocatePacked(payloadPacked)
	}()

	result := host_call(bindingPacked, namespacePacked, operationPacked, payloadPacked)

	packed, isError := abi.SplitResult(result)
	reply := abi.TakeBytes(packed) // Free memory on Guest side (allocated by Host for result)
	if isError {
		return nil, &errors.HostError{Detail: string(reply)}
	}
	return reply, nil
}
