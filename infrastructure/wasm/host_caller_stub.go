//go:build !wasip1

package wasm

import (
	"context"
	stdErrors "errors"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
)

// ErrNativeBuild is wrapped by every call made outside a WASM module.
var ErrNativeBuild = stdErrors.New("wasm host not available in native build")

var _ ports.HostCaller = (*HostCaller)(nil)

// HostCaller stub for native builds. Tests use a fake host instead.
type HostCaller struct{}

func NewHostCaller() *HostCaller {
	return &HostCaller{}
}

func (c *HostCaller) HostCall(_ context.Context, _, namespace, operation string, _ []byte) ([]byte, error) {
	return nil, &errors.HostError{Capability: namespace + "/" + operation, Err: ErrNativeBuild}
}
