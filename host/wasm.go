package host

import (
	"context"
	"fmt"

	kwwazero "github.com/kubewarden/policy-sdk-go/infrastructure/wazero"
	"github.com/kubewarden/policy-sdk-go/internal/abi"
)

// callRaw copies input into guest memory, calls export(ptr, len) and returns
// a copy of the packed result buffer. Both buffers are handed back to the
// guest's "deallocate" export.
func (p *PolicyInstance) callRaw(ctx context.Context, name string, input []byte) ([]byte, error) {
	f := p.module.ExportedFunction(name)
	if f == nil {
		return nil, fmt.Errorf("export %q not found", name)
	}

	ptr, err := kwwazero.WriteToGuest(ctx, p.module, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer p.deallocate(ctx, ptr, uint32(len(input))) //nolint:gosec // G115: bounded by guest memory

	results, err := f.Call(ctx, uint64(ptr), uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("%s trapped: %w", name, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s returned no value", name)
	}
	return p.takeResult(ctx, name, results[0])
}

// takeResult copies the buffer a packed result points at and frees it.
func (p *PolicyInstance) takeResult(ctx context.Context, name string, packed uint64) ([]byte, error) {
	ptr := uint32(packed >> abi.PtrHighBits) //nolint:gosec // G115: Packed format stores 32-bit values
	length := uint32(packed)                 //nolint:gosec // G115: Packed format stores 32-bit values
	if ptr == 0 || length == 0 {
		return nil, fmt.Errorf("%s returned an empty response", name)
	}
	data, ok := p.module.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("%s response 0x%x+%d is out of guest memory range", name, ptr, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	p.deallocate(ctx, ptr, length)
	return out, nil
}

func (p *PolicyInstance) deallocate(ctx context.Context, ptr, length uint32) {
	if ptr == 0 {
		return
	}
	f := p.module.ExportedFunction("deallocate")
	if f == nil {
		return
	}
	if _, err := f.Call(ctx, uint64(ptr), uint64(length)); err != nil {
		p.logger.DebugContext(ctx, "host: guest deallocate failed", "policy", p.name, "error", err)
	}
}
