package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/hostfuncs"
	"github.com/kubewarden/policy-sdk-go/internal/abi"
)

const (
	// DefaultModuleName is the import module policies link against.
	DefaultModuleName = entities.HostBinding

	// HostCallFunction is the name of the single imported function.
	HostCallFunction = "host_call"

	// maxNameSize bounds the binding, namespace and operation strings.
	maxNameSize = 256
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// ModuleName is the host module name (default: "kubewarden").
	ModuleName string

	// MaxRequestSize limits the payload read from guest memory.
	// Default is hostfuncs.DefaultMaxPayloadSize.
	MaxRequestSize uint32

	// Logger receives adapter diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "kubewarden").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum payload size read from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithLogger sets the logger used for adapter diagnostics.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if l != nil {
			c.Logger = l
		}
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     DefaultModuleName,
		MaxRequestSize: hostfuncs.DefaultMaxPayloadSize,
		Logger:         slog.Default(),
	}
}

// RegisterWithRuntime instantiates the host module exporting host_call, backed
// by registry. It must be called before any policy module is instantiated.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	i64 := api.ValueTypeI64
	_, err := runtime.NewHostModuleBuilder(cfg.ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = handleHostCall(ctx, mod, stack, registry, &cfg)
		}), []api.ValueType{i64, i64, i64, i64}, []api.ValueType{i64}).
		WithParameterNames("binding", "namespace", "operation", "payload").
		Export(HostCallFunction).
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("failed to instantiate host module %q: %w", cfg.ModuleName, err)
	}
	return nil
}

// handleHostCall serves one host_call. It never traps: every failure is
// reported to the guest as a flagged error document.
func handleHostCall(ctx context.Context, mod api.Module, stack []uint64, registry *hostfuncs.HandlerRegistry, cfg *AdapterConfig) uint64 {
	policy := PolicyName(ctx, mod)

	var names [3]string
	for i := range names {
		b, err := readBuffer(mod, stack[i], maxNameSize)
		if err != nil {
			cfg.Logger.ErrorContext(ctx, "wazero: invalid host_call argument", "policy", policy, "error", err)
			return writeError(ctx, mod, cfg, hostfuncs.NewValidationError(err.Error()))
		}
		names[i] = string(b)
	}
	call := hostfuncs.Call{Binding: names[0], Namespace: names[1], Operation: names[2]}

	payload, err := readBuffer(mod, stack[3], cfg.MaxRequestSize)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: invalid host_call payload", "policy", policy, "call", call.Key(), "error", err)
		return writeError(ctx, mod, cfg, hostfuncs.NewValidationError(err.Error()))
	}

	reply, isError := registry.Dispatch(WithPolicyName(ctx, policy), call, payload)
	if isError {
		cfg.Logger.DebugContext(ctx, "wazero: host_call failed", "policy", policy, "call", call.Key(), "reply", string(reply))
		return abi.PackError(writeReply(ctx, mod, cfg, reply))
	}
	return writeReply(ctx, mod, cfg, reply)
}

// readBuffer copies a packed ptr/len buffer out of guest memory.
func readBuffer(mod api.Module, packed uint64, limit uint32) ([]byte, error) {
	ptr, length := unpackPtrLen(packed)
	if length == 0 {
		return nil, nil
	}
	if length > limit {
		return nil, fmt.Errorf("buffer of %d bytes exceeds the limit of %d", length, limit)
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("buffer 0x%x+%d is out of guest memory range", ptr, length)
	}
	// Read returns a view; the guest may reuse that memory before the handler is done.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// writeReply allocates guest memory for data and returns its packed ptr/len,
// or 0 when the guest could not take it.
func writeReply(ctx context.Context, mod api.Module, cfg *AdapterConfig, data []byte) uint64 {
	ptr, err := WriteToGuest(ctx, mod, data)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: failed to write reply to guest", "error", err)
		return 0
	}
	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: bounded by guest memory
}

func writeError(ctx context.Context, mod api.Module, cfg *AdapterConfig, errResp hostfuncs.ErrorResponse) uint64 {
	return abi.PackError(writeReply(ctx, mod, cfg, errResp.ToJSON()))
}

// WriteToGuest copies data into a buffer obtained from the guest's "allocate"
// export. Empty data is not written and yields pointer 0.
func WriteToGuest(ctx context.Context, mod api.Module, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		return 0, fmt.Errorf("guest module does not export 'allocate'")
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("guest allocate failed: %w", err)
	}
	if len(results) == 0 || results[0] == 0 {
		return 0, fmt.Errorf("guest allocate returned no buffer")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("buffer 0x%x+%d is out of guest memory range", ptr, len(data))
	}
	return ptr, nil
}

// packPtrLen packs a pointer and length into a single i64.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << abi.PtrHighBits) | uint64(length)
}

// unpackPtrLen unpacks a packed i64, ignoring the error flag bit.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	packed, _ = abi.SplitResult(packed)
	ptr = uint32(packed >> abi.PtrHighBits) //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF)    //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}
