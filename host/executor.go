package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/hostfuncs"
	kwwazero "github.com/kubewarden/policy-sdk-go/infrastructure/wazero"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// Names of the policy exports.
const (
	ExportValidate         = "validate"
	ExportValidateSettings = "validate_settings"
	ExportProtocolVersion  = "protocol_version"
)

// Executor owns a wazero runtime with the host interface installed.
// Policies compiled by one Executor can be instantiated any number of times.
type Executor struct {
	runtime          wazero.Runtime
	registry         *hostfuncs.HandlerRegistry
	logger           *slog.Logger
	memoryLimitPages uint32
	assignUIDs       bool
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{logger: slog.Default(), assignUIDs: true}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		reg, err := hostfuncs.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		e.registry = reg
	}

	cfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithCustomSections(true)
	if e.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}
	e.runtime = rt

	if err := kwwazero.RegisterWithRuntime(ctx, rt, e.registry, kwwazero.WithLogger(e.logger)); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return e, nil
}

// Close releases resources held by the executor and all its instances.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Policy is a compiled policy module.
type Policy struct {
	executor *Executor
	compiled wazero.CompiledModule
	name     string
}

// Compile compiles a policy module. name is used in logs and host call
// contexts; it may be empty.
func (e *Executor) Compile(ctx context.Context, name string, wasmBytes []byte) (*Policy, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}
	return &Policy{executor: e, compiled: compiled, name: name}, nil
}

// Exports lists the functions the compiled module exports.
func (p *Policy) Exports() []string {
	defs := p.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

// Instantiate creates a fresh instance of the policy. Instances are not safe
// for concurrent use; create one per goroutine.
func (p *Policy) Instantiate(ctx context.Context) (*PolicyInstance, error) {
	// An empty module name lets several instances of the same policy coexist.
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")

	mod, err := p.executor.runtime.InstantiateModule(kwwazero.WithPolicyName(ctx, p.name), p.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	return &PolicyInstance{module: mod, name: p.name, logger: p.executor.logger, assignUIDs: p.executor.assignUIDs}, nil
}

// LoadPolicy compiles and instantiates a policy module.
func (e *Executor) LoadPolicy(ctx context.Context, wasmBytes []byte) (*PolicyInstance, error) {
	p, err := e.Compile(ctx, "", wasmBytes)
	if err != nil {
		return nil, err
	}
	return p.Instantiate(ctx)
}

// PolicyInstance represents an instantiated policy.
type PolicyInstance struct {
	module     api.Module
	name       string
	logger     *slog.Logger
	assignUIDs bool
}

// Close releases the instance.
func (p *PolicyInstance) Close(ctx context.Context) error {
	return p.module.Close(ctx)
}

// ProtocolVersion calls the "protocol_version" export.
func (p *PolicyInstance) ProtocolVersion(ctx context.Context) (entities.ProtocolVersion, error) {
	f := p.module.ExportedFunction(ExportProtocolVersion)
	if f == nil {
		return entities.ProtocolUnknown, fmt.Errorf("export %q not found", ExportProtocolVersion)
	}
	results, err := f.Call(p.context(ctx))
	if err != nil {
		return entities.ProtocolUnknown, fmt.Errorf("%s: %w", ExportProtocolVersion, err)
	}
	if len(results) == 0 {
		return entities.ProtocolUnknown, fmt.Errorf("%s returned no value", ExportProtocolVersion)
	}
	v := entities.ProtocolVersion(uint32(results[0])) //nolint:gosec // G115: i32 result
	if !v.Known() {
		return v, fmt.Errorf("policy speaks unsupported protocol version %d", uint32(v))
	}
	return v, nil
}

// Validate calls the "validate" export with req and decodes the response.
func (p *PolicyInstance) Validate(ctx context.Context, req *entities.ValidationRequest) (*entities.ValidationResponse, error) {
	if p.assignUIDs && req.Request.UID == "" {
		req.Request.UID = types.UID(uuid.NewString())
	}
	payload, err := wireformat.EncodeValidationRequest(req)
	if err != nil {
		return nil, err
	}
	raw, err := p.ValidateRaw(ctx, payload)
	if err != nil {
		return nil, err
	}
	return wireformat.DecodeValidationResponse(raw)
}

// ValidateRaw calls the "validate" export with an already encoded request.
func (p *PolicyInstance) ValidateRaw(ctx context.Context, payload []byte) ([]byte, error) {
	return p.callRaw(p.context(ctx), ExportValidate, payload)
}

// ValidateSettings calls the "validate_settings" export. Empty settings are
// sent as null.
func (p *PolicyInstance) ValidateSettings(ctx context.Context, settings []byte) (*entities.SettingsValidationResponse, error) {
	if len(settings) == 0 {
		settings = []byte("null")
	}
	raw, err := p.callRaw(p.context(ctx), ExportValidateSettings, settings)
	if err != nil {
		return nil, err
	}
	return wireformat.DecodeSettingsResponse(raw)
}

func (p *PolicyInstance) context(ctx context.Context) context.Context {
	if p.name == "" {
		return ctx
	}
	return kwwazero.WithPolicyName(ctx, p.name)
}
