package policy

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/kubewarden/policy-sdk-go/application/capabilities"
	"github.com/kubewarden/policy-sdk-go/application/clustercontext"
	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
	"github.com/kubewarden/policy-sdk-go/internal/wasmcontext"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// Export names the host calls.
const (
	EntrypointValidate         = "validate"
	EntrypointValidateSettings = "validate_settings"
	EntrypointProtocolVersion  = "protocol_version"
)

var (
	// ErrNoValidateFunc is returned by NewRuntime for a Definition without a Validate function.
	ErrNoValidateFunc = stdErrors.New("policy definition has no validate function")

	// ErrUnexpectedMutation is reported when a non-mutating policy returns a mutated object.
	ErrUnexpectedMutation = stdErrors.New("policy is not declared as mutating but returned a mutated object")
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger of the runtime and of the capability client.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSettingsSchema checks settings documents against schema before the
// author's settings function runs.
func WithSettingsSchema(schema ports.DocumentValidator) Option {
	return func(r *Runtime) {
		r.schema = schema
	}
}

// WithCapabilityAllowlist makes the capability client refuse, without a host
// round trip, every capability the metadata does not declare.
func WithCapabilityAllowlist() Option {
	return func(r *Runtime) {
		r.allowlist = true
	}
}

// Runtime serves the exported entry points of one policy.
type Runtime struct {
	def       Definition
	host      ports.HostCaller
	schema    ports.DocumentValidator
	logger    *slog.Logger
	allowlist bool
	caps      *Host
}

// NewRuntime validates def and binds it to host.
func NewRuntime(def Definition, host ports.HostCaller, opts ...Option) (*Runtime, error) {
	if def.Validate == nil {
		return nil, ErrNoValidateFunc
	}
	if def.Metadata.ProtocolVersion == entities.ProtocolUnknown {
		def.Metadata.ProtocolVersion = entities.CurrentProtocolVersion
	}
	if err := def.Metadata.Validate(); err != nil {
		return nil, &errors.ConfigError{Field: "metadata", Err: err}
	}

	r := &Runtime{
		def:    def,
		host:   host,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	clientOpts := []capabilities.ClientOption{capabilities.WithLogger(r.logger)}
	if r.allowlist {
		clientOpts = append(clientOpts, capabilities.WithMetadata(&r.def.Metadata))
	}
	client := capabilities.NewClient(host, clientOpts...)
	r.caps = &Host{
		Client:  client,
		Cluster: clustercontext.New(client),
		Logger:  r.logger,
	}
	return r, nil
}

// Metadata returns a copy of the validated metadata.
func (r *Runtime) Metadata() entities.Metadata {
	return r.def.Metadata
}

// ProtocolVersion returns the protocol version reported to the host.
func (r *Runtime) ProtocolVersion() uint32 {
	return uint32(r.def.Metadata.ProtocolVersion)
}

// Validate serves the validate entry point. It never fails: every problem is
// reported as a rejection.
func (r *Runtime) Validate(raw []byte) []byte {
	return wireformat.EncodeValidationResponse(r.Evaluate(context.Background(), raw))
}

// Evaluate decodes raw and runs the author's validate function, returning the
// outcome the validate entry point would encode.
func (r *Runtime) Evaluate(ctx context.Context, raw []byte) entities.ValidationOutcome {
	req, err := wireformat.DecodeValidationRequest(raw)
	if err != nil {
		r.logger.Debug("sdk: cannot decode validation request", "error", err)
		return entities.NewRejected(errors.CodeDecodeError, err.Error())
	}

	ctx = wasmcontext.WithInvocation(ctx, wasmcontext.Invocation{
		Entrypoint: EntrypointValidate,
		RequestUID: string(req.Request.UID),
		Operation:  string(req.Request.Operation),
		Kind:       req.Request.Kind.Kind,
	})
	wasmcontext.SetCurrentContext(ctx)
	defer wasmcontext.ResetContext()

	outcome, err := r.runValidate(ctx, req)
	if err != nil {
		code := errors.Code(err)
		if code == errors.CodeInternalError {
			r.logger.ErrorContext(ctx, "sdk: policy failed", "error", err)
		} else {
			r.logger.DebugContext(ctx, "sdk: policy returned an error", "error", err, "code", code)
		}
		return entities.NewRejected(code, err.Error())
	}

	outcome = entities.Normalize(outcome)
	switch o := outcome.(type) {
	case nil:
		r.logger.ErrorContext(ctx, "sdk: policy returned no outcome")
		return entities.NewRejected(errors.CodeInternalError, "policy returned no outcome")
	case entities.Mutated:
		if !r.def.Metadata.Mutating {
			r.logger.ErrorContext(ctx, "sdk: unexpected mutation", "error", ErrUnexpectedMutation)
			return entities.NewRejected(errors.CodeInternalError, ErrUnexpectedMutation.Error())
		}
		if o.Object == nil {
			return entities.Accepted{Warnings: o.Warnings, AuditAnnotations: o.AuditAnnotations}
		}
	}
	return outcome
}

func (r *Runtime) runValidate(ctx context.Context, req *entities.ValidationRequest) (outcome entities.ValidationOutcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			r.logger.ErrorContext(ctx, "sdk: policy panic recovered", "panic", rec, "stack", string(stack))
			outcome = nil
			err = &errors.InternalError{Err: fmt.Errorf("policy panic: %v", rec), Stack: stack}
		}
	}()
	return r.def.Validate(ctx, req, r.caps)
}

// ValidateSettings serves the validate_settings entry point. It never fails:
// every problem is reported as invalid settings.
func (r *Runtime) ValidateSettings(raw []byte) []byte {
	return wireformat.EncodeSettingsResponse(r.CheckSettings(context.Background(), raw))
}

// CheckSettings validates a settings document: it must be well formed JSON,
// then it must satisfy the schema, if any, then the author's settings function.
func (r *Runtime) CheckSettings(ctx context.Context, raw []byte) entities.SettingsValidationResponse {
	ctx = wasmcontext.WithInvocation(ctx, wasmcontext.Invocation{Entrypoint: EntrypointValidateSettings})
	wasmcontext.SetCurrentContext(ctx)
	defer wasmcontext.ResetContext()

	document := bytes.TrimSpace(raw)
	if len(document) == 0 {
		document = []byte("null")
	}
	if !wireformat.Valid(document) {
		return entities.SettingsRejected("malformed settings document")
	}

	if r.schema != nil {
		schemaDoc := document
		if bytes.Equal(schemaDoc, []byte("null")) {
			schemaDoc = []byte("{}")
		}
		if err := r.schema.Validate(schemaDoc); err != nil {
			return entities.SettingsRejected(err.Error())
		}
	}

	if r.def.ValidateSettings == nil {
		return entities.SettingsAccepted()
	}
	if err := r.runSettings(ctx, document); err != nil {
		r.logger.DebugContext(ctx, "sdk: settings rejected", "error", err)
		return entities.SettingsRejected(err.Error())
	}
	return entities.SettingsAccepted()
}

func (r *Runtime) runSettings(ctx context.Context, document []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "sdk: settings panic recovered", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("settings validation panicked: %v", rec)
		}
	}()
	return r.def.ValidateSettings(ctx, document)
}
