package policy

import (
	stdErrors "errors"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/infrastructure/wasm"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// ErrNotRegistered is reported by the exports when main never called Register.
var ErrNotRegistered = stdErrors.New("policy not registered")

var (
	registered  *Runtime
	registerErr = ErrNotRegistered
)

// Register binds def to the module's exported entry points, talking to the
// host through the WASM host import. It is meant to be called from main.
// A definition that fails validation is remembered: every call to validate
// is then rejected with code internal-error and the reason.
func Register(def Definition, opts ...Option) error {
	r, err := NewRuntime(def, wasm.NewHostCaller(), opts...)
	registered, registerErr = r, err
	return err
}

// Registered returns the runtime installed by Register.
func Registered() (*Runtime, error) {
	return registered, registerErr
}

func serveValidate(raw []byte) []byte {
	r, err := Registered()
	if err != nil {
		return wireformat.EncodeValidationResponse(entities.NewRejected(errors.CodeInternalError, err.Error()))
	}
	return r.Validate(raw)
}

func serveValidateSettings(raw []byte) []byte {
	r, err := Registered()
	if err != nil {
		return wireformat.EncodeSettingsResponse(entities.SettingsRejected(err.Error()))
	}
	return r.ValidateSettings(raw)
}

func serveProtocolVersion() uint32 {
	r, err := Registered()
	if err != nil {
		return uint32(entities.CurrentProtocolVersion)
	}
	return r.ProtocolVersion()
}
