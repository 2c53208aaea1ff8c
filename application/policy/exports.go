//go:build wasip1

package policy

import (
	"fmt"
	"log/slog"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/internal/abi"
	_ "github.com/kubewarden/policy-sdk-go/log" // Initialize WASM logging handler
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// The host writes the input into memory obtained from allocate and hands the
// ownership over; the output buffer is released by the host via deallocate.

//go:wasmexport validate
func _validate(ptr, length uint32) uint64 {
	return handleExportedCall(ptr, length, serveValidate, func(msg string) []byte {
		return wireformat.EncodeValidationResponse(entities.NewRejected(errors.CodeInternalError, msg))
	})
}

//go:wasmexport validate_settings
func _validateSettings(ptr, length uint32) uint64 {
	return handleExportedCall(ptr, length, serveValidateSettings, func(msg string) []byte {
		return wireformat.EncodeSettingsResponse(entities.SettingsRejected(msg))
	})
}

//go:wasmexport protocol_version
func _protocolVersion() uint32 {
	return serveProtocolVersion()
}

// handleExportedCall moves the input out of guest memory, serves it and packs
// the answer. A panic escaping serve still produces an answer built by fallback.
func handleExportedCall(ptr, length uint32, serve func([]byte) []byte, fallback func(string) []byte) (packedResult uint64) {
	defer func() {
		if r := recover(); r != nil {
			abi.FreeAllTracked()
			msg := fmt.Sprintf("sdk panic: %v", r)
			slog.Error("sdk: panic recovered in export", "error", msg)
			packedResult = abi.PtrFromBytes(fallback(msg))
		}
	}()

	var input []byte
	if length > 0 {
		input = abi.TakeBytes(abi.PackPtrLen(ptr, length))
	}
	return abi.PtrFromBytes(serve(input))
}
