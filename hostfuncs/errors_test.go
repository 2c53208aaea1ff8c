package hostfuncs

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

func TestErrorResponse_ToJSON(t *testing.T) {
	assert.JSONEq(t, `{"error":"NOT_GRANTED","message":"oci denied","code":403}`, string(NewNotGrantedError("oci denied").ToJSON()))
}

func TestErrorResponse_Constructors(t *testing.T) {
	tests := []struct {
		name     string
		resp     ErrorResponse
		wantType string
		wantCode int
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation, 400},
		{"not found", NewNotFoundError("x/y"), ErrorTypeNotFound, 404},
		{"not granted", NewNotGrantedError("no"), ErrorTypeNotGranted, 403},
		{"timeout", NewTimeoutError("slow"), ErrorTypeTimeout, 504},
		{"internal", NewInternalError("boom"), ErrorTypeInternal, 500},
		{"panic string", NewPanicError("boom"), ErrorTypeInternal, 500},
		{"panic error", NewPanicError(stdErrors.New("boom")), ErrorTypeInternal, 500},
		{"panic other", NewPanicError(42), ErrorTypeInternal, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.resp.Type)
			assert.Equal(t, tt.wantCode, tt.resp.Code)
			assert.NotEmpty(t, tt.resp.Message)
		})
	}
	assert.Equal(t, "panic: boom", NewPanicError(stdErrors.New("boom")).Message)
	assert.Equal(t, "panic: panic recovered", NewPanicError(42).Message)
}

func TestErrorResponse_Is(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NewNotGrantedError("no"))
	assert.ErrorIs(t, wrapped, errors.ErrNotGranted)
	assert.NotErrorIs(t, wrapped, errors.ErrTimeout)

	assert.ErrorIs(t, NewTimeoutError("slow"), errors.ErrTimeout)
	assert.ErrorIs(t, ErrorResponse{Type: "GATEWAY", Code: 504}, errors.ErrTimeout)
	assert.NotErrorIs(t, NewInternalError("boom"), errors.ErrNotGranted)
}

func TestErrorResponse_Error(t *testing.T) {
	assert.Equal(t, "TIMEOUT: slow", NewTimeoutError("slow").Error())
	assert.Equal(t, "TIMEOUT", ErrorResponse{Type: ErrorTypeTimeout}.Error())
}
