package hostfuncs

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// HostFunc is a typed host function. Returning an ErrorResponse as the error
// sends that document to the guest.
type HostFunc[Req any, Resp any] func(context.Context, Req) (Resp, error)

// ByteHandler accepts the raw payload of a call and returns the raw reply.
// This is the common interface that WASM runtimes can easily use.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// NewJSONHandler wraps a typed HostFunc into a ByteHandler.
// A payload that does not decode into Req yields a VALIDATION_ERROR response.
//
// Usage:
//
//	lookup := hostfuncs.NewJSONHandler(func(ctx context.Context, host string) (entities.LookupHostResponse, error) {
//	    return hostfuncs.LookupHost(ctx, host)
//	})
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, NewValidationError(fmt.Sprintf("failed to unmarshal request: %v", err))
		}

		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			return nil, NewInternalError(fmt.Sprintf("failed to marshal response: %v", err))
		}
		return respBytes, nil
	}
}

// StaticHandler always answers with reply.
func StaticHandler(reply []byte) ByteHandler {
	return func(context.Context, []byte) ([]byte, error) {
		return reply, nil
	}
}

// FailingHandler always fails with resp.
func FailingHandler(resp ErrorResponse) ByteHandler {
	return func(context.Context, []byte) ([]byte, error) {
		return nil, resp
	}
}
