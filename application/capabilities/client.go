package capabilities

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// Error identifiers and codes a host puts in an error payload.
const (
	hostErrorNotGranted = "NOT_GRANTED"
	hostErrorTimeout    = "TIMEOUT"
	hostCodeForbidden   = 403
	hostCodeTimeout     = 504
)

// hostErrorPayload is the JSON body of an error reply.
type hostErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Client issues capability calls through a HostCaller.
type Client struct {
	host     ports.HostCaller
	metadata *entities.Metadata
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata enables the guest side allowlist: capabilities on the
// "kubewarden" binding that match none of the declared patterns fail with
// *errors.NotGrantedError without reaching the host.
func WithMetadata(m *entities.Metadata) ClientOption {
	return func(c *Client) {
		c.metadata = m
	}
}

// WithLogger sets the logger used for call tracing. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a capability client over host.
func NewClient(host ports.HostCaller, opts ...ClientOption) *Client {
	c := &Client{host: host, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes capability with req and decodes the reply into Resp.
func Call[Req any, Resp any](ctx context.Context, c *Client, capability entities.Capability, req Req) (Resp, error) {
	var resp Resp

	payload, err := wireformat.Encode(req)
	if err != nil {
		return resp, withCapability(err, capability.String())
	}

	reply, err := c.CallRaw(ctx, capability, payload)
	if err != nil {
		return resp, err
	}

	resp, err = wireformat.Decode[Resp](reply)
	if err != nil {
		return resp, withCapability(err, capability.String())
	}
	return resp, nil
}

// CallRaw invokes capability on the "kubewarden" binding with an already encoded payload.
func (c *Client) CallRaw(ctx context.Context, capability entities.Capability, payload []byte) ([]byte, error) {
	return c.CallBinding(ctx, entities.HostBinding, capability, payload)
}

// CallBinding invokes capability on an arbitrary binding. The allowlist only
// applies to the "kubewarden" binding.
func (c *Client) CallBinding(ctx context.Context, binding string, capability entities.Capability, payload []byte) ([]byte, error) {
	name := capability.String()

	if binding == entities.HostBinding && c.metadata != nil && !c.metadata.Allows(capability) {
		c.logger.Debug("sdk: capability not declared in metadata", "capability", name)
		return nil, &errors.NotGrantedError{Capability: name, Reason: "not declared in policy metadata"}
	}

	c.logger.Debug("sdk: host call", "binding", binding, "capability", name, "payload_size", len(payload))

	reply, err := c.invoke(ctx, binding, capability, payload)
	if err != nil {
		classified := classify(name, err)
		c.logger.Debug("sdk: host call failed", "capability", name, "error", classified)
		return nil, classified
	}
	return reply, nil
}

// invoke calls the host, turning a panic inside the HostCaller into a *errors.HostError.
func (c *Client) invoke(ctx context.Context, binding string, capability entities.Capability, payload []byte) (reply []byte, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("sdk: host call panicked", "capability", capability.String(), "panic", r, "stack", string(debug.Stack()))
			reply = nil
			err = &errors.HostError{Capability: capability.String(), Err: fmt.Errorf("host call panicked: %v", r)}
		}
	}()
	if c.host == nil {
		return nil, &errors.HostError{Capability: capability.String(), Err: stdErrors.New("no host configured")}
	}
	return c.host.HostCall(ctx, binding, capability.Namespace, capability.Operation(), payload)
}

// classify maps a host failure to the capability error taxonomy. The result
// depends only on the failure, never on the payload that was sent.
func classify(capability string, err error) error {
	var notGranted *errors.NotGrantedError
	if stdErrors.As(err, &notGranted) {
		return &errors.NotGrantedError{Capability: capability, Reason: notGranted.Reason}
	}
	var timeout *errors.TimeoutError
	if stdErrors.As(err, &timeout) {
		return &errors.TimeoutError{Capability: capability, Reason: timeout.Reason}
	}

	switch {
	case stdErrors.Is(err, errors.ErrNotGranted):
		return &errors.NotGrantedError{Capability: capability, Reason: reason(err, errors.ErrNotGranted)}
	case stdErrors.Is(err, errors.ErrTimeout):
		return &errors.TimeoutError{Capability: capability, Reason: reason(err, errors.ErrTimeout)}
	case stdErrors.Is(err, context.DeadlineExceeded):
		return &errors.TimeoutError{Capability: capability, Reason: err.Error()}
	}

	var hostErr *errors.HostError
	if stdErrors.As(err, &hostErr) {
		if hostErr.Detail != "" {
			if mapped := classifyPayload(capability, []byte(hostErr.Detail)); mapped != nil {
				return mapped
			}
		}
		return &errors.HostError{Capability: capability, Err: hostErr.Err, Detail: hostErr.Detail}
	}

	var decodeErr *errors.DecodeError
	if stdErrors.As(err, &decodeErr) {
		return withCapability(err, capability)
	}

	return &errors.HostError{Capability: capability, Err: err}
}

// classifyPayload interprets a JSON error reply. It returns nil when the
// payload is not a recognizable error document.
func classifyPayload(capability string, detail []byte) error {
	payload, err := wireformat.Decode[hostErrorPayload](detail)
	if err != nil || (payload.Error == "" && payload.Code == 0) {
		return nil
	}

	message := payload.Message
	switch {
	case strings.EqualFold(payload.Error, hostErrorNotGranted) || payload.Code == hostCodeForbidden:
		return &errors.NotGrantedError{Capability: capability, Reason: message}
	case strings.EqualFold(payload.Error, hostErrorTimeout) || payload.Code == hostCodeTimeout:
		return &errors.TimeoutError{Capability: capability, Reason: message}
	}

	if message == "" {
		message = payload.Error
	} else if payload.Error != "" {
		message = payload.Error + ": " + message
	}
	return &errors.HostError{Capability: capability, Detail: message}
}

// reason returns the error text unless it is just the sentinel itself.
func reason(err, sentinel error) string {
	if err == sentinel {
		return ""
	}
	return err.Error()
}

// withCapability stamps the capability name on a codec error.
func withCapability(err error, capability string) error {
	var decodeErr *errors.DecodeError
	if stdErrors.As(err, &decodeErr) {
		stamped := *decodeErr
		stamped.Capability = capability
		return &stamped
	}
	return &errors.DecodeError{Type: "capability payload", Capability: capability, Err: err}
}
