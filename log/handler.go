// Package log provides structured logging (slog) for policies. Records are
// turned into flat JSON events and delivered to the host log sink.
package log

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"slices"

	"github.com/kubewarden/policy-sdk-go/internal/wasmcontext"
)

// Handler implements slog.Handler. Each record becomes one JSON event:
//
//	{"level":"info","message":"...","file":"...","line":12,"key":"value",...}
//
// Attributes added with WithAttrs are kept; WithGroup prefixes the keys of
// later attributes with "group.".
type Handler struct {
	opts   handlerConfig
	attrs  []slog.Attr
	prefix string
}

// HandlerOption configures the Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Leveler
	writer    io.Writer
	addSource bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level are filtered on the guest side.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		if level != nil {
			c.level = level
		}
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithWriter writes events as JSON lines to w instead of the default sink
// (the host in a WASM module, stdout otherwise).
func WithWriter(w io.Writer) HandlerOption {
	return func(c *handlerConfig) {
		c.writer = w
	}
}

// NewHandler creates a new Handler with the given options.
func NewHandler(opts ...HandlerOption) *Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Handler{opts: cfg}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

// Handle delivers the record. Delivery is best-effort: a failing sink never
// fails the caller.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	ev := newEvent(record.Level, record.Message)

	if h.opts.addSource && record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		frame, _ := frames.Next()
		ev.set("file", frame.File)
		ev.set("line", frame.Line)
	}

	for key, value := range wasmcontext.Fields(ctx) {
		ev.set(key, value)
	}
	for _, attr := range h.attrs {
		ev.addAttr("", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		ev.addAttr(h.prefix, attr)
		return true
	})

	data, err := ev.encode()
	if err != nil {
		return nil
	}

	if h.opts.writer != nil {
		data = append(data, '\n')
		_, _ = h.opts.writer.Write(data)
		return nil
	}
	emit(ctx, data)
	return nil
}

// WithAttrs returns a new Handler that includes the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = slices.Clip(h.attrs)
	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, prefixed(h.prefix, attr))
	}
	return &clone
}

// WithGroup returns a new Handler qualifying later attributes with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// prefixed returns attr with its key qualified by prefix.
func prefixed(prefix string, attr slog.Attr) slog.Attr {
	if prefix == "" {
		return attr
	}
	return slog.Attr{Key: prefix + attr.Key, Value: attr.Value}
}
