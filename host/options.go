package host

import (
	"log/slog"

	"github.com/kubewarden/policy-sdk-go/hostfuncs"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithHostFunctions configures the executor with a host function registry.
// Without one, every capability call fails with NOT_FOUND.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithLogger sets the logger for executor diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMemoryLimitPages caps the linear memory of every policy instance, in
// 64 KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(e *Executor) {
		e.memoryLimitPages = pages
	}
}

// WithAssignRequestUIDs makes Validate fill in a random UID for requests
// that carry none, as the API server always sends one.
func WithAssignRequestUIDs(enabled bool) Option {
	return func(e *Executor) {
		e.assignUIDs = enabled
	}
}
