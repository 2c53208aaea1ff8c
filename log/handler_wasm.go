//go:build wasip1

package log

import (
	"context"
	"log/slog"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/infrastructure/wasm"
)

// Host log sink, reached through the capability binding.
const (
	tracingNamespace = "tracing"
	tracingOperation = "log"
)

var hostCaller = wasm.NewHostCaller()

// emit sends the event to the host. The reply is ignored.
func emit(ctx context.Context, data []byte) {
	if ctx == nil {
		ctx = context.Background()
	}
	_, _ = hostCaller.HostCall(ctx, entities.HostBinding, tracingNamespace, tracingOperation, data)
}

// init configures the default slog handler to forward to the host.
func init() {
	slog.SetDefault(slog.New(NewHandler()))
}
