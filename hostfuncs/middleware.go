package hostfuncs

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"
)

// Middleware is a function that wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next ByteHandler) ByteHandler

// PanicRecoveryMiddleware returns a middleware that catches panics and turns
// them into INTERNAL_ERROR responses instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = nil
					err = NewPanicError(r)
				}
			}()
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware returns a middleware that logs every call at debug level
// and failures at warn level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			funcName := "unknown"
			if hc, ok := ctx.(HostContext); ok {
				funcName = hc.FunctionName()
			}
			start := time.Now()
			resp, err := next(ctx, payload)
			if err != nil {
				logger.WarnContext(ctx, "host capability failed", "capability", funcName, "error", err, "duration", time.Since(start))
			} else {
				logger.DebugContext(ctx, "host capability served", "capability", funcName, "reply_size", len(resp), "duration", time.Since(start))
			}
			return resp, err
		}
	}
}

// TimeoutMiddleware bounds every call by d. A handler that returns after the
// deadline passed fails with a TIMEOUT response.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next ByteHandler) ByteHandler {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			if hc, ok := ctx.(HostContext); ok {
				tctx = NewHostContext(tctx, hc.Call())
			}

			resp, err := next(tctx, payload)
			if stdErrors.Is(tctx.Err(), context.DeadlineExceeded) {
				return nil, NewTimeoutError("host capability exceeded " + d.String())
			}
			return resp, err
		}
	}
}

// CapabilityMiddleware refuses calls the checker does not allow.
func CapabilityMiddleware(checker *CapabilityChecker) Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			hc, ok := ctx.(HostContext)
			if !ok {
				return nil, NewInternalError("capability check without call context")
			}
			if err := checker.Check(hc.Call()); err != nil {
				return nil, err
			}
			return next(ctx, payload)
		}
	}
}
