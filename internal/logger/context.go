package logger

import (
	"context"

	"go.uber.org/zap"
)

// requestLoggerKey keys the per-request logger. The HTTP and stdio
// transports attach one carrying the transport, request_id and session_id
// fields so search handlers log with that context.
type requestLoggerKey struct{}

// ContextWithLogger returns ctx carrying log for the rest of the request.
func ContextWithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, requestLoggerKey{}, log)
}

// FromContext returns the request logger attached by the transport. Calls
// outside a served request, such as tests driving a handler directly, get a
// no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(requestLoggerKey{}).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.NewNop()
}
