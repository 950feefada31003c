package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/agentic-search-mcp/internal/config"
	"github.com/dshills/agentic-search-mcp/internal/logger"
	"github.com/dshills/agentic-search-mcp/internal/metrics"
)

// HTTP endpoints
const (
	StreamEndpoint  = "/mcp"
	SSEEndpoint     = "/sse"
	MessageEndpoint = "/message"
	HealthEndpoint  = "/healthz"
	MetricsEndpoint = "/metrics"
)

const readHeaderTimeout = 10 * time.Second

// httpTransport is an mcp-go HTTP transport that can be shut down
type httpTransport interface {
	Shutdown(ctx context.Context) error
}

// Router mounts the given HTTP transport with health and metrics endpoints
func (s *Server) Router(transport string) (http.Handler, func(context.Context) error, error) {
	metrics.Register()

	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogMiddleware(s.logger))
	r.Use(metrics.Middleware())

	// The request context carries the per-request logger into tool handlers.
	withLogger := func(ctx context.Context, req *http.Request) context.Context {
		return logger.ContextWithLogger(ctx, logger.FromContext(req.Context()))
	}

	var t httpTransport
	switch transport {
	case config.TransportStreamHTTP:
		stream := server.NewStreamableHTTPServer(s.mcp,
			server.WithEndpointPath(StreamEndpoint),
			server.WithHTTPContextFunc(withLogger),
		)
		r.Handle(StreamEndpoint, stream)
		t = stream
	case config.TransportSSE:
		sse := server.NewSSEServer(s.mcp,
			server.WithSSEEndpoint(SSEEndpoint),
			server.WithMessageEndpoint(MessageEndpoint),
			server.WithSSEContextFunc(withLogger),
		)
		r.Handle(SSEEndpoint, sse.SSEHandler())
		r.Handle(MessageEndpoint, sse.MessageHandler())
		t = sse
	default:
		return nil, nil, fmt.Errorf("transport %q is not served over HTTP", transport)
	}

	r.Get(HealthEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"mode":   s.Mode().String(),
		})
	})
	r.Handle(MetricsEndpoint, metrics.Handler())

	return r, t.Shutdown, nil
}

// ServeHTTP listens on addr with the given HTTP transport until ctx is
// done, then shuts down within shutdownTimeout.
func (s *Server) ServeHTTP(ctx context.Context, transport, addr string, shutdownTimeout time.Duration) error {
	handler, shutdownTransport, err := s.Router(transport)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving mcp over http",
			zap.String("transport", transport),
			zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := shutdownTransport(shutdownCtx); err != nil {
		s.logger.Warn("transport shutdown failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					log.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogMiddleware emits one log line per request and attaches a
// request-scoped logger carrying the request ID.
func requestLogMiddleware(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := log.With(zap.String("request_id", requestID))
			ctx := logger.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
