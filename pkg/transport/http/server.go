package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ablauf-dev/ablauf/pkg/observability"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

// Server owns the http.Server around the adapter: route assembly,
// startup, and signal-driven graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds the server settings.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	Logger          *slog.Logger

	// Metrics exposes /metrics and enables request instrumentation.
	Metrics bool

	// Middleware runs before the built-in chain (recovery, request ID,
	// logging), so it is the outermost transport-level middleware.
	Middleware []transport.Middleware

	// HTTPMiddleware wraps the whole handler tree, first entry
	// outermost. Authentication lives here so it also covers the
	// operational endpoints it chooses not to bypass.
	HTTPMiddleware []func(http.Handler) http.Handler
}

// DefaultServerConfig returns the baseline settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20,
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
		Metrics:         true,
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize caps the request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout bounds how long shutdown waits for in-flight work.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithMetrics toggles /metrics and request instrumentation.
func WithMetrics(enabled bool) ServerOption {
	return func(s *Server) { s.config.Metrics = enabled }
}

// WithMiddleware adds transport-level middleware ahead of the defaults.
func WithMiddleware(mw ...transport.Middleware) ServerOption {
	return func(s *Server) { s.config.Middleware = append(s.config.Middleware, mw...) }
}

// WithHTTPMiddleware wraps the assembled handler tree; the first entry
// becomes the outermost wrapper.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.config.HTTPMiddleware = append(s.config.HTTPMiddleware, mw...) }
}

// NewServer builds a server around the creator. Store and directory may
// be nil, which disables the endpoints they back. Recovery, request ID,
// and logging middleware are always present.
func NewServer(creator transport.ResponseCreator, store transport.ResponseStore, directory transport.EntityDirectory, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mw := append([]transport.Middleware{}, s.config.Middleware...)
	mw = append(mw,
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	)

	s.adapter = NewAdapter(creator, store, directory, Config{
		Addr:            s.config.Addr,
		MaxBodySize:     s.config.MaxBodySize,
		ShutdownTimeout: int(s.config.ShutdownTimeout.Seconds()),
	}, mw...)
	s.adapter.SetLogger(s.logger)

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.buildHandler(),
	}
	return s
}

// buildHandler mounts the adapter routes next to the operational
// endpoints. The metrics middleware wraps the API routes but not
// /metrics itself; HTTP middleware wraps everything, so its bypass
// list decides which operational paths stay open.
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", s.handleReadiness)

	api := s.adapter.Handler()
	if s.config.Metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
		api = observability.MetricsMiddleware(api)
	}
	mux.Handle("/", api)

	var handler http.Handler = mux
	for i := len(s.config.HTTPMiddleware) - 1; i >= 0; i-- {
		handler = s.config.HTTPMiddleware[i](handler)
	}
	return handler
}

// handleReadiness probes the store. A stateless deployment has nothing
// to check and is always ready.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.adapter.store != nil {
		if err := s.adapter.store.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", slog.String("error", err.Error()))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Handler returns the fully assembled handler tree, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the server until SIGINT or SIGTERM, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) ListenAndServe() error {
	return s.run(func() error {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		return s.httpServer.ListenAndServe()
	})
}

// ServeOn is ListenAndServe on an existing listener, for tests.
func (s *Server) ServeOn(ln net.Listener) error {
	return s.run(func() error {
		return s.httpServer.Serve(ln)
	})
}

func (s *Server) run(serve func() error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := serve(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown stops the server, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
