// Package gateway serves the inbound activity webhook and the
// operational endpoints around it.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/config"
	"github.com/soyeahso/botway/internal/dispatch"
	"github.com/soyeahso/botway/internal/logging"
	"github.com/soyeahso/botway/internal/metrics"
	"github.com/soyeahso/botway/internal/store"
)

// Server is the Botway webhook HTTP server.
type Server struct {
	cfg     config.Config
	auth    auth.RequestAuthenticator
	log     *logging.Logger
	runtime *dispatch.Runtime

	metrics *metrics.Metrics
	trace   *store.TraceStore
	tap     *TapHub

	startedAt  time.Time
	httpServer *http.Server
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithMetrics enables the Prometheus endpoint and request instrumentation.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithTraceStore enables the activity log query endpoint.
func WithTraceStore(t *store.TraceStore) ServerOption {
	return func(s *Server) { s.trace = t }
}

// WithTap enables the WebSocket activity tap.
func WithTap(hub *TapHub) ServerOption {
	return func(s *Server) { s.tap = hub }
}

// New creates a new gateway server around a dispatch runtime.
func New(cfg config.Config, runtime *dispatch.Runtime, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:       cfg,
		auth:      ResolveAuthenticator(cfg.Auth),
		log:       log.Sub("gateway"),
		runtime:   runtime,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tap returns the attached tap hub, or nil when the tap is disabled.
func (s *Server) Tap() *TapHub {
	return s.tap
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(s.cfg.Server.Path, s.handleActivity).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.trace != nil {
		r.HandleFunc("/api/trace", s.handleTrace).Methods(http.MethodGet)
	}
	if s.tap != nil {
		r.HandleFunc("/tap", s.handleTap).Methods(http.MethodGet)
	}
	return r
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP connections. It blocks until the
// context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	handler := withMiddleware(s.routes(), s.log, s.metrics)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Server.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.Server.TLS.CertPath, s.cfg.Server.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		ln = tls.NewListener(ln, tlsCfg)
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Server.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled on a non-loopback bind")
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Str("path", s.cfg.Server.Path).
		Str("auth", s.cfg.Auth.Mode).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if s.tap != nil {
			s.tap.CloseAll()
		}
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
