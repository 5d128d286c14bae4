// Package server provides the admin HTTP endpoint: Prometheus metrics,
// health, version and receiver stats.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zsiec/flowprobe/internal/config"
	"github.com/zsiec/flowprobe/internal/errors"
	"github.com/zsiec/flowprobe/internal/health"
	"github.com/zsiec/flowprobe/internal/logger"
	"github.com/zsiec/flowprobe/internal/receiver"
)

const (
	healthCheckInterval = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// StatsSource supplies the /api/v1/stats body.
type StatsSource interface {
	Stats() receiver.Stats
}

// Server is the admin HTTP server.
type Server struct {
	config       *config.MetricsConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       logger.Logger
	healthMgr    *health.Manager
	errorHandler *errors.ErrorHandler
	stats        StatsSource

	mu   sync.Mutex
	addr net.Addr
}

// New creates an admin server. stats may be nil when no receiver runs in
// this process.
func New(cfg *config.MetricsConfig, log logger.Logger, healthMgr *health.Manager, stats StatsSource) *Server {
	log = logger.WithComponent(log, "admin")
	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       log,
		healthMgr:    healthMgr,
		errorHandler: errors.NewErrorHandler(log),
		stats:        stats,
	}
	s.setupRoutes()
	return s
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(s.config.Port)))
	if err != nil {
		return errors.NewSetupError(err, fmt.Sprintf("failed to listen on admin port %d", s.config.Port), true)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	go s.healthMgr.StartPeriodicChecks(ctx, healthCheckInterval)

	s.logger.WithField("addr", ln.Addr().String()).Info("Starting admin server")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server, waiting briefly for in-flight requests.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown admin server: %w", err)
	}
	s.logger.Info("Admin server stopped")
	return nil
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods(http.MethodGet)

	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	s.router.Handle(s.metricsPath(), promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
}

func (s *Server) metricsPath() string {
	if s.config.Path == "" {
		return "/metrics"
	}
	return s.config.Path
}

// Router returns the router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}
