package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-coord/pkg/health"
	"github.com/dd0wney/cluso-coord/pkg/logging"
	"github.com/dd0wney/cluso-coord/pkg/metrics"
)

// NewServer creates a new admin API server
func NewServer(locks LockSource, nodes NodeSource, opts Options) *Server {
	s := &Server{
		locks:           locks,
		nodes:           nodes,
		offsets:         opts.Offsets,
		sharedHome:      opts.SharedHome,
		logger:          logging.OrNop(opts.Logger).With(logging.Component("api")),
		metricsRegistry: opts.Metrics,
		healthChecker:   opts.Health,
		startTime:       time.Now(),
	}
	if s.metricsRegistry == nil {
		s.metricsRegistry = metrics.DefaultRegistry()
	}
	if s.healthChecker == nil {
		s.healthChecker = health.NewHealthChecker()
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics
	mux.HandleFunc("GET /health", s.healthChecker.HTTPHandler())
	mux.HandleFunc("GET /ready", s.healthChecker.ReadinessHandler())
	mux.HandleFunc("GET /live", s.healthChecker.LivenessHandler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metricsRegistry.GetPrometheusRegistry(), promhttp.HandlerOpts{}))

	// Locks
	mux.HandleFunc("GET /locks", s.handleLocks)
	mux.HandleFunc("GET /locks/{name}", s.handleLock)

	// Nodes
	mux.HandleFunc("GET /nodes", s.handleNodes)
	mux.HandleFunc("GET /nodes/{id}", s.handleNode)
	if s.offsets != nil {
		mux.HandleFunc("GET /nodes/offsets", s.handleOffsets)
	}
	if s.sharedHome != nil {
		mux.HandleFunc("GET /nodes/shared-home", s.handleSharedHome)
	}

	var handler http.Handler = mux
	handler = s.metricsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.requestIDMiddleware(handler)
	handler = s.panicRecoveryMiddleware(handler)
	return handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("admin API listening", logging.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
