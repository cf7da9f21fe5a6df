package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vitacheck/engine/pkg/analysis"
	"vitacheck/engine/pkg/config"
	"vitacheck/engine/pkg/telemetry"
)

// Analyzer runs one analysis request. Satisfied by *analysis.Pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req *analysis.Request) (*analysis.Response, error)
}

// Server is the HTTP front of the analysis service.
type Server struct {
	cfg        config.ServerConfig
	analyzer   Analyzer
	metrics    *telemetry.Metrics
	allowTrace bool
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a server. allowTrace gates whether requests may ask for the
// debug provider trace.
func New(cfg config.ServerConfig, analyzer Analyzer, metrics *telemetry.Metrics, allowTrace bool) *Server {
	return &Server{
		cfg:        cfg,
		analyzer:   analyzer,
		metrics:    metrics,
		allowTrace: allowTrace,
		logger:     slog.Default().With("component", "server"),
	}
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// Start serves until ctx is cancelled or a shutdown signal arrives, then
// drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("serve: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down, context cancelled")
	case sig := <-sigChan:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errChan:
		return err
	}
	return s.Shutdown(context.Background())
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
