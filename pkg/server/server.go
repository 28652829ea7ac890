package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"roastline-hq/roastline/pkg/config"
	"roastline-hq/roastline/pkg/identity"
	"roastline-hq/roastline/pkg/limits"
	"roastline-hq/roastline/pkg/limits/budget"
	"roastline-hq/roastline/pkg/limits/storage"
	"roastline-hq/roastline/pkg/roastlog"
	"roastline-hq/roastline/pkg/telemetry/health"
	"roastline-hq/roastline/pkg/telemetry/metrics"
)

// RoastGate admits and runs roasts.
type RoastGate interface {
	Roast(ctx context.Context, req limits.Request) (*limits.Outcome, error)
	RemainingRoasts(ctx context.Context, id identity.Identity) (int, error)
}

// RoastReader reads the roast log.
type RoastReader interface {
	GetByShareID(ctx context.Context, shareID string) (*roastlog.Record, error)
	Recent(ctx context.Context, limit int) ([]*roastlog.Record, error)
	Latest(ctx context.Context, limit int) ([]*roastlog.Record, error)
}

// BudgetReporter reports spend for the admin page.
type BudgetReporter interface {
	Status(ctx context.Context) (*budget.Status, error)
	MonthlyHistory(ctx context.Context) ([]storage.MonthRecord, error)
}

// SettingsEditor lists and updates runtime settings.
type SettingsEditor interface {
	All(ctx context.Context) ([]storage.Setting, error)
	Set(ctx context.Context, key, value string) error
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Deps are the server's collaborators. Metrics is optional.
type Deps struct {
	Gate     RoastGate
	Roasts   RoastReader
	Budget   BudgetReporter
	Settings SettingsEditor
	Resolver *identity.Resolver
	Sessions *identity.Sessions
	Health   *health.Checker
	Metrics  *metrics.Collector
	Build    BuildInfo
}

// Server serves the roast API, the admin endpoints and the probes.
type Server struct {
	config      config.ServerConfig
	metricsPath string
	deps        Deps
	logger      *slog.Logger

	mu            sync.RWMutex
	adminPassword string
	httpServer    *http.Server
	running       bool
	shutdownOnce  sync.Once
}

// New creates a server from cfg.
func New(cfg *config.Config, deps Deps) *Server {
	metricsPath := ""
	if deps.Metrics != nil && cfg.MetricsEnabled() {
		metricsPath = cfg.Telemetry.Metrics.Path
	}
	return &Server{
		config:        cfg.Server,
		metricsPath:   metricsPath,
		deps:          deps,
		adminPassword: cfg.Security.AdminPassword,
		logger:        slog.Default().With("component", "server"),
	}
}

// SetAdminPassword replaces the admin password, e.g. after a config reload.
func (s *Server) SetAdminPassword(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminPassword = password
}

func (s *Server) currentAdminPassword() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminPassword
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded
// by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		httpServer := s.httpServer
		s.mu.RUnlock()
		if httpServer == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(s.config.MaxBodyBytes)(handler)
	handler = loggingMiddleware(s.deps.Metrics)(handler)
	handler = s.deps.Sessions.Middleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/roast", s.handleRoast)
	mux.HandleFunc("GET /api/roast/{share_id}", s.handleGetRoast)
	mux.HandleFunc("GET /api/recent", s.handleRecent)

	mux.Handle("GET /admin", s.requireAdmin(http.HandlerFunc(s.handleAdmin)))
	mux.Handle("POST /admin/settings", s.requireAdmin(http.HandlerFunc(s.handleAdminSettings)))

	s.deps.Health.Register(mux, s.deps.Build.Version, s.deps.Build.Commit, s.deps.Build.BuildTime)
	if s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.deps.Metrics.Handler())
	}
}
