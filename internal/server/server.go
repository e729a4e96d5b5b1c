// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/jeranaias/autologout/internal/config"
	"github.com/jeranaias/autologout/internal/logging"
	"github.com/jeranaias/autologout/internal/metrics"
	"github.com/jeranaias/autologout/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// SessionHeader carries the session id on API calls.
	SessionHeader = "X-Session-Id"

	// SessionCookie is the fallback for page navigations, which cannot set headers.
	SessionCookie = "autologout_session"

	// MaxRequestBodySize bounds JSON request bodies (64KB).
	MaxRequestBodySize = 64 * 1024

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// Version is the API version reported by /healthz.
	Version = "1.0.0"
)

// ConfigSource yields the configuration in effect. *config.Watcher is one.
type ConfigSource interface {
	Current() *config.Config
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig struct {
	Config *config.Config
}

func (s StaticConfig) Current() *config.Config {
	return s.Config
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the session authority's HTTP API.
type Server struct {
	config  ConfigSource
	manager *session.Manager
	logger  *zap.Logger
	audit   *logging.Audit
	limiter *RateLimiter

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAudit sets the watchdog log. Records are written only while
// autologout.use_watchdog is on.
func WithAudit(audit *logging.Audit) Option {
	return func(s *Server) {
		s.audit = audit
	}
}

// New creates a server. Rate limits and CORS origins are read from the
// configuration once; policy values are read on every request so a reload
// applies to the next settings call.
func New(src ConfigSource, manager *session.Manager, opts ...Option) *Server {
	s := &Server{
		config:  src,
		manager: manager,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg := src.Current()
	s.limiter = NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst)
	s.handler = s.buildHandler(cfg.Server.CORSOrigins)
	return s
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) buildHandler(origins []string) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	admin := router.PathPrefix("/autologout/sessions").Subrouter()
	admin.Use(s.rateLimitMiddleware, s.adminMiddleware)
	admin.HandleFunc("", s.handleOpenSession).Methods(http.MethodPost)

	api := router.NewRoute().Subrouter()
	api.Use(s.rateLimitMiddleware, sessionMiddleware)
	api.HandleFunc("/autologout/time-left", s.handleTimeLeft).Methods(http.MethodGet)
	api.HandleFunc("/autologout/keep-alive", s.handleKeepAlive).Methods(http.MethodPost)
	api.HandleFunc("/autologout/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc(config.AltLogoutPath, s.handleAltLogout).Methods(http.MethodGet)
	api.HandleFunc("/autologout/settings", s.handleSettings).Methods(http.MethodGet)
	api.HandleFunc("/whoami", s.handleWhoAmI).Methods(http.MethodGet)

	router.Use(s.recoveryMiddleware, s.loggingMiddleware, SecurityHeadersMiddleware)

	if len(origins) == 0 {
		return router
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", SessionHeader},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.config.Current().Server
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := s.config.Current().Server
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", zap.String("addr", ln.Addr().String()), zap.String("version", Version))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// RunSweeper deletes expired sessions every storage.sweep_interval_secs
// until ctx is done, keeping the session metrics current.
func (s *Server) RunSweeper(ctx context.Context) error {
	interval := time.Duration(s.config.Current().Storage.SweepIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Server) sweep(ctx context.Context) {
	n, err := s.manager.Sweep(ctx)
	if err != nil {
		s.logger.Warn("session sweep failed", zap.Error(err))
		return
	}
	metrics.SessionsSwept.Add(float64(n))
	if count, err := s.manager.Count(ctx); err == nil {
		metrics.ActiveSessions.Set(float64(count))
	}
	s.limiter.Prune(time.Now())
}

// SessionExpired records a session terminated for inactivity. Pass it to
// session.WithExpireHook.
func (s *Server) SessionExpired(sess *session.Session) {
	metrics.Logouts.WithLabelValues(logging.ReasonExpired).Inc()
	s.auditLogout(sess, logging.ReasonExpired)
}

func (s *Server) auditLogout(sess *session.Session, reason string) {
	if s.config.Current().Autologout.UseWatchdog {
		s.audit.Logout(sess.UserID, sess.ID, reason)
	}
}
