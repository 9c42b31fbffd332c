package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/blastdesk/internal/adapter/metrics"
	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/pscheid92/blastdesk/internal/platform/config"
)

// Services bundles the use cases the API exposes.
type Services struct {
	Auth      domain.AuthService
	Directory domain.DirectoryService
	Templates domain.TemplateService
	Blasts    domain.BlastService
	Analytics domain.AnalyticsService
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	auth      domain.AuthService
	directory domain.DirectoryService
	templates domain.TemplateService
	blasts    domain.BlastService
	analytics domain.AnalyticsService

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler

	sessionStore *sessions.CookieStore
	healthChecks []HealthCheck
	startTime    time.Time
}

// Option customises a Server before routes are registered.
type Option func(*Server)

// WithMetrics instruments API routes and serves the scrape endpoint at /metrics.
func WithMetrics(m *metrics.HTTPMetrics, handler http.Handler) Option {
	return func(s *Server) {
		s.httpMetrics = m
		s.metricsHandler = handler
	}
}

// WithHealthChecks sets the checks run by the readiness and startup probes.
func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func NewServer(cfg *config.Config, svc Services, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		auth:         svc.Auth,
		directory:    svc.Directory,
		templates:    svc.Templates,
		blasts:       svc.Blasts,
		analytics:    svc.Analytics,
		sessionStore: setupSessionStore(cfg),
		startTime:    time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Session keys
const (
	sessionName     = "blastdesk-session"
	sessionKeyToken = "token"
)

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}
