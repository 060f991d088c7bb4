package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"foundry-gateway/internal/bus"
	"foundry-gateway/internal/config"
	"foundry-gateway/internal/router"
	"foundry-gateway/internal/webhook"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second

	// No global write deadline: the event stream stays open far longer
	// than any fixed timeout would allow.
	writeTimeout = 0

	defaultHeartbeatInterval = 30 * time.Second
)

// Server is the HTTP surface: provider routing, webhook intake, the event
// stream, and the real-time channel.
type Server struct {
	cfg       config.Config
	router    *router.Router
	gateway   *webhook.Gateway
	hub       *bus.Hub
	app       *echo.Echo
	address   string
	startedAt time.Time

	heartbeatInterval time.Duration
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, rt *router.Router, gateway *webhook.Gateway, hub *bus.Hub) (*Server, error) {
	if rt == nil {
		return nil, errors.New("router must not be nil")
	}
	if gateway == nil {
		return nil, errors.New("webhook gateway must not be nil")
	}
	if hub == nil {
		return nil, errors.New("event hub must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	corsOrigins := cfg.Server.AllowedOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	srv := &Server{
		cfg:               cfg,
		router:            rt,
		gateway:           gateway,
		hub:               hub,
		app:               e,
		address:           fmt.Sprintf(":%d", cfg.Server.Port),
		startedAt:         time.Now(),
		heartbeatInterval: defaultHeartbeatInterval,
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address, "environment", s.cfg.Server.Environment)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)

	s.app.POST("/api/generate", s.handleGenerate, sessionRequired(s.cfg.Session.Secret))
	s.app.GET("/api/models", s.handleModels)

	// Legacy path and the canonical one share a handler.
	s.app.POST("/webhook/github", s.handleGitHubWebhook)
	s.app.POST("/api/webhooks/github", s.handleGitHubWebhook)
	s.app.POST("/api/webhooks/stripe", s.handleStripeWebhook)

	s.app.GET("/api/events", s.handleEvents)
	s.app.GET("/ws", s.handleWebSocket)
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("foundry-gateway ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /api/generate")
	fmt.Println("  GET  /api/models")
	fmt.Println("  POST /api/webhooks/github")
	fmt.Println("  POST /api/webhooks/stripe")
	fmt.Println("  GET  /api/events")
	fmt.Println("  GET  /ws")
	fmt.Println("Providers register at startup from environment credentials; unset credentials exclude a backend.")
}
