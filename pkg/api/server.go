package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Host         string        // Host to bind to (default "localhost")
	Port         int           // Port to listen on (default 8080)
	ReadTimeout  time.Duration // Read timeout (default 30s)
	WriteTimeout time.Duration // Write timeout (default 120s, covers a queued hint)
	IdleTimeout  time.Duration // Idle timeout (default 60s)
	MaxInFlight  int           // Max requests holding a pool slot (default 64)
	DefaultPlies int           // Plies when a request omits them (default 2)
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
		MaxInFlight:  64,
		DefaultPlies: 2,
	}
}

// Server is the HTTP API server.
type Server struct {
	config   ServerConfig
	echo     *echo.Echo
	handlers *Handlers
	pool     *RequestPool
	logger   zerolog.Logger
}

// NewServer creates a new API server. The server answers 503 on the
// evaluation endpoints until Handlers().SetEvaluator is called.
func NewServer(status Status, config ServerConfig) *Server {
	pool := NewRequestPool(PoolConfig{MaxInFlight: config.MaxInFlight})
	s := &Server{
		config:   config,
		handlers: NewHandlers(status, pool, config.DefaultPlies),
		pool:     pool,
		logger:   log.With().Str("component", "http").Logger(),
	}
	s.echo = s.setupRoutes()
	return s
}

// Handlers returns the request handlers, shared with the NATS responder.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Pool returns the request pool for monitoring.
func (s *Server) Pool() *RequestPool {
	return s.pool
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupRoutes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	e.GET("/health", s.handlers.Health)
	e.POST("/evaluate", s.handlers.Evaluate)
	e.POST("/cube", s.handlers.Cube)
	e.GET("/ws", s.handlers.WebSocket)
	return e
}

// Start starts the HTTP server and blocks until it stops. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info().Str("addr", addr).Msg("starting API server")
	s.logger.Info().Msg("endpoints: GET /health, POST /evaluate, POST /cube, WS /ws")

	return s.echo.StartServer(srv)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
