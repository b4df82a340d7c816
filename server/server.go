package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/mindcare/ai/agents/orchestrator"
	"github.com/hrygo/mindcare/ai/metrics"
	"github.com/hrygo/mindcare/internal/profile"
	"github.com/hrygo/mindcare/internal/version"
	apiv1 "github.com/hrygo/mindcare/server/router/api/v1"
)

type Server struct {
	Profile      *profile.Profile
	Orchestrator *orchestrator.Orchestrator

	echoServer *echo.Echo
	logger     *slog.Logger
}

// NewServer builds the echo server. exporter may be nil, in which case
// /metrics is not served.
func NewServer(_ context.Context, profile *profile.Profile, orch *orchestrator.Orchestrator, exporter *metrics.PrometheusExporter, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Profile:      profile,
		Orchestrator: orch,
		logger:       logger.With("component", "server"),
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestID())
	echoServer.Use(middleware.BodyLimit("64K"))
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				s.logger.Warn("request", append(attrs, "error", v.Error)...)
			} else {
				s.logger.Debug("request", attrs...)
			}
			return nil
		},
	}))
	s.echoServer = echoServer

	echoServer.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": profile.Version,
			"build":   version.String(),
		})
	})
	if exporter != nil {
		echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	apiv1.NewAPIV1Service(profile, orch, logger).Register(echoServer)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// flushes the stores.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", "error", err)
	}
	if err := s.Orchestrator.Shutdown(ctx); err != nil {
		s.logger.Error("failed to flush stores", "error", err)
	}
	s.logger.Info("server stopped properly")
}
