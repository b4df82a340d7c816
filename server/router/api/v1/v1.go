package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/mindcare/ai/agents/orchestrator"
	"github.com/hrygo/mindcare/internal/profile"
)

// APIV1Service serves the REST surface of the conversation pipeline.
type APIV1Service struct {
	Profile      *profile.Profile
	Orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

func NewAPIV1Service(profile *profile.Profile, orch *orchestrator.Orchestrator, logger *slog.Logger) *APIV1Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIV1Service{
		Profile:      profile,
		Orchestrator: orch,
		logger:       logger.With("component", "api"),
	}
}

// Register mounts the /api routes on e.
func (s *APIV1Service) Register(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/chat", s.Chat)
	g.POST("/mood", s.LogMood)
	g.GET("/mood/:userId", s.GetMoodInsights)
	g.GET("/sessions/:userId", s.ListSessions)
}

// convertError maps pipeline errors to HTTP errors. Only validation
// messages reach the client.
func (s *APIV1Service) convertError(c echo.Context, err error) error {
	var verr *orchestrator.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request canceled").SetInternal(err)
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
