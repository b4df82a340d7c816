package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/mindcare/store"
)

type LogMoodRequest struct {
	UserID string `json:"userId"`
	Mood   string `json:"mood"`
	Notes  string `json:"notes,omitempty"`
}

// LogMood handles POST /api/mood.
func (s *APIV1Service) LogMood(c echo.Context) error {
	var req LogMoodRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if err := s.Orchestrator.LogMood(c.Request().Context(), req.UserID, req.Mood, req.Notes); err != nil {
		return s.convertError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "logged"})
}

// GetMoodInsights handles GET /api/mood/:userId.
func (s *APIV1Service) GetMoodInsights(c echo.Context) error {
	insights := s.Orchestrator.GetMoodInsights(c.Request().Context(), c.Param("userId"))
	return c.JSON(http.StatusOK, map[string]string{"insights": insights})
}

// ListSessions handles GET /api/sessions/:userId.
func (s *APIV1Service) ListSessions(c echo.Context) error {
	sessions := s.Orchestrator.ListSessions(c.Request().Context(), c.Param("userId"))
	if sessions == nil {
		sessions = []*store.Session{}
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}
