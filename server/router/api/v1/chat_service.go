package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type ChatRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

// Chat handles POST /api/chat.
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}

	result, err := s.Orchestrator.ProcessMessage(c.Request().Context(), req.UserID, req.SessionID, req.Message)
	if err != nil {
		return s.convertError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
