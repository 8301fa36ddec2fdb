// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version   string
	processor string
	sessions  SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, processor string, sessions SessionManager) HealthHandler {
	return &HealthHandlerImpl{
		version:   version,
		processor: processor,
		sessions:  sessions,
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Processor string `json:"processor"`
	Sessions  int    `json:"sessions"`
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := healthResponse{
		Status:    "ok",
		Version:   h.version,
		Processor: h.processor,
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}
	return c.JSON(http.StatusOK, resp)
}
