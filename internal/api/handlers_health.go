// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// WidgetCounter reports how many widgets are mounted
type WidgetCounter interface {
	Count() int
}

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	widgets WidgetCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, widgets WidgetCounter) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		widgets: widgets,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.widgets != nil {
		resp["widgets"] = h.widgets.Count()
	}
	return c.JSON(http.StatusOK, resp)
}
