// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// WidgetHandler handles widget lifecycle and interaction events
type WidgetHandler interface {
	HandleMountWidget(c echo.Context) error
	HandleGetWidget(c echo.Context) error
	HandleGetWidgetMsgpack(c echo.Context) error
	HandleUnmountWidget(c echo.Context) error
	HandleDragEvent(c echo.Context) error
}

// UploadHandler handles file selection and upload operations
type UploadHandler interface {
	HandleSelectFiles(c echo.Context) error
	HandleStartUpload(c echo.Context) error
	HandleGetUploadJob(c echo.Context) error
}

// StreamHandler pushes widget snapshots to the page
type StreamHandler interface {
	HandleWidgetStream(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
