// routes.go - Route registration helpers
package api

import (
	"github.com/image-uploader/backend/internal/session"
	"github.com/image-uploader/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions *session.Manager
	Jobs     *upload.Manager
	Stream   StreamConfig
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Widget WidgetHandler
	Upload UploadHandler
	Stream StreamHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Sessions),
		Widget: NewWidgetHandler(deps.Sessions),
		Upload: NewUploadHandler(deps.Sessions, deps.Jobs),
		Stream: NewWebSocketHandler(deps.Sessions, deps.Stream),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", handlers.Health.HandleHealth)

	widgetGroup := apiGroup.Group("/widgets")
	widgetGroup.POST("", handlers.Widget.HandleMountWidget)
	widgetGroup.GET("/:id", handlers.Widget.HandleGetWidget)
	widgetGroup.GET("/:id/msgpack", handlers.Widget.HandleGetWidgetMsgpack)
	widgetGroup.DELETE("/:id", handlers.Widget.HandleUnmountWidget)
	widgetGroup.POST("/:id/drag", handlers.Widget.HandleDragEvent)
	widgetGroup.POST("/:id/files", handlers.Upload.HandleSelectFiles)
	widgetGroup.POST("/:id/upload", handlers.Upload.HandleStartUpload)
	widgetGroup.GET("/:id/ws", handlers.Stream.HandleWidgetStream)

	apiGroup.GET("/uploads/:jobId", handlers.Upload.HandleGetUploadJob)
}

// SetupMiddleware configures the error handler shared by all routes
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
