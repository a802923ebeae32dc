// handlers_widget.go - Widget lifecycle and drag event handlers
package api

import (
	"net/http"

	"github.com/image-uploader/backend/internal/session"
	"github.com/image-uploader/backend/internal/widget"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// WidgetHandlerImpl implements the WidgetHandler interface
type WidgetHandlerImpl struct {
	sessions *session.Manager
}

// NewWidgetHandler creates a new widget handler
func NewWidgetHandler(sessions *session.Manager) WidgetHandler {
	return &WidgetHandlerImpl{sessions: sessions}
}

// HandleMountWidget creates a widget for a freshly loaded page
func (h *WidgetHandlerImpl) HandleMountWidget(c echo.Context) error {
	w := h.sessions.Mount()
	return c.JSON(http.StatusCreated, w.Snapshot())
}

// HandleGetWidget returns the current widget snapshot as JSON
func (h *WidgetHandlerImpl) HandleGetWidget(c echo.Context) error {
	w, err := lookupWidget(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

// HandleGetWidgetMsgpack returns the current widget snapshot as msgpack
func (h *WidgetHandlerImpl) HandleGetWidgetMsgpack(c echo.Context) error {
	w, err := lookupWidget(h.sessions, c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(w.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode snapshot", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleUnmountWidget discards a widget and its staged files
func (h *WidgetHandlerImpl) HandleUnmountWidget(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if err := h.sessions.Unmount(id); err != nil {
		return NewNotFoundError("widget", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDragEvent applies a dragenter/dragover/dragleave event to the widget
func (h *WidgetHandlerImpl) HandleDragEvent(c echo.Context) error {
	w, err := lookupWidget(h.sessions, c)
	if err != nil {
		return err
	}

	var req dragEventRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	switch req.Event {
	case "enter":
		w.DragEnter()
	case "over":
		w.DragOver()
	case "leave":
		w.DragLeave(req.LeftZone)
	default:
		return NewValidationError("event")
	}

	return c.JSON(http.StatusOK, w.Snapshot())
}

type dragEventRequest struct {
	Event    string `json:"event"`    // "enter", "over", "leave"
	LeftZone bool   `json:"leftZone"` // leave only: related target is outside the dropzone
}

// lookupWidget resolves the :id path parameter to a mounted widget
func lookupWidget(sessions *session.Manager, c echo.Context) (*widget.Widget, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	w, ok := sessions.Get(id)
	if !ok {
		return nil, NewNotFoundError("widget", id)
	}
	return w, nil
}
