// handlers_upload.go - File selection and upload handlers
package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/image-uploader/backend/internal/models"
	"github.com/image-uploader/backend/internal/session"
	"github.com/image-uploader/backend/internal/storage"
	"github.com/image-uploader/backend/internal/upload"
	"github.com/image-uploader/backend/internal/widget"
	"github.com/labstack/echo/v4"
)

// FilesField is the multipart field the page sends selected files under.
const FilesField = "files"

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	sessions *session.Manager
	jobs     *upload.Manager
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(sessions *session.Manager, jobs *upload.Manager) UploadHandler {
	return &UploadHandlerImpl{
		sessions: sessions,
		jobs:     jobs,
	}
}

// HandleSelectFiles stages the files of a picker selection or a drop and
// hands them to the widget. A drop with no allowed types still answers 200:
// the rejection is shown on the widget's status line.
func (h *UploadHandlerImpl) HandleSelectFiles(c echo.Context) error {
	w, err := lookupWidget(h.sessions, c)
	if err != nil {
		return err
	}

	source, ok := models.ParseSource(c.QueryParam("source"))
	if !ok {
		return NewValidationError("source")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart body", err)
	}
	defer form.RemoveAll()

	handles, err := h.stageFiles(form.File[FilesField])
	if err != nil {
		return err
	}

	var released []models.FileHandle
	if source == models.SourceDrop {
		released, err = w.Drop(handles)
	} else {
		released, err = w.SelectFiles(source, handles)
	}
	h.sessions.Release(released)

	switch {
	case errors.Is(err, widget.ErrUploadInProgress):
		return NewConflictError("UPLOAD_IN_PROGRESS", "an upload is in progress")
	case errors.Is(err, widget.ErrClosed):
		return NewNotFoundError("widget", w.ID())
	case err != nil && !errors.Is(err, widget.ErrRejected):
		return NewInternalError("failed to select files", err)
	}

	return c.JSON(http.StatusOK, w.Snapshot())
}

// stageFiles saves every file header to storage, in order. On failure the
// files staged so far are released.
func (h *UploadHandlerImpl) stageFiles(headers []*multipart.FileHeader) ([]models.FileHandle, error) {
	store := h.sessions.Store()
	handles := make([]models.FileHandle, 0, len(headers))

	for _, fh := range headers {
		info, err := stageFile(store, fh)
		if err != nil {
			h.sessions.Release(handles)
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, NewPayloadTooLargeError(fmt.Sprintf("%s is too large", fh.Filename))
			}
			return nil, NewInternalError("failed to stage file", err)
		}
		handles = append(handles, info.Handle())
	}

	return handles, nil
}

func stageFile(store storage.Store, fh *multipart.FileHeader) (*models.FileInfo, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer src.Close()

	return store.Save(fh.Filename, fh.Header.Get("Content-Type"), src)
}

// HandleStartUpload starts a background upload of the widget's selection
func (h *UploadHandlerImpl) HandleStartUpload(c echo.Context) error {
	w, err := lookupWidget(h.sessions, c)
	if err != nil {
		return err
	}

	job, err := h.jobs.StartJob(w)
	switch {
	case errors.Is(err, widget.ErrNoFiles):
		return NewConflictError("NO_FILES", "no file selected")
	case errors.Is(err, widget.ErrUploadInProgress):
		return NewConflictError("UPLOAD_IN_PROGRESS", "an upload is in progress")
	case err != nil:
		return NewInternalError("failed to start upload", err)
	}

	return c.JSON(http.StatusAccepted, startUploadResponse{
		Job:    job,
		Widget: w.Snapshot(),
	})
}

// HandleGetUploadJob returns the status of an upload job
func (h *UploadHandlerImpl) HandleGetUploadJob(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}
	return c.JSON(http.StatusOK, job)
}

type startUploadResponse struct {
	Job    *upload.Job           `json:"job"`
	Widget models.WidgetSnapshot `json:"widget"`
}
