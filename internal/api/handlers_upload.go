// handlers_upload.go - File upload operation handlers
package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/lab-automation/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	ws   Workspace
	jobs UploadJobs
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(ws Workspace, jobs UploadJobs) UploadHandler {
	return &UploadHandlerImpl{
		ws:   ws,
		jobs: jobs,
	}
}

// HandleUploadFiles accepts a multipart batch under "files". An optional
// "lastModified" value (unix ms) per file is matched by position.
func (h *UploadHandlerImpl) HandleUploadFiles(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}

	batch := incomingFromForm(form, time.Now())
	job, err := h.ws.UploadFiles(batch)
	if err != nil {
		return FromError(err)
	}

	return c.JSON(http.StatusAccepted, job)
}

// HandleListFiles returns the upload list in upload order
func (h *UploadHandlerImpl) HandleListFiles(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ws.Files())
}

// HandleDeleteFile removes one file from the upload list
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.ws.RemoveFile(id); err != nil {
		return FromError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleClearFiles empties the upload list
func (h *UploadHandlerImpl) HandleClearFiles(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"removed": h.ws.ClearFiles()})
}

// HandleUploadJobStatus returns the status of an upload job
func (h *UploadHandlerImpl) HandleUploadJobStatus(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}

	job, ok := h.jobs.Job(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}

	return c.JSON(http.StatusOK, job)
}

// Helper functions

func incomingFromForm(form *multipart.Form, now time.Time) []upload.Incoming {
	headers := form.File["files"]
	modified := form.Value["lastModified"]

	batch := make([]upload.Incoming, len(headers))
	for i, fh := range headers {
		lastModified := now
		if i < len(modified) {
			if ms, err := strconv.ParseInt(modified[i], 10, 64); err == nil {
				lastModified = time.UnixMilli(ms)
			}
		}
		batch[i] = upload.Incoming{
			Name:         fh.Filename,
			Size:         fh.Size,
			MIMEType:     fh.Header.Get(echo.HeaderContentType),
			LastModified: lastModified,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}
	return batch
}
