// handlers_process.go - Mock processing backend
package api

import (
	"log/slog"
	"net/http"

	"github.com/lab-automation/backend/internal/mockgen"
	"github.com/lab-automation/backend/internal/models"
	"github.com/lab-automation/backend/internal/process"
	"github.com/labstack/echo/v4"
)

// ProcessHandlerImpl implements the ProcessHandler interface
type ProcessHandlerImpl struct {
	generate func(columns []string, fileCount int) (models.Dataset, error)
}

// NewProcessHandler creates a mock backend that answers with generated rows
func NewProcessHandler() ProcessHandler {
	return &ProcessHandlerImpl{generate: mockgen.Generate}
}

type processResponse struct {
	Columns  []string     `json:"columns"`
	Rows     []models.Row `json:"rows"`
	RowCount int          `json:"rowCount"`
}

// HandleProcess accepts a submission payload and returns a generated dataset
func (h *ProcessHandlerImpl) HandleProcess(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("Invalid request. Please check your files and column names.", err)
	}

	sub, err := process.ParseSubmission(form)
	if err != nil {
		return FromError(err)
	}

	slog.Info("submission received", "component", "process",
		"files", len(sub.Files), "columns", len(sub.Columns), "total_size", sub.Metadata.TotalSize)

	ds, err := h.generate(sub.Columns, len(sub.Files))
	if err != nil {
		return NewInternalError("failed to generate rows", err)
	}

	return c.JSON(http.StatusOK, processResponse{
		Columns:  ds.Columns,
		Rows:     ds.Rows,
		RowCount: ds.Len(),
	})
}
