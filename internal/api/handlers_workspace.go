// handlers_workspace.go - Column, file category and theme handlers
package api

import (
	"net/http"
	"net/url"

	"github.com/lab-automation/backend/internal/workspace"
	"github.com/labstack/echo/v4"
)

// WorkspaceHandlerImpl implements the WorkspaceHandler interface
type WorkspaceHandlerImpl struct {
	ws Workspace
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(ws Workspace) WorkspaceHandler {
	return &WorkspaceHandlerImpl{ws: ws}
}

// HandleGetState returns the workspace snapshot
func (h *WorkspaceHandlerImpl) HandleGetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ws.Snapshot())
}

// HandleAddColumn appends a column name
func (h *WorkspaceHandlerImpl) HandleAddColumn(c echo.Context) error {
	var req columnRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.ws.AddColumn(req.Name); err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusCreated, h.ws.Snapshot())
}

// HandleRemoveColumn removes a column name
func (h *WorkspaceHandlerImpl) HandleRemoveColumn(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || name == "" {
		return NewValidationError("name")
	}
	if err := h.ws.RemoveColumn(name); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetFileTypes returns the upload categories
func (h *WorkspaceHandlerImpl) HandleGetFileTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ws.FileTypes())
}

// HandleSetFileType selects the upload category
func (h *WorkspaceHandlerImpl) HandleSetFileType(c echo.Context) error {
	var req fileTypeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Category == "" {
		return NewValidationError("category")
	}
	if err := h.ws.SetFileType(req.Category); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSetTheme selects the color scheme
func (h *WorkspaceHandlerImpl) HandleSetTheme(c echo.Context) error {
	var req themeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.ws.SetTheme(workspace.Theme(req.Theme)); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Request types

type columnRequest struct {
	Name string `json:"name"`
}

type fileTypeRequest struct {
	Category string `json:"category"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}
