// handlers_table.go - Table viewer handlers
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lab-automation/backend/internal/export"
	"github.com/labstack/echo/v4"
)

// TableHandlerImpl implements the TableHandler interface
type TableHandlerImpl struct {
	ws Workspace
}

// NewTableHandler creates a new table handler
func NewTableHandler(ws Workspace) TableHandler {
	return &TableHandlerImpl{ws: ws}
}

// HandleGetTable renders the current page
func (h *TableHandlerImpl) HandleGetTable(c echo.Context) error {
	page, err := h.ws.RenderTable(c.Request().Context())
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, page)
}

// HandleGetTableMsgpack renders the current page as msgpack
func (h *TableHandlerImpl) HandleGetTableMsgpack(c echo.Context) error {
	page, err := h.ws.RenderTable(c.Request().Context())
	if err != nil {
		return FromError(err)
	}
	return respondMsgpack(c, page)
}

// HandleSetFilter sets the filter text of one column
func (h *TableHandlerImpl) HandleSetFilter(c echo.Context) error {
	column, err := columnParam(c)
	if err != nil {
		return err
	}
	var req filterRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.ws.SetFilter(column, req.Value); err != nil {
		return FromError(err)
	}
	return h.HandleGetTable(c)
}

// HandleClearFilter removes the filter of one column
func (h *TableHandlerImpl) HandleClearFilter(c echo.Context) error {
	column, err := columnParam(c)
	if err != nil {
		return err
	}
	if err := h.ws.ClearFilter(column); err != nil {
		return FromError(err)
	}
	return h.HandleGetTable(c)
}

// HandleToggleSort sorts by a column or flips its direction
func (h *TableHandlerImpl) HandleToggleSort(c echo.Context) error {
	column, err := columnParam(c)
	if err != nil {
		return err
	}
	if _, err := h.ws.ToggleSort(column); err != nil {
		return FromError(err)
	}
	return h.HandleGetTable(c)
}

// HandleSetPage moves to a page, clamped to the available range
func (h *TableHandlerImpl) HandleSetPage(c echo.Context) error {
	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	page, err := h.ws.GoToPage(c.Request().Context(), req.Page)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, page)
}

// HandleExport downloads every filtered and sorted row as xlsx or csv
func (h *TableHandlerImpl) HandleExport(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError("unsupported export format", err)
	}

	page, err := h.ws.ExportView(c.Request().Context())
	if err != nil {
		return FromError(err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, page); err != nil {
		return NewInternalError("failed to export table", err)
	}

	name := format.Filename("table_" + time.Now().Format("20060102_150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}

// HandleCloseTable hides the viewer and discards its dataset
func (h *TableHandlerImpl) HandleCloseTable(c echo.Context) error {
	if err := h.ws.CloseTable(); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Request types

type filterRequest struct {
	Value string `json:"value"`
}

type pageRequest struct {
	Page int `json:"page"`
}

func columnParam(c echo.Context) (string, error) {
	column, err := url.PathUnescape(c.Param("column"))
	if err != nil || column == "" {
		return "", NewValidationError("column")
	}
	return column, nil
}
