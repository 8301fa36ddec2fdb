// handlers_submit.go - Submission and processing session handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lab-automation/backend/internal/table"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	progressPollInterval = 100 * time.Millisecond
	progressStreamLimit  = 5 * time.Minute
)

// SubmitHandlerImpl implements the SubmitHandler interface
type SubmitHandlerImpl struct {
	ws       Workspace
	sessions SessionManager
	tableCfg table.Config
	maxRows  int
}

// NewSubmitHandler creates a new submit handler
func NewSubmitHandler(ws Workspace, sessions SessionManager, tableCfg table.Config, maxRows int) SubmitHandler {
	return &SubmitHandlerImpl{
		ws:       ws,
		sessions: sessions,
		tableCfg: tableCfg,
		maxRows:  maxRows,
	}
}

// HandleSubmit starts processing the uploaded files
func (h *SubmitHandlerImpl) HandleSubmit(c echo.Context) error {
	sess, err := h.ws.Submit()
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusAccepted, sess)
}

// HandleCancelSubmit aborts the in-flight submission
func (h *SubmitHandlerImpl) HandleCancelSubmit(c echo.Context) error {
	if err := h.ws.CancelSubmit(); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// HandleSessionStatus returns the current status of a processing session
func (h *SubmitHandlerImpl) HandleSessionStatus(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	sess, ok := h.sessions.Get(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive marks a session as recently used so cleanup keeps it
func (h *SubmitHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionProgressStream streams processing progress via SSE
func (h *SubmitHandlerImpl) HandleSessionProgressStream(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessions.Get(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}
	sendSSEData(c, sess)
	if sess.Status.Finished() {
		return nil
	}

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(progressStreamLimit)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessions.Get(id)
			if !ok {
				sendSSEError(c, "session not found")
				return nil
			}

			sendSSEData(c, sess)

			if sess.Status.Finished() {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleSessionRows returns one page of a finished session's rows. Paging,
// sort and filters come from the query string and are not stored.
func (h *SubmitHandlerImpl) HandleSessionRows(c echo.Context) error {
	page, err := h.queryRows(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// HandleSessionRowsMsgpack is HandleSessionRows with msgpack encoding
func (h *SubmitHandlerImpl) HandleSessionRowsMsgpack(c echo.Context) error {
	page, err := h.queryRows(c)
	if err != nil {
		return err
	}
	return respondMsgpack(c, page)
}

func (h *SubmitHandlerImpl) queryRows(c echo.Context) (table.Page, error) {
	id := c.Param("id")
	if id == "" {
		return table.Page{}, NewValidationError("id")
	}

	src, ok := h.sessions.Source(id)
	if !ok {
		return table.Page{}, NewNotFoundError("session", id)
	}

	cfg := h.tableCfg
	if v := c.QueryParam("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return table.Page{}, NewValidationError("pageSize")
		}
		cfg.PageSize = n
	}
	if h.maxRows > 0 && cfg.PageSize > h.maxRows {
		cfg.PageSize = h.maxRows
	}

	state := stateFromQuery(c)
	page, _, err := table.NewView(src, cfg).Render(c.Request().Context(), state)
	if err != nil {
		return table.Page{}, NewInternalError("failed to query rows", err)
	}
	return page, nil
}

// stateFromQuery reads page, sort, order and filter.<column> parameters.
func stateFromQuery(c echo.Context) table.State {
	state := table.NewState()
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		state.Page = p
	}
	if key := c.QueryParam("sort"); key != "" {
		state.Sort = table.Sort{Key: key, Direction: table.Asc}
		if strings.EqualFold(c.QueryParam("order"), string(table.Desc)) {
			state.Sort.Direction = table.Desc
		}
	}
	for name, values := range c.QueryParams() {
		if col, ok := strings.CutPrefix(name, "filter."); ok && col != "" && len(values) > 0 {
			state.Filters[col] = values[0]
		}
	}
	return state
}

// Helper functions

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}

func respondMsgpack(c echo.Context, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}
