// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/lab-automation/backend/internal/models"
	"github.com/lab-automation/backend/internal/table"
	"github.com/lab-automation/backend/internal/upload"
	"github.com/lab-automation/backend/internal/workspace"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// WorkspaceHandler handles column, category and theme operations
type WorkspaceHandler interface {
	HandleGetState(c echo.Context) error
	HandleAddColumn(c echo.Context) error
	HandleRemoveColumn(c echo.Context) error
	HandleGetFileTypes(c echo.Context) error
	HandleSetFileType(c echo.Context) error
	HandleSetTheme(c echo.Context) error
}

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFiles(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleClearFiles(c echo.Context) error
	HandleUploadJobStatus(c echo.Context) error
}

// SubmitHandler handles processing sessions
type SubmitHandler interface {
	HandleSubmit(c echo.Context) error
	HandleCancelSubmit(c echo.Context) error
	HandleSessionStatus(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleSessionProgressStream(c echo.Context) error
	HandleSessionRows(c echo.Context) error
	HandleSessionRowsMsgpack(c echo.Context) error
}

// TableHandler handles the workspace table viewer
type TableHandler interface {
	HandleGetTable(c echo.Context) error
	HandleGetTableMsgpack(c echo.Context) error
	HandleSetFilter(c echo.Context) error
	HandleClearFilter(c echo.Context) error
	HandleToggleSort(c echo.Context) error
	HandleSetPage(c echo.Context) error
	HandleExport(c echo.Context) error
	HandleCloseTable(c echo.Context) error
}

// ProcessHandler answers submission payloads with generated rows
type ProcessHandler interface {
	HandleProcess(c echo.Context) error
}

// ProgressSocketHandler pushes session progress over WebSocket
type ProgressSocketHandler interface {
	HandleProgressSocket(c echo.Context) error
}

// Workspace defines the state store operations the handlers drive.
// This allows mocking in tests
type Workspace interface {
	Snapshot() workspace.Snapshot
	AddColumn(name string) error
	RemoveColumn(name string) error
	FileTypes() upload.FileTypes
	SetFileType(key string) error
	SetTheme(theme workspace.Theme) error
	UploadFiles(batch []upload.Incoming) (upload.Job, error)
	Files() []models.FileInfo
	RemoveFile(id string) error
	ClearFiles() int
	Submit() (models.ProcessSession, error)
	CancelSubmit() error
	SetFilter(column, value string) error
	ClearFilter(column string) error
	ToggleSort(column string) (table.Sort, error)
	GoToPage(ctx context.Context, page int) (table.Page, error)
	RenderTable(ctx context.Context) (table.Page, error)
	ExportView(ctx context.Context) (table.Page, error)
	CloseTable() error
}

// SessionManager defines the interface for session lookups
type SessionManager interface {
	Get(id string) (models.ProcessSession, bool)
	Source(id string) (table.Source, bool)
	TouchSession(id string) bool
	Len() int
}

// UploadJobs looks up upload jobs by id
type UploadJobs interface {
	Job(id string) (upload.Job, bool)
}
