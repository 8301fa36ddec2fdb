// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/lab-automation/backend/internal/table"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Workspace     Workspace
	Sessions      SessionManager
	UploadJobs    UploadJobs
	Table         table.Config
	MaxRows       int
	ProcessorName string
	Version       string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Workspace WorkspaceHandler
	Upload    UploadHandler
	Submit    SubmitHandler
	Table     TableHandler
	Process   ProcessHandler
	Progress  ProgressSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.ProcessorName, deps.Sessions),
		Workspace: NewWorkspaceHandler(deps.Workspace),
		Upload:    NewUploadHandler(deps.Workspace, deps.UploadJobs),
		Submit:    NewSubmitHandler(deps.Workspace, deps.Sessions, deps.Table, deps.MaxRows),
		Table:     NewTableHandler(deps.Workspace),
		Process:   NewProcessHandler(),
		Progress:  NewWebSocketHandler(deps.Sessions),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers, processEndpoint string) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Workspace
	apiGroup.GET("/state", handlers.Workspace.HandleGetState)
	apiGroup.POST("/columns", handlers.Workspace.HandleAddColumn)
	apiGroup.DELETE("/columns/:name", handlers.Workspace.HandleRemoveColumn)
	apiGroup.GET("/file-types", handlers.Workspace.HandleGetFileTypes)
	apiGroup.PUT("/file-type", handlers.Workspace.HandleSetFileType)
	apiGroup.PUT("/theme", handlers.Workspace.HandleSetTheme)

	// File upload routes
	apiGroup.POST("/files", handlers.Upload.HandleUploadFiles)
	apiGroup.GET("/files", handlers.Upload.HandleListFiles)
	apiGroup.DELETE("/files/:id", handlers.Upload.HandleDeleteFile)
	apiGroup.DELETE("/files", handlers.Upload.HandleClearFiles)
	apiGroup.GET("/uploads/:jobId", handlers.Upload.HandleUploadJobStatus)

	// Submission and session routes
	apiGroup.POST("/submit", handlers.Submit.HandleSubmit)
	apiGroup.POST("/submit/cancel", handlers.Submit.HandleCancelSubmit)
	apiGroup.GET("/sessions/:id", handlers.Submit.HandleSessionStatus)
	apiGroup.POST("/sessions/:id/keepalive", handlers.Submit.HandleSessionKeepAlive)
	apiGroup.GET("/sessions/:id/progress", handlers.Submit.HandleSessionProgressStream)
	apiGroup.GET("/sessions/:id/rows", handlers.Submit.HandleSessionRows)
	apiGroup.GET("/sessions/:id/rows/msgpack", handlers.Submit.HandleSessionRowsMsgpack)
	apiGroup.GET("/ws/sessions/:id", handlers.Progress.HandleProgressSocket)

	// Table viewer routes
	tableGroup := apiGroup.Group("/table")
	tableGroup.GET("", handlers.Table.HandleGetTable)
	tableGroup.GET("/msgpack", handlers.Table.HandleGetTableMsgpack)
	tableGroup.PUT("/filters/:column", handlers.Table.HandleSetFilter)
	tableGroup.DELETE("/filters/:column", handlers.Table.HandleClearFilter)
	tableGroup.POST("/sort/:column", handlers.Table.HandleToggleSort)
	tableGroup.PUT("/page", handlers.Table.HandleSetPage)
	tableGroup.GET("/export", handlers.Table.HandleExport)
	tableGroup.DELETE("", handlers.Table.HandleCloseTable)

	// Mock processing backend
	if processEndpoint != "" {
		e.POST(processEndpoint, handlers.Process.HandleProcess)
	}
}

// MiddlewareOptions configures SetupMiddleware
type MiddlewareOptions struct {
	RequestLogging   bool
	Compression      bool
	CompressionLevel int
	BodyLimit        string
	EnableCORS       bool
	AllowOrigins     []string
	Logger           *slog.Logger
}

// streaming reports whether a request holds its connection open.
func streaming(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/progress") ||
		strings.HasPrefix(path, "/api/ws/") ||
		c.Request().Header.Get("Accept") == "text/event-stream"
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !opts.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") || path == "/api/health"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"component", "http", "method", v.Method, "uri", v.URI,
				"status", v.Status, "latency_ms", v.Latency.Milliseconds()}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if opts.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level:   opts.CompressionLevel,
			Skipper: streaming,
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.EnableCORS {
		origins := opts.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
