package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lab-automation/backend/internal/api"
	"github.com/lab-automation/backend/internal/config"
	"github.com/lab-automation/backend/internal/logging"
	"github.com/lab-automation/backend/internal/process"
	"github.com/lab-automation/backend/internal/session"
	"github.com/lab-automation/backend/internal/storage"
	"github.com/lab-automation/backend/internal/table"
	"github.com/lab-automation/backend/internal/upload"
	"github.com/lab-automation/backend/internal/web"
	"github.com/lab-automation/backend/internal/workspace"
	"github.com/labstack/echo/v4"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join(filepath.Dir(exePath), "LabTableGenerator.config.xml")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, closeLogs := logging.SetupLogger(logging.Options{
		Level:  cfg.Advanced.LogLevel,
		SeqURL: cfg.Advanced.SeqURL,
	})
	defer closeLogs()
	slog.SetDefault(logger)

	if err := run(cfg, configPath, logger); err != nil {
		logger.Error("server stopped", "error", err)
		closeLogs()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, configPath string, logger *slog.Logger) error {
	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	fileTypes, err := upload.LoadFileTypes(cfg.Upload.FileTypesFile)
	if err != nil {
		return fmt.Errorf("failed to load file types: %w", err)
	}

	limits := upload.Limits{
		MaxFileSize:  cfg.Upload.MaxFileSizeBytes,
		MaxFiles:     cfg.Upload.MaxFiles,
		AllowedTypes: cfg.AllowedTypes(),
	}
	uploadMgr := upload.NewManager(fileStore, limits, upload.LinearDelay(cfg.UploadDelays()))

	processor := newProcessor(cfg)
	sessionMgr := session.NewManager(processor, session.Options{
		TempDir:     cfg.Storage.TempDirectory,
		Backend:     session.Backend(cfg.Table.Backend),
		MaxSessions: cfg.Processing.MaxSessions,
	})
	defer sessionMgr.CloseAll()

	tableCfg := table.Config{
		PageSize:         cfg.Table.PageSize,
		EnablePagination: cfg.Table.EnablePagination,
		EnableSorting:    cfg.Table.EnableSorting,
		EnableFiltering:  cfg.Table.EnableFiltering,
	}
	ws := workspace.New(uploadMgr, sessionMgr, workspace.Options{
		FileTypes:       fileTypes,
		DefaultFileType: cfg.Upload.DefaultFileType,
		DefaultTheme:    workspace.Theme(cfg.UI.DefaultTheme),
		ToastDuration:   cfg.ToastDuration(),
		Table:           tableCfg,
		Now:             time.Now,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		interval := cfg.CleanupInterval()
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
				uploadMgr.CleanupOldJobs(cfg.SessionTimeout())
			case <-ctx.Done():
				return
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging:   cfg.Advanced.EnableRequestLogging,
		Compression:      cfg.Advanced.EnableCompression,
		CompressionLevel: cfg.Advanced.CompressionLevel,
		BodyLimit:        cfg.Server.BodyLimit,
		EnableCORS:       cfg.Server.EnableCORS,
		AllowOrigins:     splitOrigins(cfg.Server.AllowOrigins),
		Logger:           logger,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Workspace:     ws,
		Sessions:      sessionMgr,
		UploadJobs:    uploadMgr,
		Table:         tableCfg,
		MaxRows:       cfg.Table.MaxRows,
		ProcessorName: processor.Name(),
		Version:       Version,
	})
	api.RegisterRoutes(e, handlers, cfg.Processing.Endpoint)

	// Register embedded frontend if available
	embeddedMode := web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("failed to register static routes", "error", err)
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logger.Info("lab table generator starting",
		"version", Version,
		"build_time", BuildTime,
		"config", configPath,
		"listen", "http://"+cfg.GetServerAddr(),
		"data_dir", cfg.Storage.DataDirectory,
		"processor", processor.Name(),
		"table_backend", cfg.Table.Backend,
		"embedded_frontend", embeddedMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	uploadMgr.CancelJob()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newProcessor builds the configured processor. A remote processor without a
// base URL posts to this server's own mock endpoint.
func newProcessor(cfg *config.AppConfig) process.Processor {
	if cfg.Processing.Processor != "remote" {
		return process.NewSimulatedProcessor(cfg.ProgressInterval(), cfg.Processing.Endpoint)
	}
	baseURL := cfg.Processing.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}
	return process.NewRemoteProcessor(baseURL, cfg.Processing.Endpoint,
		cfg.ProcessTimeout(), cfg.Processing.MaxRetries, cfg.RetryDelay())
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
