// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"LabTableGenerator"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Upload validation and simulated transfer
	Upload UploadConfig `xml:"Upload"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Table display
	Table TableConfig `xml:"Table"`

	// Front-end defaults
	UI UIConfig `xml:"UI"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	TempDirectory    string `xml:"TempDirectory"`
}

// UploadConfig contains upload validation settings
type UploadConfig struct {
	MaxFileSizeBytes int64  `xml:"MaxFileSizeBytes"`
	MaxFiles         int    `xml:"MaxFiles"`
	AllowedTypes     string `xml:"AllowedTypes"`
	DefaultFileType  string `xml:"DefaultFileType"`
	// FileTypesFile is an optional YAML file with the upload categories.
	FileTypesFile  string `xml:"FileTypesFile"`
	BaseDelayMs    int    `xml:"BaseDelayMs"`
	PerFileDelayMs int    `xml:"PerFileDelayMs"`
	MaxDelayMs     int    `xml:"MaxDelayMs"`
}

// ProcessingConfig contains submission processing settings
type ProcessingConfig struct {
	// Processor is "simulated" or "remote".
	Processor              string `xml:"Processor"`
	BaseURL                string `xml:"BaseURL"`
	Endpoint               string `xml:"Endpoint"`
	TimeoutSeconds         int    `xml:"TimeoutSeconds"`
	MaxRetries             int    `xml:"MaxRetries"`
	RetryDelayMs           int    `xml:"RetryDelayMs"`
	ProgressIntervalMs     int    `xml:"ProgressIntervalMs"`
	MaxSessions            int    `xml:"MaxSessions"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
}

// TableConfig contains table display settings
type TableConfig struct {
	PageSize         int  `xml:"PageSize"`
	MaxRows          int  `xml:"MaxRows"`
	EnablePagination bool `xml:"EnablePagination"`
	EnableSorting    bool `xml:"EnableSorting"`
	EnableFiltering  bool `xml:"EnableFiltering"`
	// Backend is "memory" or "duckdb".
	Backend string `xml:"Backend"`
}

// UIConfig contains front-end defaults
type UIConfig struct {
	DefaultTheme    string `xml:"DefaultTheme"`
	ToastDurationMs int    `xml:"ToastDurationMs"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	SeqURL               string `xml:"SeqURL"`
	EnableCompression    bool   `xml:"EnableCompression"`
	CompressionLevel     int    `xml:"CompressionLevel"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "120M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			TempDirectory:    "./data/temp",
		},
		Upload: UploadConfig{
			MaxFileSizeBytes: 10 * 1024 * 1024,
			MaxFiles:         10,
			AllowedTypes:     "text/csv,application/vnd.ms-excel,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/plain,application/pdf,image/jpeg,image/png,image/gif",
			DefaultFileType:  "csv",
			BaseDelayMs:      1000,
			PerFileDelayMs:   200,
			MaxDelayMs:       3000,
		},
		Processing: ProcessingConfig{
			Processor:              "simulated",
			Endpoint:               "/api/process",
			TimeoutSeconds:         30,
			MaxRetries:             2,
			RetryDelayMs:           1000,
			ProgressIntervalMs:     200,
			MaxSessions:            10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Table: TableConfig{
			PageSize:         50,
			MaxRows:          1000,
			EnablePagination: true,
			EnableSorting:    true,
			EnableFiltering:  true,
			Backend:          "memory",
		},
		UI: UIConfig{
			DefaultTheme:    "forest-green",
			ToastDurationMs: 3000,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			EnableCompression:    true,
			CompressionLevel:     5,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Elements missing from the file keep their defaults.
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Lab Table Generator Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// envFlag turns a feature off only for an explicit "false".
func envFlag(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		*dst = !strings.EqualFold(strings.TrimSpace(v), "false")
	}
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	envInt("PORT", &c.Server.Port)
	envString("DATA_DIR", &c.Storage.DataDirectory)

	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Upload.MaxFileSizeBytes = n
		}
	}
	envInt("MAX_FILES", &c.Upload.MaxFiles)
	envString("ALLOWED_TYPES", &c.Upload.AllowedTypes)

	envInt("PAGE_SIZE", &c.Table.PageSize)
	envInt("TABLE_MAX_ROWS", &c.Table.MaxRows)
	envFlag("ENABLE_PAGINATION", &c.Table.EnablePagination)
	envFlag("ENABLE_SORTING", &c.Table.EnableSorting)
	envFlag("ENABLE_FILTERING", &c.Table.EnableFiltering)

	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.Processing.BaseURL = v
		c.Processing.Processor = "remote"
	}
	envString("PROCESS_ENDPOINT", &c.Processing.Endpoint)
	if v := os.Getenv("API_TIMEOUT"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Processing.TimeoutSeconds = max(1, ms/1000)
		}
	}
	envInt("MAX_RETRIES", &c.Processing.MaxRetries)
	envInt("RETRY_DELAY", &c.Processing.RetryDelayMs)

	envString("SEQ_URL", &c.Advanced.SeqURL)
	envString("LOG_LEVEL", &c.Advanced.LogLevel)
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.TempDirectory,
		&c.Upload.FileTypesFile,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// AllowedTypes returns the global MIME allow-list.
func (c *AppConfig) AllowedTypes() []string {
	var types []string
	for _, t := range strings.Split(c.Upload.AllowedTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// UploadDelays returns the simulated transfer delay parameters.
func (c *AppConfig) UploadDelays() (base, perFile, ceiling time.Duration) {
	return ms(c.Upload.BaseDelayMs), ms(c.Upload.PerFileDelayMs), ms(c.Upload.MaxDelayMs)
}

// ProcessTimeout returns the per-request timeout of the remote processor.
func (c *AppConfig) ProcessTimeout() time.Duration {
	return time.Duration(c.Processing.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base backoff of the remote processor.
func (c *AppConfig) RetryDelay() time.Duration {
	return ms(c.Processing.RetryDelayMs)
}

// ProgressInterval returns the tick of the simulated processor.
func (c *AppConfig) ProgressInterval() time.Duration {
	return ms(c.Processing.ProgressIntervalMs)
}

// SessionTimeout returns how long a finished session is kept without access.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the period of the cleanup ticker.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// ToastDuration returns how long a notification stays visible.
func (c *AppConfig) ToastDuration() time.Duration {
	return ms(c.UI.ToastDurationMs)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
