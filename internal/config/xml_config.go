// Package config provides file-based configuration for the uploader server.
// XML is the default format; files ending in .yaml or .yml are read as YAML.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/bytes"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ImageUploader" yaml:"-"`

	Server   ServerConfig   `xml:"Server" yaml:"server"`
	Storage  StorageConfig  `xml:"Storage" yaml:"storage"`
	Upload   UploadConfig   `xml:"Upload" yaml:"upload"`
	Widgets  WidgetConfig   `xml:"Widgets" yaml:"widgets"`
	Advanced AdvancedConfig `xml:"Advanced" yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port" yaml:"port"`
	BindAddress  string `xml:"BindAddress" yaml:"bindAddress"`
	EnableCORS   bool   `xml:"EnableCORS" yaml:"enableCORS"`
	AllowOrigins string `xml:"AllowOrigins" yaml:"allowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds" yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds" yaml:"idleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit" yaml:"bodyLimit"`
}

// StorageConfig contains staging storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory" yaml:"dataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory" yaml:"uploadsDirectory"`
	MaxFileSize      string `xml:"MaxFileSize" yaml:"maxFileSize"`
}

// UploadConfig describes the fixed outbound request
type UploadConfig struct {
	Endpoint     string `xml:"Endpoint" yaml:"endpoint"`
	HeaderName   string `xml:"HeaderName" yaml:"headerName"`
	HeaderValue  string `xml:"HeaderValue" yaml:"headerValue"`
	AllowedTypes string `xml:"AllowedTypes" yaml:"allowedTypes"`
}

// WidgetConfig contains widget lifecycle settings
type WidgetConfig struct {
	MaxWidgets             int `xml:"MaxWidgets" yaml:"maxWidgets"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes" yaml:"sessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes" yaml:"cleanupIntervalMinutes"`
	JobRetentionMinutes    int `xml:"JobRetentionMinutes" yaml:"jobRetentionMinutes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel" yaml:"logLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging" yaml:"enableRequestLogging"`
	ProgressPushIntervalMs  int    `xml:"ProgressPushIntervalMs" yaml:"progressPushIntervalMs"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB" yaml:"webSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   false,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "64M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/staged",
			MaxFileSize:      "20M",
		},
		Upload: UploadConfig{
			Endpoint:     "https://httpbin.org/post",
			HeaderName:   "Custom-Header",
			HeaderValue:  "value",
			AllowedTypes: "image/png,image/jpeg",
		},
		Widgets: WidgetConfig{
			MaxWidgets:             100,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			JobRetentionMinutes:    60,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			ProgressPushIntervalMs:  100,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from an XML or YAML file. A missing file is
// created with defaults. A .env file next to the config is loaded before
// environment overrides are applied.
func LoadConfig(configPath string) (*AppConfig, error) {
	configDir := filepath.Dir(configPath)
	if err := loadDotEnv(configDir); err != nil {
		return nil, err
	}

	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := config.unmarshal(configPath, data); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(configDir)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *AppConfig) unmarshal(path string, data []byte) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, c)
	}
	return xml.Unmarshal(data, c)
}

// Save writes the configuration in the format implied by configPath
func (c *AppConfig) Save(configPath string) error {
	var content []byte
	if isYAML(configPath) {
		output, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		content = append([]byte("# Image Uploader Configuration\n# This file is auto-generated on first run\n\n"), output...)
	} else {
		output, err := xml.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		header := []byte(xml.Header + "\n<!-- Image Uploader Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
		content = append(header, output...)
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// loadDotEnv loads dir/.env into the process environment. Variables that are
// already set win.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "staged")
	}

	if endpoint := os.Getenv("UPLOAD_ENDPOINT"); endpoint != "" {
		c.Upload.Endpoint = endpoint
	}

	if value := os.Getenv("UPLOAD_HEADER_VALUE"); value != "" {
		c.Upload.HeaderValue = value
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
}

// Validate checks values that would otherwise fail at request time
func (c *AppConfig) Validate() error {
	if c.Upload.Endpoint == "" {
		return errors.New("config: Upload.Endpoint must be set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid Server.Port %d", c.Server.Port)
	}
	if c.Widgets.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("config: invalid Widgets.CleanupIntervalMinutes %d", c.Widgets.CleanupIntervalMinutes)
	}
	if _, err := c.GetMaxFileSize(); err != nil {
		return err
	}
	return nil
}

// GetMaxFileSize parses Storage.MaxFileSize ("20M", "1G"). Empty means no limit.
func (c *AppConfig) GetMaxFileSize() (int64, error) {
	if c.Storage.MaxFileSize == "" {
		return 0, nil
	}
	n, err := bytes.Parse(c.Storage.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("config: invalid Storage.MaxFileSize %q: %w", c.Storage.MaxFileSize, err)
	}
	return n, nil
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute staging directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
