// Package config provides YAML-based configuration for self-contained
// on-premise deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Trend     TrendConfig     `yaml:"trend"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Audit     AuditConfig     `yaml:"audit"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	EnableCORS   bool   `yaml:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds"`
	BodyLimit    string `yaml:"body_limit"`
}

// DatabaseConfig locates the primary record store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TrendConfig tunes the analytics mirror.
type TrendConfig struct {
	Path        string `yaml:"path"`
	Threads     int    `yaml:"threads"`
	MemoryLimit string `yaml:"memory_limit"`
}

// AuthConfig contains token and password settings.
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	AccessTTLMinutes int    `yaml:"access_ttl_minutes"`
	RefreshTTLHours  int    `yaml:"refresh_ttl_hours"`
	ResetTTLMinutes  int    `yaml:"reset_ttl_minutes"`
	BcryptCost       int    `yaml:"bcrypt_cost"`
}

// StorageConfig contains file storage settings.
type StorageConfig struct {
	DataDirectory    string `yaml:"data_directory"`
	UploadsDirectory string `yaml:"uploads_directory"`
	ArchiveDirectory string `yaml:"archive_directory"`
	MaxUploadSize    int64  `yaml:"max_upload_size_bytes"`
	AllowedFileTypes string `yaml:"allowed_file_types"`
}

// AuditConfig controls the persistent audit trail.
type AuditConfig struct {
	MaxAgeDays           int    `yaml:"max_age_days"`
	EnableRequestLogging bool   `yaml:"enable_request_logging"`
	LogLevel             string `yaml:"log_level"`
}

// BootstrapConfig seeds the first administrator account. Used only
// when the user table is empty.
type BootstrapConfig struct {
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
	AdminName     string `yaml:"admin_name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8085,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "32M",
		},
		Database: DatabaseConfig{
			Path: "./data/logbook.db",
		},
		Trend: TrendConfig{
			Path:        "./data/trend.duckdb",
			Threads:     2,
			MemoryLimit: "512MB",
		},
		Auth: AuthConfig{
			JWTSecret:        "",
			AccessTTLMinutes: 60,
			RefreshTTLHours:  168,
			ResetTTLMinutes:  15,
			BcryptCost:       12,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			ArchiveDirectory: "./data/archives",
			MaxUploadSize:    16 << 20,
			AllowedFileTypes: ".pdf,.png,.jpg,.jpeg,.csv,.xlsx",
		},
		Audit: AuditConfig{
			MaxAgeDays:           365,
			EnableRequestLogging: true,
			LogLevel:             "info",
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    "admin@example.com",
			AdminPassword: "",
			AdminName:     "Administrator",
		},
	}
}

// LoadConfig loads configuration from a YAML file, writing the
// defaults out on first run so operators have a file to edit.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Facility Logbook configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override
// file values. Secrets are expected to arrive this way in production.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dataDir := os.Getenv("LOGBOOK_DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}
	if dbPath := os.Getenv("LOGBOOK_DB"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if secret := os.Getenv("LOGBOOK_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if pw := os.Getenv("LOGBOOK_ADMIN_PASSWORD"); pw != "" {
		c.Bootstrap.AdminPassword = pw
	}
}

// resolvePaths converts relative paths to absolute based on the
// config file location.
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.ArchiveDirectory)
	resolve(&c.Database.Path)
	resolve(&c.Trend.Path)
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.ArchiveDirectory,
		filepath.Dir(c.Database.Path),
		filepath.Dir(c.Trend.Path),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
