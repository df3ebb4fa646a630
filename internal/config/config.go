// Package config provides configuration loading for the plk client.
//
// Configuration is read from a YAML file, overridden by PLK_* environment
// variables, and completed with defaults suited to a local ProductLogik API.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultBaseURL matches the API origin used by the web client in development.
	DefaultBaseURL = "http://127.0.0.1:8001/api"

	// DefaultSiteOrigin is the public web origin used to build invitation links.
	DefaultSiteOrigin = "http://localhost:5173"

	// DefaultMaxUploadBytes is the largest CSV accepted at staging time (10MB).
	DefaultMaxUploadBytes int64 = 10 * 1024 * 1024
)

// Config holds the complete plk configuration.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Session   SessionConfig   `koanf:"session"`
	Poll      PollConfig      `koanf:"poll"`
	Upload    UploadConfig    `koanf:"upload"`
	Share     ShareConfig     `koanf:"share"`
	Export    ExportConfig    `koanf:"export"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// APIConfig holds remote API settings.
type APIConfig struct {
	BaseURL   string   `koanf:"base_url"`
	Timeout   Duration `koanf:"timeout"`
	RateLimit float64  `koanf:"rate_limit"` // requests per second
	Burst     int      `koanf:"burst"`
}

// SessionConfig controls where the bearer token is persisted.
type SessionConfig struct {
	Path string `koanf:"path"`
}

// PollConfig controls the analysis polling workflow.
type PollConfig struct {
	Interval Duration `koanf:"interval"`
}

// UploadConfig controls CSV staging and the post-upload redirect.
type UploadConfig struct {
	RedirectDelay Duration `koanf:"redirect_delay"`
	MaxBytes      int64    `koanf:"max_bytes"`
}

// ShareConfig controls invitation link construction.
type ShareConfig struct {
	SiteOrigin string   `koanf:"site_origin"`
	CopyReset  Duration `koanf:"copy_reset"`
}

// ExportConfig holds the optional S3-compatible destination for PDF exports.
type ExportConfig struct {
	Bucket    string `koanf:"bucket"`
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Prefix    string `koanf:"prefix"`
	AccessKey Secret `koanf:"access_key"`
	SecretKey Secret `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"` // grpc or http/protobuf
	UseTLS     bool    `koanf:"use_tls"`
	SampleRate float64 `koanf:"sample_rate"`
}

// Default returns a configuration populated only with defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - the API base URL is empty or not an absolute http(s) URL
//   - any interval or timeout is not positive
//   - the logging format is not json or console
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api base url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api base url must use http or https, got %q", u.Scheme)
	}
	if c.API.Timeout.Duration() <= 0 {
		return errors.New("api timeout must be positive")
	}
	if c.API.RateLimit <= 0 {
		return errors.New("api rate limit must be positive")
	}
	if c.Poll.Interval.Duration() <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.Upload.RedirectDelay.Duration() < 0 {
		return errors.New("upload redirect delay cannot be negative")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	if c.Share.SiteOrigin == "" {
		return errors.New("share site origin is required")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = Duration(30 * time.Second)
	}
	if cfg.API.RateLimit == 0 {
		cfg.API.RateLimit = 10
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = 5
	}

	if cfg.Session.Path == "" {
		cfg.Session.Path = filepath.Join(configDir(), "session.json")
	}
	cfg.Session.Path = expandHome(cfg.Session.Path)

	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = Duration(3 * time.Second)
	}

	if cfg.Upload.RedirectDelay == 0 {
		cfg.Upload.RedirectDelay = Duration(2 * time.Second)
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = DefaultMaxUploadBytes
	}

	if cfg.Share.SiteOrigin == "" {
		cfg.Share.SiteOrigin = DefaultSiteOrigin
	}
	cfg.Share.SiteOrigin = strings.TrimRight(cfg.Share.SiteOrigin, "/")
	if cfg.Share.CopyReset == 0 {
		cfg.Share.CopyReset = Duration(2 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}

// configDir returns ~/.config/productlogik, falling back to a relative
// directory when the home directory is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "productlogik")
	}
	return filepath.Join(home, ".config", "productlogik")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
