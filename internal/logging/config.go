package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug and is reserved for request/response dumps.
const TraceLevel = zapcore.Level(-2)

// ParseLevel maps a user-facing level name to a zap level. Besides zap's own
// names it accepts "trace" and "warning", ignoring case and whitespace.
func ParseLevel(name string) (zapcore.Level, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "trace":
		return TraceLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	default:
		var lvl zapcore.Level
		if err := lvl.Set(n); err != nil {
			return zapcore.InfoLevel, err
		}
		return lvl, nil
	}
}

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level
	Format    string
	Output    io.Writer
	Caller    bool
	Fields    map[string]string
	Redaction RedactionConfig
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns config suited to an interactive CLI.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.WarnLevel,
		Format: "console",
		Output: os.Stderr,
		Caller: false,
		Fields: map[string]string{
			"service": "plk",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "access_token",
				"authorization", "bearer", "credential", "secret_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)access_token[=:]\s*\S+`,
				`(?i)[?&]token=[^&\s]+`,
			},
		},
	}
}

// FromSettings builds a Config from the user-facing level and format strings.
func FromSettings(level, format string) (*Config, error) {
	cfg := NewDefaultConfig()
	if level != "" {
		lvl, err := ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	if format != "" {
		cfg.Format = format
	}
	return cfg, cfg.Validate()
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if _, err := compileRedactor(c.Redaction); err != nil {
		return err
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
