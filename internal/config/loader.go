package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment variables that override the config file.
	EnvPrefix = "PLK_"

	// EnvConfigPath names the config file when no path is passed to Load.
	EnvConfigPath = EnvPrefix + "CONFIG"

	maxFileSize = 1 << 20
)

// Load reads the YAML config file, applies PLK_* environment overrides on
// top, fills defaults, and validates the result.
//
// An empty path falls back to $PLK_CONFIG, then DefaultPath. A missing file
// is fine; one that exists must be owner-only, at most 1MB, and under
// ~/.config/productlogik/ or /etc/productlogik/.
//
// Environment keys lose the prefix and split on the first underscore:
//
//	PLK_API_BASE_URL      -> api.base_url
//	PLK_POLL_INTERVAL     -> poll.interval
//	PLK_TELEMETRY_ENABLED -> telemetry.enabled
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath()
	}
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	k := koanf.New(".")
	raw, err := readConfigFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(millisHook, mapstructure.TextUnmarshallerHookFunc()),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// millisHook reads a YAML number given for a Duration as milliseconds.
// Strings go through Duration.UnmarshalText instead.
func millisHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(Duration(0)) {
		return data, nil
	}
	var ms int64
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		ms = reflect.ValueOf(data).Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		ms = int64(reflect.ValueOf(data).Uint())
	case reflect.Float32, reflect.Float64:
		ms = int64(reflect.ValueOf(data).Float())
	default:
		return data, nil
	}
	if ms < 0 {
		return nil, fmt.Errorf("unmarshal duration %d: must not be negative", ms)
	}
	return Duration(time.Duration(ms) * time.Millisecond), nil
}

// DefaultPath is ~/.config/productlogik/config.yaml.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if section, field, ok := strings.Cut(key, "_"); ok {
		return section + "." + field
	}
	return key
}

// readConfigFile stats and reads through one descriptor so the checked file
// is the one read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if err := checkFileMode(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}
	return io.ReadAll(io.LimitReader(f, maxFileSize))
}

func checkFileMode(info os.FileInfo) error {
	if perm := info.Mode().Perm(); runtime.GOOS != "windows" && perm&^0600 != 0 {
		return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	return nil
}

func allowedRoots() []string {
	return []string{configDir(), filepath.FromSlash("/etc/productlogik")}
}

// validateConfigPath resolves symlinks where it can, then requires path to
// sit below one of allowedRoots. The file need not exist.
func validateConfigPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	for _, root := range allowedRoots() {
		candidates := []string{root}
		if real, err := filepath.EvalSymlinks(root); err == nil && real != root {
			candidates = append(candidates, real)
		}
		for _, r := range candidates {
			if rel, err := filepath.Rel(r, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return nil
			}
		}
	}
	return errors.New("config file must be in ~/.config/productlogik/ or /etc/productlogik/")
}
