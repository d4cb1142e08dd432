// Package config loads the server's declarative YAML configuration with
// first-match discovery: an explicit path, then tably.yaml in the working
// directory, then ~/.tably/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "tably.yaml"
	homeConfigName    = "config.yaml"
)

// Config is the full server configuration.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`

	Database   DatabaseConfig   `yaml:"database"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ReconcilerConfig tunes the restaurant status reconciler.
type ReconcilerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// TelemetryConfig configures the OTLP trace exporter. An empty endpoint
// disables tracing.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Host:       "0.0.0.0",
		Port:       8080,
		CORSOrigin: "*",
		Database:   DatabaseConfig{Path: "tably.sqlite"},
		Reconciler: ReconcilerConfig{Interval: 50 * time.Second},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Discover resolves the config file location with first-match semantics.
// The boolean is false when no candidate exists, which is not an error
// unless an explicit path was given.
func Discover(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverFrom(explicitPath, cwd, homeDir)
}

// DiscoverFrom is a testable variant of Discover.
func DiscoverFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".tably", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads and parses a config file, filling unset fields from Default.
func Load(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Reconciler.Interval < 0 {
		return errors.New("reconciler interval must not be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
