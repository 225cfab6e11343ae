// Package config provides configuration management for the xreply TUI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the TUI configuration.
type Config struct {
	// Server connection
	ServerURL string `yaml:"server_url"`
	APIKey    string `yaml:"api_key"`

	// Refresh intervals
	StatusRefresh time.Duration `yaml:"status_refresh"`

	// LogFile receives the TUI's own log output. The terminal is owned by tview.
	LogFile string `yaml:"log_file"`
}

// Dir returns the platform config directory for the TUI.
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "xreply"), nil
}

// DefaultPath returns the config file path inside Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaults() *Config {
	cfg := &Config{
		ServerURL:     "http://localhost:8080",
		StatusRefresh: 10 * time.Second,
	}
	if dir, err := Dir(); err == nil {
		cfg.LogFile = filepath.Join(dir, "tui.log")
	}
	return cfg
}

// Load reads the config file at path, or the default path when empty, and
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.ServerURL = getEnv("XREPLY_SERVER_URL", cfg.ServerURL)
	cfg.APIKey = getEnv("XREPLY_API_KEY", cfg.APIKey)
	cfg.LogFile = getEnv("XREPLY_TUI_LOG", cfg.LogFile)
	cfg.StatusRefresh = getDuration("XREPLY_STATUS_REFRESH", cfg.StatusRefresh)
	if cfg.StatusRefresh <= 0 {
		cfg.StatusRefresh = 10 * time.Second
	}

	return cfg, nil
}

// Save writes the config to path with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
