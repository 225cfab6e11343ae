package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Default remote endpoints.
const (
	DefaultGenerateURL = "https://api.shadowintern.xyz/shadow/generate"
	DefaultLicenseURL  = "https://api.shadowintern.xyz/license/validate"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Remote   RemoteConfig   `yaml:"remote"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	License  LicenseConfig  `yaml:"license"`
	Browser  BrowserConfig  `yaml:"browser"`
	Settings SettingsConfig `yaml:"settings"`
	Extract  ExtractConfig  `yaml:"extract"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// RemoteConfig holds the generation and license endpoints.
type RemoteConfig struct {
	GenerateURL string        `yaml:"generate_url" envconfig:"GENERATE_URL"`
	LicenseURL  string        `yaml:"license_url" envconfig:"LICENSE_URL"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"REMOTE_TIMEOUT"`
}

// StorageConfig holds settings persistence configuration.
type StorageConfig struct {
	// Path is the SQLite database file. Empty keeps everything in memory.
	Path string `yaml:"path" envconfig:"STORAGE_PATH"`
}

// CacheConfig holds reply cache configuration.
type CacheConfig struct {
	Size              int  `yaml:"size" envconfig:"CACHE_SIZE"`
	DisableCoalescing bool `yaml:"disable_coalescing" envconfig:"CACHE_DISABLE_COALESCING"`
}

// LicenseConfig holds license cache configuration.
type LicenseConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"LICENSE_CACHE_TTL"`
	// RefreshSchedule is a cron spec for background revalidation. Empty
	// disables the refresh job.
	RefreshSchedule string `yaml:"refresh_schedule" envconfig:"LICENSE_REFRESH_SCHEDULE"`
	Timezone        string `yaml:"timezone" envconfig:"LICENSE_REFRESH_TZ"`
}

// BrowserConfig holds settings for the attached Chrome session.
type BrowserConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"BROWSER_ENABLED"`
	// RemoteURL attaches to a running Chrome's debugging endpoint. Empty
	// launches a new browser.
	RemoteURL    string        `yaml:"remote_url" envconfig:"BROWSER_REMOTE_URL"`
	Visible      bool          `yaml:"visible" envconfig:"BROWSER_VISIBLE"`
	ProfileDir   string        `yaml:"profile_dir" envconfig:"BROWSER_PROFILE_DIR"`
	PageURL      string        `yaml:"page_url" envconfig:"BROWSER_PAGE_URL"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"BROWSER_POLL_INTERVAL"`
}

// ExtractConfig holds tweet extraction configuration.
type ExtractConfig struct {
	// MinImageSize is the smallest width or height, in pixels, an image
	// must have to be attached to a reply request.
	MinImageSize     int  `yaml:"min_image_size" envconfig:"EXTRACT_MIN_IMAGE_SIZE"`
	RedactShortLinks bool `yaml:"redact_short_links" envconfig:"EXTRACT_REDACT_SHORT_LINKS"`
}

// SettingsConfig holds import/export configuration.
type SettingsConfig struct {
	ExportDir string `yaml:"export_dir" envconfig:"SETTINGS_EXPORT_DIR"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values; defaults fill what is left.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Server.Host, "127.0.0.1")
	setDefault(&c.Server.Port, 9848)
	setDefault(&c.Server.ReadTimeout, 30*time.Second)
	setDefault(&c.Server.WriteTimeout, 60*time.Second)

	setDefault(&c.Remote.GenerateURL, DefaultGenerateURL)
	setDefault(&c.Remote.LicenseURL, DefaultLicenseURL)
	setDefault(&c.Remote.Timeout, 45*time.Second)

	setDefault(&c.Cache.Size, 512)

	setDefault(&c.License.CacheTTL, 60*time.Second)
	setDefault(&c.License.Timezone, "Local")

	setDefault(&c.Browser.PageURL, "https://x.com/home")
	setDefault(&c.Browser.PollInterval, 2*time.Second)

	setDefault(&c.Extract.MinImageSize, 40)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if err := validateURL("GENERATE_URL", c.Remote.GenerateURL); err != nil {
		return err
	}
	if err := validateURL("LICENSE_URL", c.Remote.LicenseURL); err != nil {
		return err
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("CACHE_SIZE must not be negative")
	}
	if c.Extract.MinImageSize < 0 {
		return fmt.Errorf("EXTRACT_MIN_IMAGE_SIZE must not be negative")
	}
	if c.License.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.License.RefreshSchedule); err != nil {
			return fmt.Errorf("LICENSE_REFRESH_SCHEDULE: %w", err)
		}
	}
	if _, err := time.LoadLocation(c.License.Timezone); err != nil {
		return fmt.Errorf("LICENSE_REFRESH_TZ: %w", err)
	}
	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location returns the refresh schedule's time zone.
func (c *LicenseConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
