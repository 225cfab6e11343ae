package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{APIKey: "test-api-key"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate_Success(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() should pass, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Server.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "relative generate url",
			mutate:  func(c *Config) { c.Remote.GenerateURL = "/shadow/generate" },
			wantErr: true,
		},
		{
			name:    "empty license url",
			mutate:  func(c *Config) { c.Remote.LicenseURL = "" },
			wantErr: true,
		},
		{
			name:    "negative cache size",
			mutate:  func(c *Config) { c.Cache.Size = -1 },
			wantErr: true,
		},
		{
			name:    "negative min image size",
			mutate:  func(c *Config) { c.Extract.MinImageSize = -1 },
			wantErr: true,
		},
		{
			name:    "valid refresh schedule",
			mutate:  func(c *Config) { c.License.RefreshSchedule = "*/15 * * * *" },
			wantErr: false,
		},
		{
			name:    "descriptor schedule",
			mutate:  func(c *Config) { c.License.RefreshSchedule = "@hourly" },
			wantErr: false,
		},
		{
			name:    "invalid refresh schedule",
			mutate:  func(c *Config) { c.License.RefreshSchedule = "every minute" },
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.License.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Server.Address() != "127.0.0.1:9848" {
		t.Errorf("Address() = %q", cfg.Server.Address())
	}
	if cfg.Remote.GenerateURL != DefaultGenerateURL {
		t.Errorf("GenerateURL = %q", cfg.Remote.GenerateURL)
	}
	if cfg.Remote.LicenseURL != DefaultLicenseURL {
		t.Errorf("LicenseURL = %q", cfg.Remote.LicenseURL)
	}
	if cfg.License.CacheTTL != 60*time.Second {
		t.Errorf("CacheTTL = %v", cfg.License.CacheTTL)
	}
	if cfg.Cache.Size != 512 {
		t.Errorf("Cache.Size = %d", cfg.Cache.Size)
	}
	if cfg.Storage.Path != "" {
		t.Errorf("Storage.Path should default to in-memory, got %q", cfg.Storage.Path)
	}
	if cfg.Extract.MinImageSize != 40 || cfg.Extract.RedactShortLinks {
		t.Errorf("Extract = %+v", cfg.Extract)
	}

	// Explicit values are kept.
	cfg = &Config{Server: ServerConfig{Port: 1234}}
	cfg.ApplyDefaults()
	if cfg.Server.Port != 1234 {
		t.Errorf("Port = %d, want 1234", cfg.Server.Port)
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{
			name: "loopback",
			cfg:  ServerConfig{Host: "127.0.0.1", Port: 9848},
			want: "127.0.0.1:9848",
		},
		{
			name: "all interfaces",
			cfg:  ServerConfig{Host: "0.0.0.0", Port: 8080},
			want: "0.0.0.0:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLicenseConfig_Location(t *testing.T) {
	c := LicenseConfig{Timezone: "UTC"}
	if c.Location() != time.UTC {
		t.Errorf("Location() = %v", c.Location())
	}
	c = LicenseConfig{Timezone: "Nowhere/Special"}
	if c.Location() != time.Local {
		t.Errorf("Location() fallback = %v", c.Location())
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  host: "localhost"
  port: 8080
  api_key: "yaml-api-key"
storage:
  path: "/var/lib/xreply/store.db"
cache:
  size: 64
  disable_coalescing: true
license:
  cache_ttl: 30s
  refresh_schedule: "@every 10m"
browser:
  enabled: true
  remote_url: "ws://127.0.0.1:9222/devtools/browser/abc"
extract:
  min_image_size: 120
  redact_short_links: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address() != "localhost:8080" {
		t.Errorf("Address() = %q", cfg.Server.Address())
	}
	if cfg.Server.APIKey != "yaml-api-key" {
		t.Errorf("APIKey = %q", cfg.Server.APIKey)
	}
	if cfg.Storage.Path != "/var/lib/xreply/store.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Cache.Size != 64 || !cfg.Cache.DisableCoalescing {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.License.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.License.CacheTTL)
	}
	if !cfg.Browser.Enabled || cfg.Browser.PollInterval != 2*time.Second {
		t.Errorf("Browser = %+v", cfg.Browser)
	}
	if cfg.Extract.MinImageSize != 120 || !cfg.Extract.RedactShortLinks {
		t.Errorf("Extract = %+v", cfg.Extract)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  api_key: "yaml-api-key"
remote:
  generate_url: "https://yaml.example/generate"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("API_KEY", "env-api-key")
	t.Setenv("GENERATE_URL", "https://env.example/generate")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIKey != "env-api-key" {
		t.Errorf("APIKey should be from env, got %q", cfg.Server.APIKey)
	}
	if cfg.Remote.GenerateURL != "https://env.example/generate" {
		t.Errorf("GenerateURL should be from env, got %q", cfg.Remote.GenerateURL)
	}
	if cfg.Remote.LicenseURL != DefaultLicenseURL {
		t.Errorf("LicenseURL should keep its default, got %q", cfg.Remote.LicenseURL)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("API_KEY", "test-api-key")
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("EXTRACT_MIN_IMAGE_SIZE", "64")
	t.Setenv("EXTRACT_REDACT_SHORT_LINKS", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIKey != "test-api-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Server.APIKey, "test-api-key")
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Extract.MinImageSize != 64 || !cfg.Extract.RedactShortLinks {
		t.Errorf("Extract = %+v", cfg.Extract)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	invalidYAML := `
server:
  host: "localhost
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for nonexistent file")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("API_KEY", "")

	if _, err := Load(""); err == nil {
		t.Error("Load should fail validation without required values")
	}
}
