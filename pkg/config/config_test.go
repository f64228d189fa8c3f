package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative verbosity", func(c *Config) { c.Plugin.Verbose = -1 }},
		{"negative host version", func(c *Config) { c.Host.Version = -5 }},
		{"negative buffer", func(c *Config) { c.Transport.ReadBufferSize = -1 }},
		{"negative send queue", func(c *Config) { c.Transport.SendQueueSize = -1 }},
		{"negative max message", func(c *Config) { c.Transport.MaxMessageSize = -1 }},
		{"bad origin", func(c *Config) { c.Transport.AllowedOrigins = []string{"example.com"} }},
		{"zero tick", func(c *Config) { c.Tick.Interval = 0 }},
		{"port too high", func(c *Config) { c.Tick.DemoPort = 65536 }},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestConfig_Validate_Origins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.AllowedOrigins = []string{"*", "http://localhost:3000", "https://example.com"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_UserAgent(t *testing.T) {
	tests := []struct {
		name     string
		version  int
		platform int
		want     string
	}{
		{"linux", 4050100, PlatformLinux, "CoppeliaSim/4.5.1rev0 Linux"},
		{"windows", 4060002, PlatformWindows, "CoppeliaSim/4.6.0rev2 Windows"},
		{"macos", 4010203, PlatformMacOS, "CoppeliaSim/4.1.2rev3 macOS"},
		{"unknown platform", 4050100, 7, "CoppeliaSim/4.5.1rev0 Unknown-platform"},
		{"zero version", 0, PlatformLinux, "CoppeliaSim/0.0.0rev0 Linux"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Host.Version = tt.version
			cfg.Host.Platform = tt.platform
			if got := cfg.UserAgent(); got != tt.want {
				t.Errorf("UserAgent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_UserAgent_Override(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Plugin.UserAgent = "custom/1.0"
	if got := cfg.UserAgent(); got != "custom/1.0" {
		t.Errorf("UserAgent() = %q, want custom/1.0", got)
	}
}

func TestPlatformFromGOOS(t *testing.T) {
	tests := map[string]int{
		"windows": PlatformWindows,
		"darwin":  PlatformMacOS,
		"linux":   PlatformLinux,
		"plan9":   -1,
	}
	for goos, want := range tests {
		if got := PlatformFromGOOS(goos); got != want {
			t.Errorf("PlatformFromGOOS(%q) = %d, want %d", goos, got, want)
		}
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Tick.Interval != 50*time.Millisecond {
		t.Errorf("Tick.Interval = %v, want 50ms", cfg.Tick.Interval)
	}
}

func TestLoad_ValidYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
host:
  product: TestHost
  version: 4050100
  platform: 2
plugin:
  verbose: 1
  listen_host: 127.0.0.1
transport:
  send_queue_size: 16
  write_timeout: 2s
  allowed_origins:
    - http://localhost:3000
tick:
  interval: 10ms
  demo_port: 9100
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Plugin.Verbose != 1 {
		t.Errorf("Plugin.Verbose = %d, want 1", cfg.Plugin.Verbose)
	}
	if cfg.Plugin.ListenHost != "127.0.0.1" {
		t.Errorf("Plugin.ListenHost = %q, want 127.0.0.1", cfg.Plugin.ListenHost)
	}
	if cfg.Transport.SendQueueSize != 16 {
		t.Errorf("Transport.SendQueueSize = %d, want 16", cfg.Transport.SendQueueSize)
	}
	if cfg.Transport.WriteTimeout != 2*time.Second {
		t.Errorf("Transport.WriteTimeout = %v, want 2s", cfg.Transport.WriteTimeout)
	}
	if cfg.Tick.Interval != 10*time.Millisecond {
		t.Errorf("Tick.Interval = %v, want 10ms", cfg.Tick.Interval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Defaults not present in the file survive
	if cfg.Transport.ReadBufferSize != 4096 {
		t.Errorf("Transport.ReadBufferSize = %d, want 4096", cfg.Transport.ReadBufferSize)
	}
	if got := cfg.UserAgent(); got != "TestHost/4.5.1rev0 Linux" {
		t.Errorf("UserAgent() = %q", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("plugin: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WSBRIDGE_PLUGIN_VERBOSE", "3")
	t.Setenv("WSBRIDGE_PLUGIN_USER_AGENT", "env-agent/2.0")
	t.Setenv("WSBRIDGE_TRANSPORT_ALLOWED_ORIGINS", "http://a.example,https://b.example")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Plugin.Verbose != 3 {
		t.Errorf("Plugin.Verbose = %d, want 3", cfg.Plugin.Verbose)
	}
	if cfg.UserAgent() != "env-agent/2.0" {
		t.Errorf("UserAgent() = %q, want env-agent/2.0", cfg.UserAgent())
	}
	if len(cfg.Transport.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.Transport.AllowedOrigins)
	}
}

func TestLoad_EnvInvalid(t *testing.T) {
	t.Setenv("WSBRIDGE_PLUGIN_VERBOSE", "-1")

	if _, err := Load(""); err == nil {
		t.Error("Expected validation error for negative verbosity from env")
	}
}
