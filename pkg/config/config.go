package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-wsbridge/pkg/logging"
	"github.com/sirosfoundation/go-wsbridge/pkg/middleware"
)

// Platform codes as reported by the host
const (
	PlatformWindows = 0
	PlatformMacOS   = 1
	PlatformLinux   = 2
)

// Config represents the application configuration
type Config struct {
	Host      HostConfig      `yaml:"host" envconfig:"HOST"`
	Plugin    PluginConfig    `yaml:"plugin" envconfig:"PLUGIN"`
	Transport TransportConfig `yaml:"transport" envconfig:"TRANSPORT"`
	Logging   logging.Config  `yaml:"logging" envconfig:"LOGGING"`
	Metrics   MetricsConfig   `yaml:"metrics" envconfig:"METRICS"`
	Tick      TickConfig      `yaml:"tick" envconfig:"TICK"`
}

// HostConfig describes the embedding host application. It is only used to
// derive the default user agent.
type HostConfig struct {
	Product string `yaml:"product" envconfig:"PRODUCT"`
	// Version is the host's full version number, two decimal digits per
	// component: 4050100 is 4.5.1 revision 0.
	Version  int `yaml:"version" envconfig:"VERSION"`
	Platform int `yaml:"platform" envconfig:"PLATFORM"`
}

// PluginConfig contains the process-wide settings read by every server
type PluginConfig struct {
	// UserAgent overrides the user agent derived from the host
	UserAgent string `yaml:"user_agent" envconfig:"USER_AGENT"`
	// Verbose > 0 enables access logging
	Verbose int `yaml:"verbose" envconfig:"VERBOSE"`
	// ListenHost is the interface servers bind to ("" = all)
	ListenHost string `yaml:"listen_host" envconfig:"LISTEN_HOST"`
}

// TransportConfig tunes the WebSocket transport
type TransportConfig struct {
	ReadBufferSize  int                        `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int                        `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	MaxMessageSize  int64                      `yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE"`
	SendQueueSize   int                        `yaml:"send_queue_size" envconfig:"SEND_QUEUE_SIZE"`
	WriteTimeout    time.Duration              `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	AllowedOrigins  []string                   `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit       middleware.RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// MetricsConfig controls the Prometheus endpoint of the host binary
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Address string `yaml:"address" envconfig:"ADDRESS"`
}

// TickConfig drives the demo host's update loop
type TickConfig struct {
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	// DemoPort is the port the bundled echo script listens on
	DemoPort int `yaml:"demo_port" envconfig:"DEMO_PORT"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("WSBRIDGE", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Product:  "CoppeliaSim",
			Platform: PlatformFromGOOS(runtime.GOOS),
		},
		Transport: TransportConfig{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			SendQueueSize:   1024,
			WriteTimeout:    5 * time.Second,
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Address: "127.0.0.1:9090",
		},
		Tick: TickConfig{
			Interval: 50 * time.Millisecond,
			DemoPort: 9000,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Plugin.Verbose < 0 {
		return fmt.Errorf("invalid verbosity: %d", c.Plugin.Verbose)
	}
	if c.Host.Version < 0 {
		return fmt.Errorf("invalid host version: %d", c.Host.Version)
	}
	if c.Transport.ReadBufferSize < 0 || c.Transport.WriteBufferSize < 0 {
		return fmt.Errorf("buffer sizes must not be negative")
	}
	if c.Transport.SendQueueSize < 0 {
		return fmt.Errorf("invalid send queue size: %d", c.Transport.SendQueueSize)
	}
	if c.Transport.MaxMessageSize < 0 {
		return fmt.Errorf("invalid max message size: %d", c.Transport.MaxMessageSize)
	}
	for _, origin := range c.Transport.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid allowed origin %q (must be * or start with http:// or https://)", origin)
		}
	}
	if c.Tick.Interval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Tick.DemoPort < 0 || c.Tick.DemoPort > 65535 {
		return fmt.Errorf("invalid demo port: %d", c.Tick.DemoPort)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics address is required when metrics are enabled")
	}
	return nil
}

// PlatformFromGOOS maps a GOOS value to the host platform code
func PlatformFromGOOS(goos string) int {
	switch goos {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMacOS
	case "linux":
		return PlatformLinux
	default:
		return -1
	}
}

// PlatformName returns the display name of a platform code
func PlatformName(platform int) string {
	switch platform {
	case PlatformWindows:
		return "Windows"
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	default:
		return "Unknown-platform"
	}
}

// UserAgent returns the configured user agent, or derives one from the host
// version and platform: "<product>/<major>.<minor>.<patch>rev<revision> <platform>".
func (c *Config) UserAgent() string {
	if c.Plugin.UserAgent != "" {
		return c.Plugin.UserAgent
	}
	var v [4]int
	v[3] = c.Host.Version
	for i := 3; i > 0; i-- {
		v[i-1] = v[i] / 100
	}
	for i := range v {
		v[i] %= 100
	}
	return fmt.Sprintf("%s/%d.%d.%drev%d %s", c.Host.Product, v[0], v[1], v[2], v[3], PlatformName(c.Host.Platform))
}
