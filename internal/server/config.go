// Package server provides configuration helpers that define runtime defaults
// and validation for the relay service.
package server

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// KeepAliveConfig controls WebSocket ping/pong liveness checks.
type KeepAliveConfig struct {
	// Interval between pings. Zero disables pings and read deadlines.
	Interval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"20s"`
	// Grace is how long past Interval a pong may arrive before the peer is dropped.
	Grace time.Duration `env:"KEEPALIVE_GRACE" envDefault:"10s"`
}

// Config holds the server configuration.
type Config struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StaticDir      string   `env:"STATIC_DIR" envDefault:"."`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" envDefault:"1048576"`
	SendQueueSize  int           `env:"SEND_QUEUE_SIZE" envDefault:"256"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	KeepAlive      KeepAliveConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MetricsAddr     string        `env:"METRICS_ADDR"`
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := &Config{}
	// Only envDefault tags are consulted; an empty environment cannot fail to parse.
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// Load reads configuration from environment variables, falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadFrom is Load with an explicit environment instead of the process one.
func LoadFrom(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %q", c.Port)
	}

	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive, got %d", c.MaxMessageSize)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send queue size must be positive, got %d", c.SendQueueSize)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %s", c.WriteTimeout)
	}
	if c.KeepAlive.Interval < 0 || c.KeepAlive.Grace < 0 {
		return fmt.Errorf("keepalive durations must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Addr returns the listen address for the relay port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// PongWait is the read deadline extended on every pong, or zero when
// keep-alive is disabled.
func (c *Config) PongWait() time.Duration {
	if c.KeepAlive.Interval <= 0 {
		return 0
	}
	return c.KeepAlive.Interval + c.KeepAlive.Grace
}
