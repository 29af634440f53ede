package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Room      RoomConfig
	Tally     TallyConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Env  string `env:"ENV" envDefault:"development"` // "development" or "production"
}

// RoomConfig holds room lifecycle configuration
type RoomConfig struct {
	MaxPlayers           int           `env:"MAX_PLAYERS" envDefault:"8"`
	RoomCodeLength       int           `env:"ROOM_CODE_LENGTH" envDefault:"6"`
	IdleTimeout          time.Duration `env:"ROOM_IDLE_TIMEOUT" envDefault:"30m"`
	SweepInterval        time.Duration `env:"ROOM_SWEEP_INTERVAL" envDefault:"5m"`
	ReconnectGracePeriod time.Duration `env:"RECONNECT_GRACE_PERIOD" envDefault:"5s"`
}

// TallyConfig holds tally engine configuration
type TallyConfig struct {
	Delay time.Duration `env:"TALLY_DELAY" envDefault:"1500ms"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// TelemetryConfig holds tracing configuration. An empty endpoint disables
// export.
type TelemetryConfig struct {
	Endpoint string `env:"OTEL_ENDPOINT"`
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Room.MaxPlayers < 2 {
		errs = append(errs, fmt.Errorf("MAX_PLAYERS must be at least 2, got %d", c.Room.MaxPlayers))
	}
	if c.Room.RoomCodeLength < 4 {
		errs = append(errs, fmt.Errorf("ROOM_CODE_LENGTH must be at least 4, got %d", c.Room.RoomCodeLength))
	}
	if c.Room.IdleTimeout <= 0 {
		errs = append(errs, errors.New("ROOM_IDLE_TIMEOUT must be positive"))
	}
	if c.Room.SweepInterval <= 0 {
		errs = append(errs, errors.New("ROOM_SWEEP_INTERVAL must be positive"))
	}
	if c.Room.ReconnectGracePeriod <= 0 {
		errs = append(errs, errors.New("RECONNECT_GRACE_PERIOD must be positive"))
	}
	if c.Tally.Delay < 0 {
		errs = append(errs, errors.New("TALLY_DELAY must not be negative"))
	}

	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// TracingEnabled reports whether spans should be exported
func (c *Config) TracingEnabled() bool {
	return c.Telemetry.Enabled && c.Telemetry.Endpoint != ""
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}
