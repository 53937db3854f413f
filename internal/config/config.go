package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Helpdesk   HelpdeskConfig
	Sync       SyncConfig
	Log        LogConfig
	Telemetry  TelemetryConfig
	Connection ConnectionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/helpdesk-settings.db"`
}

// HelpdeskConfig identifies the organization whose settings are managed.
type HelpdeskConfig struct {
	OrganizationID string `env:"HELPDESK_ORGANIZATION_ID"`
	// SeedPriorities creates the default ticket priorities when none exist.
	SeedPriorities bool `env:"HELPDESK_SEED_PRIORITIES" envDefault:"true"`
}

// SyncConfig holds timeouts for loading sections and for writing the SLA
// policy list back to the settings store.
type SyncConfig struct {
	LoadTimeout     time.Duration `env:"SYNC_LOAD_TIMEOUT" envDefault:"15s"`
	SyncBackTimeout time.Duration `env:"SYNC_BACK_TIMEOUT" envDefault:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// TelemetryConfig holds tracing configuration. Tracing is off without an
// OTLP endpoint.
type TelemetryConfig struct {
	ServiceName  string `env:"SERVICE_NAME" envDefault:"helpdesk-settings"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
}

// ConnectionConfig throttles integration connection tests.
type ConnectionConfig struct {
	Timeout       time.Duration `env:"CONNECTION_TEST_TIMEOUT" envDefault:"10s"`
	RatePerMinute int           `env:"CONNECTION_TEST_RATE" envDefault:"10"`
	Burst         int           `env:"CONNECTION_TEST_BURST" envDefault:"3"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Helpdesk); err != nil {
		return nil, fmt.Errorf("parsing helpdesk config: %w", err)
	}
	if err := env.Parse(&cfg.Sync); err != nil {
		return nil, fmt.Errorf("parsing sync config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}
	if err := env.Parse(&cfg.Telemetry); err != nil {
		return nil, fmt.Errorf("parsing telemetry config: %w", err)
	}
	if err := env.Parse(&cfg.Connection); err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Helpdesk.OrganizationID) == "" {
		return fmt.Errorf("HELPDESK_ORGANIZATION_ID is required")
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres", "pgx":
	default:
		return fmt.Errorf("DB_DRIVER must be one of sqlite3, postgres, pgx (got %q)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console (got %q)", c.Log.Format)
	}

	if c.Sync.SyncBackTimeout <= 0 {
		return fmt.Errorf("SYNC_BACK_TIMEOUT must be positive")
	}
	if c.Connection.RatePerMinute < 0 || c.Connection.Burst < 0 {
		return fmt.Errorf("CONNECTION_TEST_RATE and CONNECTION_TEST_BURST must not be negative")
	}

	return nil
}

// TracingEnabled reports whether an OTLP endpoint is configured.
func (c *Config) TracingEnabled() bool {
	return c.Telemetry.OTLPEndpoint != ""
}
