package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	Scorer     ScorerConfig     `envconfig:"SCORER"`
	Horizon    HorizonConfig    `envconfig:"HORIZON"`
	Enrichment EnrichmentConfig `envconfig:"ENRICHMENT"`
	Snapshot   SnapshotConfig   `envconfig:"SNAPSHOT"`
	Backfill   BackfillConfig   `envconfig:"BACKFILL"`
	Health     HealthConfig     `envconfig:"HEALTH"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// DatabaseConfig represents Postgres connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"lumenpulse"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// ClickHouseConfig represents the optional telemetry sink
type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database string `envconfig:"CLICKHOUSE_DATABASE" default:"lumenpulse"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD" required:"false"`
}

// RedisConfig represents Redis connection parameters (locks + caching)
type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"true"`
	Host     string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"24h"`
}

// ScorerConfig represents the external sentiment scoring endpoint
type ScorerConfig struct {
	BaseURL      string        `envconfig:"SCORER_BASE_URL" required:"true"`
	Timeout      time.Duration `envconfig:"SCORER_TIMEOUT" default:"3s"`
	MaxRedirects int           `envconfig:"SCORER_MAX_REDIRECTS" default:"3"`
}

// HorizonConfig represents the Stellar Horizon ingestion source
type HorizonConfig struct {
	BaseURL string        `envconfig:"HORIZON_BASE_URL" default:"https://horizon.stellar.org"`
	Assets  []string      `envconfig:"HORIZON_ASSETS" default:"XLM"`
	Timeout time.Duration `envconfig:"HORIZON_TIMEOUT" default:"10s"`
}

// EnrichmentConfig represents the sentiment enrichment scheduler
type EnrichmentConfig struct {
	Interval  time.Duration `envconfig:"ENRICHMENT_INTERVAL" default:"10m"`
	BatchSize int           `envconfig:"ENRICHMENT_BATCH_SIZE" default:"100"`
}

// SnapshotConfig represents daily snapshot generation
type SnapshotConfig struct {
	Interval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"1h"`
}

// BackfillConfig represents backfill pacing
type BackfillConfig struct {
	WindowDelay time.Duration `envconfig:"BACKFILL_WINDOW_DELAY" default:"1s"`
}

// HealthConfig represents the health probe server
type HealthConfig struct {
	Port string `envconfig:"HEALTH_PORT" default:"8081"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" required:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Scorer.BaseURL == "" {
		return fmt.Errorf("scorer base url is required")
	}
	if c.Scorer.Timeout <= 0 || c.Scorer.Timeout > 30*time.Second {
		return fmt.Errorf("scorer timeout must be in (0, 30s]")
	}
	if c.Enrichment.BatchSize < 1 {
		return fmt.Errorf("enrichment batch size must be at least 1")
	}
	if c.Enrichment.Interval < time.Minute {
		return fmt.Errorf("enrichment interval must be at least 1m")
	}
	if len(c.Horizon.Assets) == 0 {
		return fmt.Errorf("at least one horizon asset must be configured")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetDSN returns ClickHouse connection string
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}
