package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for marts-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Warehouse configuration (PostgreSQL)
	Warehouse WarehouseConfig `yaml:"warehouse"`

	// ProjectPath is the path to the project file holding sources, models and rules.
	ProjectPath string `yaml:"project_path" env:"PROJECT_PATH" env-default:"project.yaml"`

	// MigrationsPath is the directory containing warehouse schema migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Build configuration for incremental materializations
	Build BuildConfig `yaml:"build"`

	// Test configuration for the data quality engine
	Test TestConfig `yaml:"test"`
}

// WarehouseConfig holds the target warehouse connection configuration.
type WarehouseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"marts"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"marts_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// BuildConfig holds incremental build settings.
type BuildConfig struct {
	// LookbackDays is subtracted from the watermark to form the reprocessing
	// window, so late-arriving updates to already-loaded rows are picked up.
	LookbackDays int `yaml:"lookback_days" env:"BUILD_LOOKBACK_DAYS" env-default:"3"`
}

// TestConfig holds data quality engine settings.
type TestConfig struct {
	// ReconcileTolerance is the default relative tolerance for aggregate
	// reconciliation rules. 0.01 means a 1% difference is still a pass.
	ReconcileTolerance float64 `yaml:"reconcile_tolerance" env:"TEST_RECONCILE_TOLERANCE" env-default:"0.01"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Build.LookbackDays < 0 {
		return fmt.Errorf("build.lookback_days must not be negative, got %d", c.Build.LookbackDays)
	}
	if c.Test.ReconcileTolerance < 0 {
		return fmt.Errorf("test.reconcile_tolerance must not be negative, got %f", c.Test.ReconcileTolerance)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the warehouse.
func (c *WarehouseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
