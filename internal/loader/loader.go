// Package loader handles configuration file loading and validation.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Filling defaults for omitted sections
//   - Validating the merged result
package loader

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skillvault/skillvault/config"
	"github.com/skillvault/skillvault/internal/errors"
	"github.com/skillvault/skillvault/internal/storage/types"
)

// Config is the top-level daemon configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retention  RetentionConfig  `yaml:"retention"`
	Compaction CompactionConfig `yaml:"compaction"`
	Prune      PruneConfig      `yaml:"prune"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// DatabaseConfig configures the embedded database.
type DatabaseConfig struct {
	// Path to the database file. Empty means in-memory (tests only).
	Path string `yaml:"path"`

	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

// LoggingConfig configures the log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches from text to JSON output.
	JSON bool `yaml:"json"`
}

// RetentionConfig mirrors types.RetentionPolicy in YAML form.
type RetentionConfig struct {
	RawDays     int `yaml:"raw_days"`
	HourlyDays  int `yaml:"hourly_days"`
	DailyDays   int `yaml:"daily_days"`
	WeeklyYears int `yaml:"weekly_years"`
}

// Policy converts the YAML form to the internal policy type.
func (r RetentionConfig) Policy() types.RetentionPolicy {
	return types.RetentionPolicy{
		RawDays:     r.RawDays,
		HourlyDays:  r.HourlyDays,
		DailyDays:   r.DailyDays,
		WeeklyYears: r.WeeklyYears,
	}
}

// CompactionConfig configures the rollup cadences.
type CompactionConfig struct {
	// HourlyInterval is how often the raw→hourly stage runs.
	HourlyInterval time.Duration `yaml:"hourly_interval"`

	// DailyInterval is how often the hourly→daily stage runs.
	DailyInterval time.Duration `yaml:"daily_interval"`

	// WeeklyInterval is how often the daily→weekly stage runs.
	WeeklyInterval time.Duration `yaml:"weekly_interval"`

	// PercentileAccuracy enables hourly power percentiles when > 0
	// (relative accuracy, 0.01 = 1%).
	PercentileAccuracy float64 `yaml:"percentile_accuracy"`
}

// PruneConfig configures event pruning.
type PruneConfig struct {
	// LevelUpInterval is how often the level-up prune runs.
	LevelUpInterval time.Duration `yaml:"levelup_interval"`

	// LevelUpMaxAge is how long level-up events are kept.
	LevelUpMaxAge time.Duration `yaml:"levelup_max_age"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for /metrics. Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         config.DefaultDatabasePath,
			QueryTimeout: config.DefaultQueryTimeout,
			MaxOpenConns: config.DefaultMaxOpenConns,
			MaxIdleConns: config.DefaultMaxIdleConns,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Retention: RetentionConfig{
			RawDays:     config.DefaultRawRetentionDays,
			HourlyDays:  config.DefaultHourlyRetentionDays,
			DailyDays:   config.DefaultDailyRetentionDays,
			WeeklyYears: config.DefaultWeeklyRetentionYears,
		},
		Compaction: CompactionConfig{
			HourlyInterval: config.DefaultHourlyCompactionInterval,
			DailyInterval:  config.DefaultDailyCompactionInterval,
			WeeklyInterval: config.DefaultWeeklyCompactionInterval,
		},
		Prune: PruneConfig{
			LevelUpInterval: config.DefaultLevelUpPruneInterval,
			LevelUpMaxAge:   config.DefaultLevelUpMaxAge,
		},
		Metrics: MetricsConfig{
			Listen: "",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for contradictions.
func Validate(cfg *Config) error {
	if err := cfg.Retention.Policy().Validate(); err != nil {
		return err
	}

	if cfg.Database.QueryTimeout <= 0 {
		return errors.NewValidation("database.query_timeout", "must be positive")
	}
	if cfg.Database.MaxOpenConns < 1 {
		return errors.NewValidation("database.max_open_conns", "must be at least 1")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewValidation("logging.level", "must be debug, info, warn, or error")
	}

	if cfg.Compaction.HourlyInterval <= 0 {
		return errors.NewValidation("compaction.hourly_interval", "must be positive")
	}
	if cfg.Compaction.DailyInterval <= 0 {
		return errors.NewValidation("compaction.daily_interval", "must be positive")
	}
	if cfg.Compaction.WeeklyInterval <= 0 {
		return errors.NewValidation("compaction.weekly_interval", "must be positive")
	}
	if cfg.Compaction.PercentileAccuracy < 0 || cfg.Compaction.PercentileAccuracy >= 1 {
		return errors.NewValidation("compaction.percentile_accuracy", "must be in [0, 1)")
	}

	if cfg.Prune.LevelUpInterval <= 0 {
		return errors.NewValidation("prune.levelup_interval", "must be positive")
	}
	if cfg.Prune.LevelUpMaxAge <= 0 {
		return errors.NewValidation("prune.levelup_max_age", "must be positive")
	}

	return nil
}
