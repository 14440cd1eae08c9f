package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/skillvault/skillvault.db
logging:
  level: debug
  json: true
retention:
  raw_days: 14
  hourly_days: 120
  daily_days: 400
  weekly_years: 10
compaction:
  hourly_interval: 30m
  percentile_accuracy: 0.01
metrics:
  listen: ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/var/lib/skillvault/skillvault.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Retention.RawDays != 14 || cfg.Retention.WeeklyYears != 10 {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if cfg.Compaction.HourlyInterval != 30*time.Minute {
		t.Errorf("hourly interval = %v", cfg.Compaction.HourlyInterval)
	}
	if cfg.Compaction.PercentileAccuracy != 0.01 {
		t.Errorf("percentile accuracy = %v", cfg.Compaction.PercentileAccuracy)
	}
	if cfg.Metrics.Listen != ":9090" {
		t.Errorf("metrics listen = %q", cfg.Metrics.Listen)
	}

	// Omitted sections keep their defaults.
	if cfg.Compaction.DailyInterval != 6*time.Hour {
		t.Errorf("daily interval default = %v", cfg.Compaction.DailyInterval)
	}
	if cfg.Database.QueryTimeout != 30*time.Second {
		t.Errorf("query timeout default = %v", cfg.Database.QueryTimeout)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SKILLVAULT_DB", "/tmp/from-env.db")

	path := writeConfig(t, `
database:
  path: ${SKILLVAULT_DB}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("database path = %q, want env expansion", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Retention.RawDays = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for zero raw retention")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unknown log level")
	}

	cfg = DefaultConfig()
	cfg.Compaction.PercentileAccuracy = 1.5
	if err := Validate(cfg); err == nil {
		t.Error("expected error for out-of-range percentile accuracy")
	}

	cfg = DefaultConfig()
	cfg.Prune.LevelUpMaxAge = -time.Hour
	if err := Validate(cfg); err == nil {
		t.Error("expected error for negative level-up max age")
	}
}
