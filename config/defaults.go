// Package config provides configuration defaults and utilities
// for the skillvault application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or CLI flags.
package config

import "time"

// =============================================================================
// Database Defaults
// =============================================================================

const (
	// DefaultDatabasePath is the default database file location.
	// Override via config: database.path
	DefaultDatabasePath = "skillvault.db"

	// DefaultQueryTimeout bounds every statement against the database.
	// Override via config: database.query_timeout
	DefaultQueryTimeout = 30 * time.Second

	// DefaultMaxOpenConns is the connection pool ceiling. Reads fan out;
	// writes serialize on the store's writer lock regardless.
	// Override via config: database.max_open_conns
	DefaultMaxOpenConns = 8

	// DefaultMaxIdleConns is the number of idle pooled connections kept.
	// Override via config: database.max_idle_conns
	DefaultMaxIdleConns = 2
)

// =============================================================================
// Retention Defaults
// =============================================================================

const (
	// DefaultRawRetentionDays is how long raw snapshots are kept before the
	// raw→hourly stage consumes them.
	// Override via config: retention.raw_days
	DefaultRawRetentionDays = 7

	// DefaultHourlyRetentionDays is how long hourly summaries are kept.
	// Override via config: retention.hourly_days
	DefaultHourlyRetentionDays = 90

	// DefaultDailyRetentionDays is how long daily summaries are kept.
	// Override via config: retention.daily_days
	DefaultDailyRetentionDays = 365

	// DefaultWeeklyRetentionYears is how long weekly summaries are kept.
	// Override via config: retention.weekly_years
	DefaultWeeklyRetentionYears = 5
)

// =============================================================================
// Compaction Defaults
// =============================================================================

const (
	// DefaultHourlyCompactionInterval is the raw→hourly cadence.
	// Override via config: compaction.hourly_interval
	DefaultHourlyCompactionInterval = time.Hour

	// DefaultDailyCompactionInterval is the hourly→daily cadence.
	// Override via config: compaction.daily_interval
	DefaultDailyCompactionInterval = 6 * time.Hour

	// DefaultWeeklyCompactionInterval is the daily→weekly cadence.
	// Override via config: compaction.weekly_interval
	DefaultWeeklyCompactionInterval = 24 * time.Hour
)

// =============================================================================
// Prune Defaults
// =============================================================================

const (
	// DefaultLevelUpPruneInterval is how often the level-up prune runs.
	// Override via config: prune.levelup_interval
	DefaultLevelUpPruneInterval = 24 * time.Hour

	// DefaultLevelUpMaxAge is how long level-up events are kept.
	// Override via config: prune.levelup_max_age
	DefaultLevelUpMaxAge = 90 * 24 * time.Hour
)

// =============================================================================
// Scheduler Defaults
// =============================================================================

const (
	// DefaultSchedulerTickInterval is how often the scheduler checks for
	// due jobs.
	DefaultSchedulerTickInterval = time.Second

	// DefaultDrainTimeoutSec is how long shutdown waits for an in-flight
	// job, in seconds.
	DefaultDrainTimeoutSec = 30
)
