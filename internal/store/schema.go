package store

import (
	"fmt"

	"github.com/skillvault/skillvault/internal/logging"
)

var log = logging.Component("store")

// migrate creates the schema.
//
// This is idempotent - safe to run multiple times. All timestamps are stored
// as Unix milliseconds. Skill payloads are JSON columns holding a versioned
// typed envelope (see types.EncodeSkillMap / types.EncodeSkillDeltas).
func (s *Store) migrate() error {
	migrations := []struct {
		name string
		sql  string
	}{
		// Raw tier: one row per measurement, append-only.
		{
			name: "snapshots",
			sql: `CREATE TABLE IF NOT EXISTS snapshots (
				timestamp_ms BIGINT NOT NULL,
				entity_id VARCHAR NOT NULL,
				display_name VARCHAR NOT NULL,
				power_level INTEGER NOT NULL,
				skills JSON
			)`,
		},
		{
			name: "idx_snapshots_entity_ts",
			sql:  `CREATE INDEX IF NOT EXISTS idx_snapshots_entity_ts ON snapshots(entity_id, timestamp_ms)`,
		},
		{
			name: "idx_snapshots_ts",
			sql:  `CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(timestamp_ms)`,
		},

		// Level-up events: append-only, independently pruned by age.
		{
			name: "level_ups",
			sql: `CREATE TABLE IF NOT EXISTS level_ups (
				timestamp_ms BIGINT NOT NULL,
				entity_id VARCHAR NOT NULL,
				display_name VARCHAR NOT NULL,
				skill VARCHAR NOT NULL,
				old_level INTEGER NOT NULL,
				new_level INTEGER NOT NULL
			)`,
		},
		{
			name: "idx_level_ups_ts",
			sql:  `CREATE INDEX IF NOT EXISTS idx_level_ups_ts ON level_ups(timestamp_ms)`,
		},

		// Summary tiers: at most one row per (bucket_key, entity_id).
		// bucket_start_ms duplicates the key as an instant so range queries
		// never parse keys.
		{
			name: "hourly_summaries",
			sql: `CREATE TABLE IF NOT EXISTS hourly_summaries (
				hour_key VARCHAR NOT NULL,
				entity_id VARCHAR NOT NULL,
				display_name VARCHAR NOT NULL,
				bucket_start_ms BIGINT NOT NULL,
				start_power INTEGER NOT NULL,
				end_power INTEGER NOT NULL,
				p50_power DOUBLE,
				p95_power DOUBLE,
				skills JSON,
				PRIMARY KEY (hour_key, entity_id)
			)`,
		},
		{
			name: "idx_hourly_entity_start",
			sql:  `CREATE INDEX IF NOT EXISTS idx_hourly_entity_start ON hourly_summaries(entity_id, bucket_start_ms)`,
		},
		{
			name: "daily_summaries",
			sql: `CREATE TABLE IF NOT EXISTS daily_summaries (
				date_key VARCHAR NOT NULL,
				entity_id VARCHAR NOT NULL,
				display_name VARCHAR NOT NULL,
				bucket_start_ms BIGINT NOT NULL,
				start_power INTEGER NOT NULL,
				end_power INTEGER NOT NULL,
				skills JSON,
				PRIMARY KEY (date_key, entity_id)
			)`,
		},
		{
			name: "idx_daily_entity_start",
			sql:  `CREATE INDEX IF NOT EXISTS idx_daily_entity_start ON daily_summaries(entity_id, bucket_start_ms)`,
		},
		{
			name: "weekly_summaries",
			sql: `CREATE TABLE IF NOT EXISTS weekly_summaries (
				week_key VARCHAR NOT NULL,
				entity_id VARCHAR NOT NULL,
				display_name VARCHAR NOT NULL,
				bucket_start_ms BIGINT NOT NULL,
				start_power INTEGER NOT NULL,
				end_power INTEGER NOT NULL,
				skills JSON,
				PRIMARY KEY (week_key, entity_id)
			)`,
		},
		{
			name: "idx_weekly_entity_start",
			sql:  `CREATE INDEX IF NOT EXISTS idx_weekly_entity_start ON weekly_summaries(entity_id, bucket_start_ms)`,
		},

		// Operational bookkeeping, one row per key.
		{
			name: "metadata",
			sql: `CREATE TABLE IF NOT EXISTS metadata (
				key VARCHAR NOT NULL,
				value VARCHAR NOT NULL,
				updated_at_ms BIGINT NOT NULL,
				PRIMARY KEY (key)
			)`,
		},

		// Retention policy history. Append-only; rows are never updated or
		// pruned, the newest row is the current policy.
		{
			name: "config_history",
			sql: `CREATE TABLE IF NOT EXISTS config_history (
				effective_from_ms BIGINT NOT NULL,
				raw_retention_days INTEGER NOT NULL,
				hourly_retention_days INTEGER NOT NULL,
				daily_retention_days INTEGER NOT NULL,
				weekly_retention_years INTEGER NOT NULL
			)`,
		},
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		log.Debug("migration applied", "name", m.name)
	}

	log.Debug("schema migration completed", "migrations", len(migrations))
	return nil
}
