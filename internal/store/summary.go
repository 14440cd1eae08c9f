package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/skillvault/skillvault/internal/errors"
	"github.com/skillvault/skillvault/internal/storage/types"
)

// Summary represents one summarized bucket for an entity in the hourly,
// daily, or weekly tier. P50Power/P95Power are only populated on the hourly
// tier, and only when percentile tracking is enabled.
type Summary struct {
	BucketKey     string
	EntityID      string
	DisplayName   string
	BucketStartMs int64
	StartPower    int
	EndPower      int
	P50Power      *float64
	P95Power      *float64
	Skills        types.SkillDeltaMap
}

// BucketStart returns the bucket start as a time.Time.
func (s *Summary) BucketStart() time.Time {
	return time.UnixMilli(s.BucketStartMs).UTC()
}

// summaryTable maps a summary tier to its table and bucket key column.
func summaryTable(tier types.Tier) (table, keyCol string, err error) {
	switch tier {
	case types.TierHourly:
		return "hourly_summaries", "hour_key", nil
	case types.TierDaily:
		return "daily_summaries", "date_key", nil
	case types.TierWeekly:
		return "weekly_summaries", "week_key", nil
	default:
		return "", "", errors.Wrapf(errors.ErrInvalidTier, "no summary table for tier %s", tier)
	}
}

// summaryColumns builds the select list for a tier. Only the hourly tier
// carries percentile columns.
func summaryColumns(tier types.Tier, keyCol string) string {
	cols := keyCol + ", entity_id, display_name, bucket_start_ms, start_power, end_power"
	if tier == types.TierHourly {
		cols += ", p50_power, p95_power"
	}
	return cols + ", skills"
}

// UpsertSummary inserts or replaces a summary row keyed by
// (bucket_key, entity_id). The hourly tier carries optional percentile
// columns; the coarser tiers do not.
func (s *Store) UpsertSummary(tier types.Tier, sum Summary) error {
	table, keyCol, err := summaryTable(tier)
	if err != nil {
		return err
	}

	payload, err := types.EncodeSkillDeltas(sum.Skills)
	if err != nil {
		return fmt.Errorf("encode skill aggregate: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := s.defaultContext()
	defer cancel()

	if tier == types.TierHourly {
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (%s, entity_id, display_name, bucket_start_ms,
				start_power, end_power, p50_power, p95_power, skills)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, table, keyCol),
			sum.BucketKey, sum.EntityID, sum.DisplayName, sum.BucketStartMs,
			sum.StartPower, sum.EndPower, sum.P50Power, sum.P95Power, string(payload))
	} else {
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (%s, entity_id, display_name, bucket_start_ms,
				start_power, end_power, skills)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, table, keyCol),
			sum.BucketKey, sum.EntityID, sum.DisplayName, sum.BucketStartMs,
			sum.StartPower, sum.EndPower, string(payload))
	}
	if err != nil {
		return errors.NewStorage(fmt.Sprintf("upsert %s", table), err)
	}
	return nil
}

// GetSummariesOlderThan returns all rows of a summary tier whose bucket
// starts before the cutoff, ordered by bucket start ascending.
func (s *Store) GetSummariesOlderThan(tier types.Tier, cutoff time.Time) ([]Summary, error) {
	table, keyCol, err := summaryTable(tier)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.defaultContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE bucket_start_ms < ?
		ORDER BY bucket_start_ms ASC
	`, summaryColumns(tier, keyCol), table), cutoff.UnixMilli())
	if err != nil {
		return nil, errors.NewStorage(fmt.Sprintf("query old %s", table), err)
	}
	defer rows.Close()

	return scanSummaries(rows, tier == types.TierHourly)
}

// GetSummariesInRange returns one entity's summary rows with bucket start in
// [start, end), ordered by bucket start ascending.
func (s *Store) GetSummariesInRange(tier types.Tier, entityID string, start, end time.Time) ([]Summary, error) {
	table, keyCol, err := summaryTable(tier)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.defaultContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE entity_id = ? AND bucket_start_ms >= ? AND bucket_start_ms < ?
		ORDER BY bucket_start_ms ASC
	`, summaryColumns(tier, keyCol), table), entityID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, errors.NewStorage(fmt.Sprintf("query %s range", table), err)
	}
	defer rows.Close()

	return scanSummaries(rows, tier == types.TierHourly)
}

// GetAllSummaries returns every row of a summary tier ordered by bucket
// start. Used by the Parquet exporter.
func (s *Store) GetAllSummaries(tier types.Tier) ([]Summary, error) {
	table, keyCol, err := summaryTable(tier)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.defaultContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY bucket_start_ms ASC, entity_id ASC
	`, summaryColumns(tier, keyCol), table))
	if err != nil {
		return nil, errors.NewStorage(fmt.Sprintf("query all %s", table), err)
	}
	defer rows.Close()

	return scanSummaries(rows, tier == types.TierHourly)
}

// DeleteSummariesOlderThan removes summary rows whose bucket starts before
// the cutoff and returns the number removed.
func (s *Store) DeleteSummariesOlderThan(tier types.Tier, cutoff time.Time) (int64, error) {
	table, _, err := summaryTable(tier)
	if err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := s.defaultContext()
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE bucket_start_ms < ?`, table), cutoff.UnixMilli())
	if err != nil {
		return 0, errors.NewStorage(fmt.Sprintf("delete old %s", table), err)
	}
	return result.RowsAffected()
}

// CountSummaries returns the number of rows in a summary tier.
func (s *Store) CountSummaries(tier types.Tier) (int64, error) {
	table, _, err := summaryTable(tier)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count); err != nil {
		return 0, errors.NewStorage(fmt.Sprintf("count %s", table), err)
	}
	return count, nil
}

// scanSummaries scans rows into Summary values, decoding skill aggregates.
// withPercentiles matches the column list built by summaryColumns.
func scanSummaries(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}, withPercentiles bool) ([]Summary, error) {
	var out []Summary

	for rows.Next() {
		var sum Summary
		var payload string
		var p50, p95 sql.NullFloat64

		dest := []interface{}{&sum.BucketKey, &sum.EntityID, &sum.DisplayName,
			&sum.BucketStartMs, &sum.StartPower, &sum.EndPower}
		if withPercentiles {
			dest = append(dest, &p50, &p95)
		}
		dest = append(dest, &payload)

		if err := rows.Scan(dest...); err != nil {
			return nil, errors.NewStorage("scan summary", err)
		}

		if p50.Valid {
			v := p50.Float64
			sum.P50Power = &v
		}
		if p95.Valid {
			v := p95.Float64
			sum.P95Power = &v
		}

		skills, err := types.DecodeSkillDeltas([]byte(payload))
		if err != nil {
			return nil, errors.NewDecode(fmt.Sprintf("summary %s/%s", sum.BucketKey, sum.EntityID), err)
		}
		sum.Skills = skills

		out = append(out, sum)
	}

	return out, rows.Err()
}
