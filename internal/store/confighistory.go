package store

import (
	"database/sql"
	"time"

	"github.com/skillvault/skillvault/internal/errors"
	"github.com/skillvault/skillvault/internal/storage/types"
)

// ConfigSnapshot is one immutable row of the retention-policy history.
// The newest row is the current policy.
type ConfigSnapshot struct {
	EffectiveFromMs int64
	Policy          types.RetentionPolicy
}

// EffectiveFrom returns the instant the policy took effect.
func (c *ConfigSnapshot) EffectiveFrom() time.Time {
	return time.UnixMilli(c.EffectiveFromMs).UTC()
}

// GetCurrentConfig returns the most recent ConfigSnapshot, or nil when no
// policy has ever been recorded (callers fall back to built-in defaults).
func (s *Store) GetCurrentConfig() (*ConfigSnapshot, error) {
	var snap ConfigSnapshot
	err := s.db.QueryRow(`
		SELECT effective_from_ms, raw_retention_days, hourly_retention_days,
		       daily_retention_days, weekly_retention_years
		FROM config_history
		ORDER BY effective_from_ms DESC, rowid DESC
		LIMIT 1
	`).Scan(&snap.EffectiveFromMs, &snap.Policy.RawDays, &snap.Policy.HourlyDays,
		&snap.Policy.DailyDays, &snap.Policy.WeeklyYears)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorage("get current config", err)
	}
	return &snap, nil
}

// GetConfigHistory returns the full policy history, newest first.
func (s *Store) GetConfigHistory() ([]ConfigSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT effective_from_ms, raw_retention_days, hourly_retention_days,
		       daily_retention_days, weekly_retention_years
		FROM config_history
		ORDER BY effective_from_ms DESC, rowid DESC
	`)
	if err != nil {
		return nil, errors.NewStorage("query config history", err)
	}
	defer rows.Close()

	var out []ConfigSnapshot
	for rows.Next() {
		var snap ConfigSnapshot
		if err := rows.Scan(&snap.EffectiveFromMs, &snap.Policy.RawDays,
			&snap.Policy.HourlyDays, &snap.Policy.DailyDays, &snap.Policy.WeeklyYears); err != nil {
			return nil, errors.NewStorage("scan config snapshot", err)
		}
		out = append(out, snap)
	}

	return out, rows.Err()
}

// RecordConfigIfChanged appends a new history row with effective_from = now
// if the policy differs from the most recent row. Returns true when a row was
// written. Rows are immutable once written; the history itself is never
// pruned.
func (s *Store) RecordConfigIfChanged(policy types.RetentionPolicy) (bool, error) {
	// The compare and the append are one atomic step under the writer lock:
	// two concurrent recorders of the same policy must produce one row.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.GetCurrentConfig()
	if err != nil {
		return false, err
	}
	if current != nil && current.Policy.Equal(policy) {
		return false, nil
	}

	ctx, cancel := s.defaultContext()
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config_history (effective_from_ms, raw_retention_days,
			hourly_retention_days, daily_retention_days, weekly_retention_years)
		VALUES (?, ?, ?, ?, ?)
	`, time.Now().UnixMilli(), policy.RawDays, policy.HourlyDays,
		policy.DailyDays, policy.WeeklyYears)
	if err != nil {
		return false, errors.NewStorage("record config", err)
	}
	return true, nil
}
