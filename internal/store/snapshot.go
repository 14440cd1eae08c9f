package store

import (
	"fmt"
	"time"

	"github.com/skillvault/skillvault/internal/errors"
	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/validation"
)

// Snapshot represents one raw measurement of an entity.
type Snapshot struct {
	TimestampMs int64
	EntityID    string
	DisplayName string
	PowerLevel  int
	Skills      types.SkillMap
}

// Time returns the snapshot timestamp as a time.Time.
func (s *Snapshot) Time() time.Time {
	return time.UnixMilli(s.TimestampMs).UTC()
}

// InsertSnapshot appends one raw row with the current timestamp. Monotonicity
// is not validated; the producer owns the cadence.
func (s *Store) InsertSnapshot(entityID, displayName string, powerLevel int, skills types.SkillMap) error {
	return s.InsertSnapshotAt(time.Now(), entityID, displayName, powerLevel, skills)
}

// InsertSnapshotAt appends one raw row with an explicit timestamp.
// Exposed for backfills and tests.
func (s *Store) InsertSnapshotAt(ts time.Time, entityID, displayName string, powerLevel int, skills types.SkillMap) error {
	if entityID == "" {
		return errors.NewMissingField("entity_id")
	}
	if err := validation.EntityID(entityID); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidEntityID)
	}
	if err := validation.DisplayName(displayName); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidDisplayName)
	}
	if err := validation.Skills(skills); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidMetric)
	}

	payload, err := types.EncodeSkillMap(skills)
	if err != nil {
		return fmt.Errorf("encode skills: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := s.defaultContext()
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (timestamp_ms, entity_id, display_name, power_level, skills)
		VALUES (?, ?, ?, ?, ?)
	`, ts.UnixMilli(), entityID, displayName, powerLevel, string(payload))
	if err != nil {
		return errors.NewStorage("insert snapshot", err)
	}
	return nil
}

// GetSnapshotsOlderThan returns all raw rows older than the cutoff, ordered
// by timestamp ascending. The compactor depends on the ordering: the first
// row of each bucket group supplies the start skill map and the last supplies
// the end skill map.
func (s *Store) GetSnapshotsOlderThan(cutoff time.Time) ([]Snapshot, error) {
	ctx, cancel := s.defaultContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ms, entity_id, display_name, power_level, skills
		FROM snapshots
		WHERE timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, cutoff.UnixMilli())
	if err != nil {
		return nil, errors.NewStorage("query old snapshots", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetSnapshotsInRange returns one entity's raw rows in [start, end), ordered
// by timestamp ascending.
func (s *Store) GetSnapshotsInRange(entityID string, start, end time.Time) ([]Snapshot, error) {
	ctx, cancel := s.defaultContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ms, entity_id, display_name, power_level, skills
		FROM snapshots
		WHERE entity_id = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, entityID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, errors.NewStorage("query snapshot range", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// DeleteSnapshotsOlderThan removes raw rows older than the cutoff and returns
// the number removed. Zero matches is not an error.
func (s *Store) DeleteSnapshotsOlderThan(cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := s.defaultContext()
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE timestamp_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, errors.NewStorage("delete old snapshots", err)
	}
	return result.RowsAffected()
}

// CountSnapshots returns the number of raw rows.
func (s *Store) CountSnapshots() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&count)
	if err != nil {
		return 0, errors.NewStorage("count snapshots", err)
	}
	return count, nil
}

// scanSnapshots scans rows into Snapshot values, decoding skill payloads.
// A row with a malformed payload fails the whole scan; callers decide whether
// to degrade (see storage.Service).
func scanSnapshots(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]Snapshot, error) {
	var out []Snapshot

	for rows.Next() {
		var snap Snapshot
		var payload string

		if err := rows.Scan(&snap.TimestampMs, &snap.EntityID, &snap.DisplayName,
			&snap.PowerLevel, &payload); err != nil {
			return nil, errors.NewStorage("scan snapshot", err)
		}

		skills, err := types.DecodeSkillMap([]byte(payload))
		if err != nil {
			return nil, errors.NewDecode(fmt.Sprintf("snapshot %s@%d", snap.EntityID, snap.TimestampMs), err)
		}
		snap.Skills = skills

		out = append(out, snap)
	}

	return out, rows.Err()
}
