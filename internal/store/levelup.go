package store

import (
	"fmt"
	"time"

	"github.com/skillvault/skillvault/internal/errors"
	"github.com/skillvault/skillvault/internal/validation"
)

// LevelUpEvent represents one skill level-up emitted by the producer.
type LevelUpEvent struct {
	TimestampMs int64
	EntityID    string
	DisplayName string
	Skill       string
	OldLevel    int
	NewLevel    int
}

// InsertLevelUp appends one event row with the current timestamp.
func (s *Store) InsertLevelUp(entityID, displayName, skill string, oldLevel, newLevel int) error {
	return s.InsertLevelUpAt(time.Now(), entityID, displayName, skill, oldLevel, newLevel)
}

// InsertLevelUpAt appends one event row with an explicit timestamp.
func (s *Store) InsertLevelUpAt(ts time.Time, entityID, displayName, skill string, oldLevel, newLevel int) error {
	if entityID == "" {
		return errors.NewMissingField("entity_id")
	}
	if skill == "" {
		return errors.NewMissingField("skill")
	}
	if err := validation.EntityID(entityID); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidEntityID)
	}
	if err := validation.DisplayName(displayName); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidDisplayName)
	}
	if err := validation.SkillName(skill); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidMetric)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := s.defaultContext()
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO level_ups (timestamp_ms, entity_id, display_name, skill, old_level, new_level)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ts.UnixMilli(), entityID, displayName, skill, oldLevel, newLevel)
	if err != nil {
		return errors.NewStorage("insert level-up", err)
	}
	return nil
}

// GetLevelUps returns one entity's events in [start, end), newest first.
func (s *Store) GetLevelUps(entityID string, start, end time.Time, limit int) ([]LevelUpEvent, error) {
	ctx, cancel := s.defaultContext()
	defer cancel()

	query := `
		SELECT timestamp_ms, entity_id, display_name, skill, old_level, new_level
		FROM level_ups
		WHERE entity_id = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms DESC
	`
	args := []interface{}{entityID, start.UnixMilli(), end.UnixMilli()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorage("query level-ups", err)
	}
	defer rows.Close()

	var out []LevelUpEvent
	for rows.Next() {
		var ev LevelUpEvent
		if err := rows.Scan(&ev.TimestampMs, &ev.EntityID, &ev.DisplayName,
			&ev.Skill, &ev.OldLevel, &ev.NewLevel); err != nil {
			return nil, errors.NewStorage("scan level-up", err)
		}
		out = append(out, ev)
	}

	return out, rows.Err()
}

// DeleteLevelUpsOlderThan removes events older than the cutoff and returns
// the number removed. Zero matches is not an error.
func (s *Store) DeleteLevelUpsOlderThan(cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := s.defaultContext()
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM level_ups WHERE timestamp_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, errors.NewStorage("delete old level-ups", err)
	}
	return result.RowsAffected()
}

// CountLevelUps returns the number of event rows.
func (s *Store) CountLevelUps() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM level_ups`).Scan(&count)
	if err != nil {
		return 0, errors.NewStorage("count level-ups", err)
	}
	return count, nil
}
