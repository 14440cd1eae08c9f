package store

import (
	"database/sql"
	"time"

	"github.com/skillvault/skillvault/internal/errors"
)

// Well-known metadata keys.
const (
	MetaLastCompactionHourly = "last_compaction_raw_to_hourly"
	MetaLastCompactionDaily  = "last_compaction_hourly_to_daily"
	MetaLastCompactionWeekly = "last_compaction_daily_to_weekly"
	MetaLastLevelUpPrune     = "last_levelup_prune"
)

// GetMetadata returns the value for a key, or "" when the key has never been
// set. An unset key is a normal state, not an error.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewStorage("get metadata", err)
	}
	return value, nil
}

// SetMetadata inserts or replaces the value for a key.
func (s *Store) SetMetadata(key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := s.defaultContext()
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO metadata (key, value, updated_at_ms)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return errors.NewStorage("set metadata", err)
	}
	return nil
}
