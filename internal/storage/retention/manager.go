// Package retention manages the retention-policy history and age-based
// pruning that is not part of a rollup stage (level-up events, expired
// weekly rows).
//
// The configured policy is compared against the newest recorded
// ConfigSnapshot on every compaction and query cycle; a new history row is
// appended only when thresholds actually changed, so stale compaction
// decisions stay explainable after configuration changes. History is never
// applied retroactively: consumers always resolve boundaries from the newest
// row.
package retention

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillvault/skillvault/internal/logging"
	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/store"
)

var log = logging.Component("retention")

// Manager records policy history and prunes aged-out rows.
type Manager struct {
	mu         sync.RWMutex
	store      *store.Store
	configured types.RetentionPolicy

	stats Stats
}

// Stats holds retention statistics.
type Stats struct {
	ConfigRowsWritten atomic.Int64
	LevelUpsPruned    atomic.Int64
	WeeklyRowsPruned  atomic.Int64
	Errors            atomic.Int64
}

// New creates a retention manager around the configured policy. An invalid
// policy falls back to the built-in defaults.
func New(st *store.Store, policy types.RetentionPolicy) *Manager {
	if err := policy.Validate(); err != nil {
		log.Warn("configured retention policy invalid, using defaults", "error", err)
		policy = types.DefaultRetentionPolicy()
	}
	return &Manager{
		store:      st,
		configured: policy,
	}
}

// Configured returns the policy from configuration.
func (m *Manager) Configured() types.RetentionPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configured
}

// SetConfigured replaces the configured policy (config reload). The change
// reaches the history on the next Record call.
func (m *Manager) SetConfigured(policy types.RetentionPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.configured = policy
	m.mu.Unlock()
	return nil
}

// Record appends a ConfigSnapshot when the configured policy differs from
// the newest recorded row. Returns true when a row was written.
func (m *Manager) Record() bool {
	written, err := m.store.RecordConfigIfChanged(m.Configured())
	if err != nil {
		m.stats.Errors.Add(1)
		log.Error("record retention config", "error", err)
		return false
	}
	if written {
		m.stats.ConfigRowsWritten.Add(1)
		log.Info("retention config changed, history row appended", "policy", m.Configured())
	}
	return written
}

// Effective returns the policy consumers must plan against: the newest
// recorded ConfigSnapshot, or the built-in defaults when nothing was ever
// recorded. Storage failures degrade to the defaults rather than failing the
// caller.
func (m *Manager) Effective() types.RetentionPolicy {
	snap, err := m.store.GetCurrentConfig()
	if err != nil {
		m.stats.Errors.Add(1)
		log.Error("load current retention config, using defaults", "error", err)
		return types.DefaultRetentionPolicy()
	}
	if snap == nil {
		return types.DefaultRetentionPolicy()
	}
	return snap.Policy
}

// PruneLevelUps deletes level-up events older than the cutoff and returns
// the number removed. Failures log and return zero.
func (m *Manager) PruneLevelUps(olderThan time.Time) int64 {
	deleted, err := m.store.DeleteLevelUpsOlderThan(olderThan)
	if err != nil {
		m.stats.Errors.Add(1)
		log.Error("prune level-ups", "error", err)
		return 0
	}
	if deleted > 0 {
		m.stats.LevelUpsPruned.Add(deleted)
		log.Info("pruned level-ups", "deleted", deleted, "older_than", olderThan)
	}
	if err := m.store.SetMetadata(store.MetaLastLevelUpPrune, time.Now().UTC().Format(time.RFC3339)); err != nil {
		log.Warn("record level-up prune time", "error", err)
	}
	return deleted
}

// PruneWeekly deletes weekly summaries older than the effective weekly
// retention. The weekly tier is the end of the line: its rows are dropped,
// not rolled up further.
func (m *Manager) PruneWeekly(now time.Time) int64 {
	cutoff := m.Effective().WeeklyCutoff(now)
	deleted, err := m.store.DeleteSummariesOlderThan(types.TierWeekly, cutoff)
	if err != nil {
		m.stats.Errors.Add(1)
		log.Error("prune weekly summaries", "error", err)
		return 0
	}
	if deleted > 0 {
		m.stats.WeeklyRowsPruned.Add(deleted)
		log.Info("pruned weekly summaries", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		ConfigRowsWritten: m.stats.ConfigRowsWritten.Load(),
		LevelUpsPruned:    m.stats.LevelUpsPruned.Load(),
		WeeklyRowsPruned:  m.stats.WeeklyRowsPruned.Load(),
		Errors:            m.stats.Errors.Load(),
	}
}

// ManagerStats holds manager statistics.
type ManagerStats struct {
	ConfigRowsWritten int64
	LevelUpsPruned    int64
	WeeklyRowsPruned  int64
	Errors            int64
}
