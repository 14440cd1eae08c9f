// Package storage is the facade over the tiered snapshot store. It wires the
// store, retention manager, compaction engine, and query planner into one
// service with a small, failure-tolerant surface: recording operations log
// failures and report them as a boolean or zero count instead of propagating
// errors to callers on the hot path.
package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/skillvault/skillvault/internal/logging"
	"github.com/skillvault/skillvault/internal/metrics"
	"github.com/skillvault/skillvault/internal/storage/compaction"
	"github.com/skillvault/skillvault/internal/storage/query"
	"github.com/skillvault/skillvault/internal/storage/retention"
	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/store"
)

var log = logging.Component("storage")

// Config configures the storage service.
type Config struct {
	Store     store.Config
	Retention types.RetentionPolicy

	// PercentileAccuracy enables hourly power percentiles when > 0.
	PercentileAccuracy float64
}

// DefaultConfig returns a service configuration with defaults.
func DefaultConfig() Config {
	return Config{
		Store:     store.DefaultConfig(),
		Retention: types.DefaultRetentionPolicy(),
	}
}

// Service orchestrates the storage components.
type Service struct {
	config Config

	store      *store.Store
	retention  *retention.Manager
	compaction *compaction.Engine
	query      *query.Planner

	startTime time.Time

	snapshotsRecorded atomic.Int64
	levelUpsRecorded  atomic.Int64
	recordFailures    atomic.Int64
}

// Open creates the service and opens its database.
func Open(cfg Config) (*Service, error) {
	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ret := retention.New(st, cfg.Retention)

	var compOpts []compaction.Option
	if cfg.PercentileAccuracy > 0 {
		compOpts = append(compOpts, compaction.WithPercentiles(cfg.PercentileAccuracy))
	}

	metrics.Init()

	return &Service{
		config:     cfg,
		store:      st,
		retention:  ret,
		compaction: compaction.New(st, ret, compOpts...),
		query:      query.New(st, ret),
		startTime:  time.Now(),
	}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.store.Close()
}

// =============================================================================
// Recording
// =============================================================================

// RecordSnapshot stores one player snapshot. Returns false on failure; the
// failure is logged, never propagated.
func (s *Service) RecordSnapshot(entityID, displayName string, powerLevel int, skills types.SkillMap) bool {
	if err := s.store.InsertSnapshot(entityID, displayName, powerLevel, skills); err != nil {
		s.recordFailures.Add(1)
		log.Error("record snapshot", "entity", entityID, "error", err)
		return false
	}
	s.snapshotsRecorded.Add(1)
	metrics.SnapshotsInserted.Inc()
	return true
}

// RecordLevelUp stores one level-up event. Returns false on failure.
func (s *Service) RecordLevelUp(entityID, displayName, skill string, oldLevel, newLevel int) bool {
	if err := s.store.InsertLevelUp(entityID, displayName, skill, oldLevel, newLevel); err != nil {
		s.recordFailures.Add(1)
		log.Error("record level-up", "entity", entityID, "skill", skill, "error", err)
		return false
	}
	s.levelUpsRecorded.Add(1)
	metrics.LevelUpsInserted.Inc()
	return true
}

// =============================================================================
// Compaction and pruning
// =============================================================================

// CompactRawToHourly runs the raw→hourly stage.
func (s *Service) CompactRawToHourly() (compacted, deleted int64) {
	return s.compaction.CompactRawToHourly()
}

// CompactHourlyToDaily runs the hourly→daily stage.
func (s *Service) CompactHourlyToDaily() (compacted, deleted int64) {
	return s.compaction.CompactHourlyToDaily()
}

// CompactDailyToWeekly runs the daily→weekly stage.
func (s *Service) CompactDailyToWeekly() (compacted, deleted int64) {
	return s.compaction.CompactDailyToWeekly()
}

// CompactAll runs the three stages in rollup order.
func (s *Service) CompactAll() (compacted, deleted int64) {
	for _, stage := range []func() (int64, int64){
		s.compaction.CompactRawToHourly,
		s.compaction.CompactHourlyToDaily,
		s.compaction.CompactDailyToWeekly,
	} {
		c, d := stage()
		compacted += c
		deleted += d
	}
	return compacted, deleted
}

// PruneLevelUps deletes level-up events older than the cutoff. Returns the
// number of rows removed, zero on failure.
func (s *Service) PruneLevelUps(olderThan time.Time) int64 {
	return s.retention.PruneLevelUps(olderThan)
}

// PruneWeekly deletes weekly summaries past the weekly retention horizon.
func (s *Service) PruneWeekly() int64 {
	return s.retention.PruneWeekly(time.Now().UTC())
}

// =============================================================================
// Queries
// =============================================================================

// GetTrend answers a trend query across the storage tiers.
func (s *Service) GetTrend(ctx context.Context, entityID, metric string, tf types.Timeframe) query.TrendResult {
	return s.query.GetTrend(ctx, entityID, metric, tf)
}

// GetLevelUps returns level-up events for one entity, newest first.
func (s *Service) GetLevelUps(entityID string, tf types.Timeframe, limit int) ([]store.LevelUpEvent, error) {
	return s.query.GetLevelUps(entityID, tf, limit)
}

// =============================================================================
// Retention policy
// =============================================================================

// SetRetentionPolicy updates the configured policy and appends a history row
// if it differs from the current one. Past summaries are never rewritten.
func (s *Service) SetRetentionPolicy(policy types.RetentionPolicy) error {
	if err := s.retention.SetConfigured(policy); err != nil {
		return err
	}
	s.retention.Record()
	return nil
}

// RetentionPolicy returns the policy currently in effect.
func (s *Service) RetentionPolicy() types.RetentionPolicy {
	return s.retention.Effective()
}

// ConfigHistory returns the recorded policy history, newest first.
func (s *Service) ConfigHistory() ([]store.ConfigSnapshot, error) {
	return s.store.GetConfigHistory()
}

// =============================================================================
// Introspection
// =============================================================================

// Store exposes the underlying store for tooling (export, CLI).
func (s *Service) Store() *store.Store {
	return s.store
}

// Health pings the database.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// Stats returns combined statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Uptime:            time.Since(s.startTime),
		SnapshotsRecorded: s.snapshotsRecorded.Load(),
		LevelUpsRecorded:  s.levelUpsRecorded.Load(),
		RecordFailures:    s.recordFailures.Load(),
		Compaction:        s.compaction.Stats(),
		Retention:         s.retention.Stats(),
	}
}

// ServiceStats holds combined statistics.
type ServiceStats struct {
	Uptime            time.Duration
	SnapshotsRecorded int64
	LevelUpsRecorded  int64
	RecordFailures    int64
	Compaction        compaction.EngineStats
	Retention         retention.ManagerStats
}
