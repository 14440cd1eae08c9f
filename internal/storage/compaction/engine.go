// Package compaction implements the tier-to-tier rollup pipeline:
// raw → hourly → daily → weekly.
//
// Each stage groups source rows older than the stage cutoff into
// calendar-aligned buckets per entity, writes one summary row per bucket,
// and deletes the source rows once every summary of the run is durably
// written. Stages are idempotent: already-compacted rows no longer exist, so
// a re-run only touches rows that slipped past the previous cutoff.
package compaction

import (
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/skillvault/skillvault/internal/logging"
	"github.com/skillvault/skillvault/internal/metrics"
	"github.com/skillvault/skillvault/internal/storage/retention"
	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/store"
)

var log = logging.Component("compactor")

// Stage names, used in logs, metadata, and metrics labels.
const (
	StageRawToHourly   = "raw_to_hourly"
	StageHourlyToDaily = "hourly_to_daily"
	StageDailyToWeekly = "daily_to_weekly"
)

// Engine runs the rollup stages against one store.
type Engine struct {
	store     *store.Store
	retention *retention.Manager

	// percentileAccuracy > 0 enables DDSketch power percentiles on hourly
	// rows (relative accuracy, 0.01 = 1%).
	percentileAccuracy float64

	// now is replaceable for tests.
	now func() time.Time

	stats Stats
}

// Stats holds compaction statistics.
type Stats struct {
	StageRuns     atomic.Int64
	StageFailures atomic.Int64
	RowsCompacted atomic.Int64
	RowsDeleted   atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithPercentiles enables per-hour power percentile tracking with the given
// DDSketch relative accuracy.
func WithPercentiles(accuracy float64) Option {
	return func(e *Engine) { e.percentileAccuracy = accuracy }
}

// WithClock replaces the engine clock. Tests only.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a compaction engine.
func New(st *store.Store, ret *retention.Manager, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		retention: ret,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CompactRawToHourly rolls raw snapshots older than the raw retention cutoff
// into hourly summaries and deletes the consumed raw rows. Returns the number
// of summary rows written and raw rows deleted. Failures log and return what
// was achieved; they never propagate (the next scheduled run retries).
func (e *Engine) CompactRawToHourly() (compacted, deleted int64) {
	e.retention.Record()
	now := e.now().UTC()
	cutoff := e.retention.Effective().RawCutoff(now)

	rows, err := e.store.GetSnapshotsOlderThan(cutoff)
	if err != nil {
		return e.fail(StageRawToHourly, err)
	}
	if len(rows) == 0 {
		e.finish(StageRawToHourly, store.MetaLastCompactionHourly, 0, 0)
		return 0, 0
	}

	groups := groupSnapshots(rows)

	allWritten := true
	for _, g := range groups {
		sum := e.buildHourlySummary(g)
		if err := e.store.UpsertSummary(types.TierHourly, sum); err != nil {
			log.Error("upsert hourly summary", "bucket", sum.BucketKey, "entity", sum.EntityID, "error", err)
			allWritten = false
			continue
		}
		compacted++
	}

	// Source rows go only after every summary of this run is durable.
	// On partial failure the raw rows stay put and the next run retries.
	if allWritten {
		deleted, err = e.store.DeleteSnapshotsOlderThan(cutoff)
		if err != nil {
			log.Error("delete compacted snapshots", "error", err)
			deleted = 0
		}
	} else {
		log.Warn("skipping raw deletion, not all hourly summaries were written", "cutoff", cutoff)
	}

	e.finish(StageRawToHourly, store.MetaLastCompactionHourly, compacted, deleted)
	return compacted, deleted
}

// CompactHourlyToDaily rolls hourly summaries older than the hourly
// retention cutoff into daily summaries.
func (e *Engine) CompactHourlyToDaily() (compacted, deleted int64) {
	return e.compactSummaries(StageHourlyToDaily, types.TierHourly, types.TierDaily,
		store.MetaLastCompactionDaily,
		func(p types.RetentionPolicy, now time.Time) time.Time { return p.HourlyCutoff(now) })
}

// CompactDailyToWeekly rolls daily summaries older than the daily retention
// cutoff into weekly summaries.
func (e *Engine) CompactDailyToWeekly() (compacted, deleted int64) {
	return e.compactSummaries(StageDailyToWeekly, types.TierDaily, types.TierWeekly,
		store.MetaLastCompactionWeekly,
		func(p types.RetentionPolicy, now time.Time) time.Time { return p.DailyCutoff(now) })
}

// compactSummaries is the shared summary→summary stage. Structurally the
// same as raw→hourly with the next coarser bucket key substituted.
func (e *Engine) compactSummaries(stage string, source, target types.Tier, metaKey string,
	cutoffFn func(types.RetentionPolicy, time.Time) time.Time) (compacted, deleted int64) {

	e.retention.Record()
	now := e.now().UTC()
	cutoff := cutoffFn(e.retention.Effective(), now)

	rows, err := e.store.GetSummariesOlderThan(source, cutoff)
	if err != nil {
		return e.fail(stage, err)
	}
	if len(rows) == 0 {
		e.finish(stage, metaKey, 0, 0)
		return 0, 0
	}

	groups := groupSummaries(rows, target)

	allWritten := true
	for _, g := range groups {
		sum := mergeSummaryGroup(g, target)
		if err := e.store.UpsertSummary(target, sum); err != nil {
			log.Error("upsert summary", "tier", target, "bucket", sum.BucketKey, "entity", sum.EntityID, "error", err)
			allWritten = false
			continue
		}
		compacted++
	}

	if allWritten {
		deleted, err = e.store.DeleteSummariesOlderThan(source, cutoff)
		if err != nil {
			log.Error("delete compacted summaries", "tier", source, "error", err)
			deleted = 0
		}
	} else {
		log.Warn("skipping source deletion, not all summaries were written", "stage", stage, "cutoff", cutoff)
	}

	e.finish(stage, metaKey, compacted, deleted)
	return compacted, deleted
}

// =============================================================================
// Grouping and aggregation
// =============================================================================

// bucketKey identifies one rollup group.
type bucketKey struct {
	key      string
	entityID string
}

// snapshotGroup collects the raw rows of one (hour, entity) bucket.
// Rows arrive ordered by timestamp, so first/last need no re-sorting.
type snapshotGroup struct {
	bucketKey     string
	bucketStartMs int64
	entityID      string
	displayName   string
	first, last   store.Snapshot
	minPower      int
	maxPower      int
	powers        []int
}

// groupSnapshots buckets raw rows by (hour key, entity). Input must be
// ordered by timestamp ascending.
func groupSnapshots(rows []store.Snapshot) map[bucketKey]*snapshotGroup {
	groups := make(map[bucketKey]*snapshotGroup)

	for _, row := range rows {
		ts := row.Time()
		bk := bucketKey{key: types.TierHourly.BucketKey(ts), entityID: row.EntityID}

		g, ok := groups[bk]
		if !ok {
			g = &snapshotGroup{
				bucketKey:     bk.key,
				bucketStartMs: types.TierHourly.TruncateToBucket(ts).UnixMilli(),
				entityID:      row.EntityID,
				displayName:   row.DisplayName,
				first:         row,
				minPower:      row.PowerLevel,
				maxPower:      row.PowerLevel,
			}
			groups[bk] = g
		}

		g.last = row
		g.displayName = row.DisplayName
		if row.PowerLevel < g.minPower {
			g.minPower = row.PowerLevel
		}
		if row.PowerLevel > g.maxPower {
			g.maxPower = row.PowerLevel
		}
		g.powers = append(g.powers, row.PowerLevel)
	}

	return groups
}

// buildHourlySummary aggregates one group. Power is MIN/MAX over the whole
// window; skills are first/last snapshot of the window.
func (e *Engine) buildHourlySummary(g *snapshotGroup) store.Summary {
	sum := store.Summary{
		BucketKey:     g.bucketKey,
		EntityID:      g.entityID,
		DisplayName:   g.displayName,
		BucketStartMs: g.bucketStartMs,
		StartPower:    g.minPower,
		EndPower:      g.maxPower,
		Skills:        types.AggregateSkills(g.first.Skills, g.last.Skills),
	}

	if e.percentileAccuracy > 0 {
		if p50, p95, ok := powerPercentiles(g.powers, e.percentileAccuracy); ok {
			sum.P50Power = &p50
			sum.P95Power = &p95
		}
	}

	return sum
}

// powerPercentiles sketches the power levels of one bucket.
func powerPercentiles(powers []int, accuracy float64) (p50, p95 float64, ok bool) {
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return 0, 0, false
	}
	for _, p := range powers {
		if err := sketch.Add(float64(p)); err != nil {
			return 0, 0, false
		}
	}

	p50, err = sketch.GetValueAtQuantile(0.50)
	if err != nil {
		return 0, 0, false
	}
	p95, err = sketch.GetValueAtQuantile(0.95)
	if err != nil {
		return 0, 0, false
	}
	return p50, p95, true
}

// summaryGroup collects the finer summaries of one coarser bucket.
type summaryGroup struct {
	bucketKey     string
	bucketStartMs int64
	entityID      string
	displayName   string
	first, last   store.Summary
	minStartPower int
	maxEndPower   int
}

// groupSummaries buckets summary rows by the target tier's key. Input must
// be ordered by bucket start ascending.
func groupSummaries(rows []store.Summary, target types.Tier) map[bucketKey]*summaryGroup {
	groups := make(map[bucketKey]*summaryGroup)

	for _, row := range rows {
		start := row.BucketStart()
		bk := bucketKey{key: target.BucketKey(start), entityID: row.EntityID}

		g, ok := groups[bk]
		if !ok {
			g = &summaryGroup{
				bucketKey:     bk.key,
				bucketStartMs: target.TruncateToBucket(start).UnixMilli(),
				entityID:      row.EntityID,
				displayName:   row.DisplayName,
				first:         row,
				minStartPower: row.StartPower,
				maxEndPower:   row.EndPower,
			}
			groups[bk] = g
		}

		g.last = row
		g.displayName = row.DisplayName
		if row.StartPower < g.minStartPower {
			g.minStartPower = row.StartPower
		}
		if row.EndPower > g.maxEndPower {
			g.maxEndPower = row.EndPower
		}
	}

	return groups
}

// mergeSummaryGroup aggregates one summary group into the coarser tier.
func mergeSummaryGroup(g *summaryGroup, target types.Tier) store.Summary {
	return store.Summary{
		BucketKey:     g.bucketKey,
		EntityID:      g.entityID,
		DisplayName:   g.displayName,
		BucketStartMs: g.bucketStartMs,
		StartPower:    g.minStartPower,
		EndPower:      g.maxEndPower,
		Skills:        types.MergeAggregates(g.first.Skills, g.last.Skills),
	}
}

// =============================================================================
// Bookkeeping
// =============================================================================

func (e *Engine) fail(stage string, err error) (int64, int64) {
	e.stats.StageRuns.Add(1)
	e.stats.StageFailures.Add(1)
	metrics.CompactionRuns.WithLabelValues(stage, "error").Inc()
	log.Error("compaction stage failed", "stage", stage, "error", err)
	return 0, 0
}

func (e *Engine) finish(stage, metaKey string, compacted, deleted int64) {
	e.stats.StageRuns.Add(1)
	e.stats.RowsCompacted.Add(compacted)
	e.stats.RowsDeleted.Add(deleted)

	metrics.CompactionRuns.WithLabelValues(stage, "ok").Inc()
	metrics.CompactionRowsCompacted.WithLabelValues(stage).Add(float64(compacted))
	metrics.CompactionRowsDeleted.WithLabelValues(stage).Add(float64(deleted))

	if err := e.store.SetMetadata(metaKey, e.now().UTC().Format(time.RFC3339)); err != nil {
		log.Warn("record compaction run time", "stage", stage, "error", err)
	}

	log.Info("compaction stage finished", "stage", stage, "compacted", compacted, "deleted", deleted)
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		StageRuns:     e.stats.StageRuns.Load(),
		StageFailures: e.stats.StageFailures.Load(),
		RowsCompacted: e.stats.RowsCompacted.Load(),
		RowsDeleted:   e.stats.RowsDeleted.Load(),
	}
}

// EngineStats holds engine statistics.
type EngineStats struct {
	StageRuns     int64
	StageFailures int64
	RowsCompacted int64
	RowsDeleted   int64
}
