// Package query answers trend queries by stitching together the storage
// tiers. Raw snapshots cover the near past, hourly/daily/weekly summaries
// cover progressively older history; the planner splits the requested window
// into disjoint per-tier sub-ranges along the current retention boundaries
// and merges the results into one ascending series.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skillvault/skillvault/internal/logging"
	"github.com/skillvault/skillvault/internal/metrics"
	"github.com/skillvault/skillvault/internal/storage/retention"
	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/store"
)

var log = logging.Component("query")

// Planner plans and executes trend queries.
type Planner struct {
	store     *store.Store
	retention *retention.Manager

	// now is replaceable for tests.
	now func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock replaces the planner clock. Tests only.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// New creates a Planner against one store.
func New(st *store.Store, ret *retention.Manager, opts ...Option) *Planner {
	p := &Planner{
		store:     st,
		retention: ret,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// subRange is one per-tier slice of the requested window, half-open
// [start, end).
type subRange struct {
	tier       types.Tier
	start, end time.Time
}

// planRanges splits [tfStart, now) along the retention boundaries of the
// current policy. Sub-ranges never overlap; empty ones are dropped.
func planRanges(policy types.RetentionPolicy, tfStart, now time.Time) []subRange {
	rawBoundary := policy.RawCutoff(now)
	hourlyBoundary := policy.HourlyCutoff(now)
	dailyBoundary := policy.DailyCutoff(now)

	candidates := []subRange{
		{types.TierRaw, laterOf(tfStart, rawBoundary), now},
		{types.TierHourly, laterOf(tfStart, hourlyBoundary), rawBoundary},
		{types.TierDaily, laterOf(tfStart, dailyBoundary), hourlyBoundary},
		{types.TierWeekly, tfStart, dailyBoundary},
	}

	ranges := make([]subRange, 0, len(candidates))
	for _, r := range candidates {
		if r.start.Before(r.end) {
			ranges = append(ranges, r)
		}
	}
	return ranges
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// GetTrend returns the trend of one metric for one entity over a timeframe.
// metric is either types.MetricPower or a skill name. Tiers are queried
// concurrently; a tier that fails is logged and contributes no points rather
// than failing the whole query.
func (p *Planner) GetTrend(ctx context.Context, entityID, metric string, tf types.Timeframe) TrendResult {
	started := time.Now()
	defer func() { metrics.TrendQueryDuration.Observe(time.Since(started).Seconds()) }()

	if strings.TrimSpace(entityID) == "" {
		metrics.TrendQueries.WithLabelValues("error").Inc()
		return Error{Message: "entity id must not be empty"}
	}
	if strings.TrimSpace(metric) == "" {
		metrics.TrendQueries.WithLabelValues("error").Inc()
		return Error{Message: "metric must not be empty"}
	}

	// Query cycles reconcile the configured policy with the history the same
	// way compaction cycles do; planning never runs against a stale row.
	p.retention.Record()

	now := p.now().UTC()
	ranges := planRanges(p.retention.Effective(), tf.Start(now), now)
	if len(ranges) == 0 {
		metrics.TrendQueries.WithLabelValues("no_data").Inc()
		return NoData{Reason: "empty query window"}
	}

	// One result slot per sub-range keeps tier order stable regardless of
	// goroutine completion order.
	results := make([][]types.TrendPoint, len(ranges))

	g, ctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		i, r := i, r
		g.Go(func() error {
			points, err := p.queryTier(ctx, r, entityID, metric)
			if err != nil {
				log.Warn("tier query failed, omitting its points",
					"tier", r.tier, "entity", entityID, "error", err)
				return nil
			}
			results[i] = points
			return nil
		})
	}
	// Goroutines swallow their own errors, Wait only synchronizes.
	_ = g.Wait()

	points := stitch(results)
	if len(points) == 0 {
		metrics.TrendQueries.WithLabelValues("no_data").Inc()
		return NoData{Reason: "no data points in timeframe"}
	}

	metrics.TrendQueries.WithLabelValues("success").Inc()
	return Success{Points: points}
}

// queryTier fetches and projects the points of one sub-range.
func (p *Planner) queryTier(ctx context.Context, r subRange, entityID, metric string) ([]types.TrendPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.tier == types.TierRaw {
		snaps, err := p.store.GetSnapshotsInRange(entityID, r.start, r.end)
		if err != nil {
			return nil, err
		}
		return projectSnapshots(snaps, metric), nil
	}

	sums, err := p.store.GetSummariesInRange(r.tier, entityID, r.start, r.end)
	if err != nil {
		return nil, err
	}
	return projectSummaries(sums, metric), nil
}

// projectSnapshots maps raw rows to trend points. A snapshot that does not
// track the requested skill yields no point.
func projectSnapshots(snaps []store.Snapshot, metric string) []types.TrendPoint {
	points := make([]types.TrendPoint, 0, len(snaps))
	for _, s := range snaps {
		level := s.PowerLevel
		if metric != types.MetricPower {
			var ok bool
			level, ok = s.Skills[metric]
			if !ok {
				continue
			}
		}
		points = append(points, types.TrendPoint{TimestampMs: s.TimestampMs, Level: level})
	}
	return points
}

// projectSummaries maps summary rows to trend points. Summaries report the
// level at the end of their bucket, stamped at the bucket start.
func projectSummaries(sums []store.Summary, metric string) []types.TrendPoint {
	points := make([]types.TrendPoint, 0, len(sums))
	for _, s := range sums {
		level := s.EndPower
		if metric != types.MetricPower {
			delta, ok := s.Skills[metric]
			if !ok {
				continue
			}
			level = delta.End
		}
		points = append(points, types.TrendPoint{TimestampMs: s.BucketStartMs, Level: level})
	}
	return points
}

// stitch concatenates per-range results (finest tier first), sorts by
// timestamp, and drops exact-timestamp duplicates keeping the finer point.
func stitch(results [][]types.TrendPoint) []types.TrendPoint {
	var all []types.TrendPoint
	for _, r := range results {
		all = append(all, r...)
	}
	if len(all) == 0 {
		return nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].TimestampMs < all[j].TimestampMs
	})

	out := all[:1]
	for _, p := range all[1:] {
		if p.TimestampMs == out[len(out)-1].TimestampMs {
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetLevelUps returns the level-up events of one entity in a timeframe,
// newest first. limit <= 0 means no limit.
func (p *Planner) GetLevelUps(entityID string, tf types.Timeframe, limit int) ([]store.LevelUpEvent, error) {
	now := p.now().UTC()
	return p.store.GetLevelUps(entityID, tf.Start(now), now, limit)
}
