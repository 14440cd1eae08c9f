package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillvault/skillvault/internal/storage/retention"
	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/store"
)

func setupPlanner(t *testing.T) (*Planner, *store.Store, time.Time) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "skillvault.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ret := retention.New(st, types.DefaultRetentionPolicy())

	return New(st, ret, WithClock(func() time.Time { return now })), st, now
}

func TestPlanRanges(t *testing.T) {
	policy := types.DefaultRetentionPolicy() // raw 7d, hourly 90d, daily 365d
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// 180-day window spans raw, hourly, and daily tiers.
	tfStart := now.AddDate(0, 0, -180)
	ranges := planRanges(policy, tfStart, now)

	if len(ranges) != 3 {
		t.Fatalf("expected 3 sub-ranges, got %d", len(ranges))
	}

	if ranges[0].tier != types.TierRaw || ranges[1].tier != types.TierHourly || ranges[2].tier != types.TierDaily {
		t.Errorf("unexpected tier order: %v %v %v", ranges[0].tier, ranges[1].tier, ranges[2].tier)
	}

	// Adjacent sub-ranges share a boundary, so the tiers never overlap
	// and never leave a gap.
	if !ranges[0].start.Equal(ranges[1].end) {
		t.Errorf("raw start %v != hourly end %v", ranges[0].start, ranges[1].end)
	}
	if !ranges[1].start.Equal(ranges[2].end) {
		t.Errorf("hourly start %v != daily end %v", ranges[1].start, ranges[2].end)
	}
	if !ranges[2].start.Equal(tfStart) {
		t.Errorf("daily start %v != timeframe start %v", ranges[2].start, tfStart)
	}
	if !ranges[0].end.Equal(now) {
		t.Errorf("raw end %v != now %v", ranges[0].end, now)
	}
}

func TestPlanRanges_ShortWindow(t *testing.T) {
	policy := types.DefaultRetentionPolicy()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// 3-day window sits entirely inside raw retention.
	ranges := planRanges(policy, now.AddDate(0, 0, -3), now)
	if len(ranges) != 1 {
		t.Fatalf("expected 1 sub-range, got %d", len(ranges))
	}
	if ranges[0].tier != types.TierRaw {
		t.Errorf("expected raw tier, got %v", ranges[0].tier)
	}
}

func TestPlanRanges_AllTime(t *testing.T) {
	policy := types.DefaultRetentionPolicy()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// Zero start means unbounded; all four tiers participate.
	ranges := planRanges(policy, time.Time{}, now)
	if len(ranges) != 4 {
		t.Fatalf("expected 4 sub-ranges, got %d", len(ranges))
	}
	if ranges[3].tier != types.TierWeekly {
		t.Errorf("expected weekly tail, got %v", ranges[3].tier)
	}
}

func TestGetTrend_StitchesTiers(t *testing.T) {
	planner, st, now := setupPlanner(t)

	// One point in each of three tiers: raw at T-2d, hourly at T-20d,
	// daily at T-100d.
	rawTs := now.AddDate(0, 0, -2)
	if err := st.InsertSnapshotAt(rawTs, "player-1", "Player One", 300, types.SkillMap{"MINING": 70}); err != nil {
		t.Fatalf("InsertSnapshotAt: %v", err)
	}

	hourlyBucket := now.AddDate(0, 0, -20).Truncate(time.Hour)
	hourly := store.Summary{
		BucketKey:     types.TierHourly.BucketKey(hourlyBucket),
		EntityID:      "player-1",
		DisplayName:   "Player One",
		BucketStartMs: hourlyBucket.UnixMilli(),
		StartPower:    240,
		EndPower:      250,
		Skills:        types.SkillDeltaMap{"MINING": {Start: 58, End: 60, Gain: 2}},
	}
	if err := st.UpsertSummary(types.TierHourly, hourly); err != nil {
		t.Fatalf("UpsertSummary hourly: %v", err)
	}

	dailyBucket := types.TierDaily.TruncateToBucket(now.AddDate(0, 0, -100))
	daily := store.Summary{
		BucketKey:     types.TierDaily.BucketKey(dailyBucket),
		EntityID:      "player-1",
		DisplayName:   "Player One",
		BucketStartMs: dailyBucket.UnixMilli(),
		StartPower:    190,
		EndPower:      200,
		Skills:        types.SkillDeltaMap{"MINING": {Start: 48, End: 50, Gain: 2}},
	}
	if err := st.UpsertSummary(types.TierDaily, daily); err != nil {
		t.Fatalf("UpsertSummary daily: %v", err)
	}

	result := planner.GetTrend(context.Background(), "player-1", types.MetricPower, types.TimeframeHalfYear)
	success, ok := result.(Success)
	if !ok {
		t.Fatalf("expected Success, got %T (%+v)", result, result)
	}

	if len(success.Points) != 3 {
		t.Fatalf("expected 3 points across tiers, got %d", len(success.Points))
	}

	// Ascending order: daily, hourly, raw.
	wantLevels := []int{200, 250, 300}
	for i, p := range success.Points {
		if p.Level != wantLevels[i] {
			t.Errorf("point %d level = %d, want %d", i, p.Level, wantLevels[i])
		}
		if i > 0 && success.Points[i].TimestampMs <= success.Points[i-1].TimestampMs {
			t.Errorf("points not strictly ascending at index %d", i)
		}
	}
}

func TestGetTrend_SkillMetric(t *testing.T) {
	planner, st, now := setupPlanner(t)

	if err := st.InsertSnapshotAt(now.AddDate(0, 0, -1), "player-1", "Player One", 300, types.SkillMap{"MINING": 70}); err != nil {
		t.Fatalf("InsertSnapshotAt: %v", err)
	}

	hourlyBucket := now.AddDate(0, 0, -20).Truncate(time.Hour)
	sum := store.Summary{
		BucketKey:     types.TierHourly.BucketKey(hourlyBucket),
		EntityID:      "player-1",
		BucketStartMs: hourlyBucket.UnixMilli(),
		StartPower:    240,
		EndPower:      250,
		Skills:        types.SkillDeltaMap{"MINING": {Start: 58, End: 60, Gain: 2}},
	}
	if err := st.UpsertSummary(types.TierHourly, sum); err != nil {
		t.Fatalf("UpsertSummary: %v", err)
	}

	result := planner.GetTrend(context.Background(), "player-1", "MINING", types.TimeframeMonth)
	success, ok := result.(Success)
	if !ok {
		t.Fatalf("expected Success, got %T", result)
	}
	if len(success.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(success.Points))
	}
	// Summary rows contribute the end-of-bucket skill level, raw rows the
	// literal level.
	if success.Points[0].Level != 60 || success.Points[1].Level != 70 {
		t.Errorf("levels = %d,%d, want 60,70", success.Points[0].Level, success.Points[1].Level)
	}
}

func TestGetTrend_SkillMissingFromSomeRows(t *testing.T) {
	planner, st, now := setupPlanner(t)

	if err := st.InsertSnapshotAt(now.Add(-2*time.Hour), "player-1", "Player One", 100, types.SkillMap{"MINING": 50}); err != nil {
		t.Fatalf("InsertSnapshotAt: %v", err)
	}
	if err := st.InsertSnapshotAt(now.Add(-time.Hour), "player-1", "Player One", 110, types.SkillMap{"MINING": 51, "FISHING": 1}); err != nil {
		t.Fatalf("InsertSnapshotAt: %v", err)
	}

	result := planner.GetTrend(context.Background(), "player-1", "FISHING", types.TimeframeWeek)
	success, ok := result.(Success)
	if !ok {
		t.Fatalf("expected Success, got %T", result)
	}
	if len(success.Points) != 1 {
		t.Fatalf("rows without the skill should yield no point, got %d points", len(success.Points))
	}
}

func TestGetTrend_PlansWithReconfiguredPolicy(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "skillvault.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ret := retention.New(st, types.DefaultRetentionPolicy())
	planner := New(st, ret, WithClock(func() time.Time { return now }))

	// One hourly row 10 days back. Under the default policy (raw 7d) it sits
	// inside the hourly sub-range.
	bucket := now.AddDate(0, 0, -10).Truncate(time.Hour)
	sum := store.Summary{
		BucketKey:     types.TierHourly.BucketKey(bucket),
		EntityID:      "player-1",
		DisplayName:   "Player One",
		BucketStartMs: bucket.UnixMilli(),
		StartPower:    100,
		EndPower:      110,
	}
	if err := st.UpsertSummary(types.TierHourly, sum); err != nil {
		t.Fatalf("UpsertSummary: %v", err)
	}

	result := planner.GetTrend(context.Background(), "player-1", types.MetricPower, types.TimeframeMonth)
	if _, ok := result.(Success); !ok {
		t.Fatalf("expected Success under default policy, got %T", result)
	}

	// Widen raw retention to 14 days. The very next query must plan with the
	// new boundaries: the bucket now falls in the raw sub-range, which holds
	// no rows.
	policy := types.RetentionPolicy{RawDays: 14, HourlyDays: 90, DailyDays: 365, WeeklyYears: 5}
	if err := ret.SetConfigured(policy); err != nil {
		t.Fatalf("SetConfigured: %v", err)
	}

	result = planner.GetTrend(context.Background(), "player-1", types.MetricPower, types.TimeframeMonth)
	if _, ok := result.(NoData); !ok {
		t.Fatalf("expected NoData after widening raw retention, got %T (%+v)", result, result)
	}

	if ret.Effective() != policy {
		t.Errorf("effective policy = %+v, want the reconfigured one", ret.Effective())
	}
}

func TestGetTrend_UnknownEntityIsNoData(t *testing.T) {
	planner, _, _ := setupPlanner(t)

	result := planner.GetTrend(context.Background(), "nobody", types.MetricPower, types.TimeframeYear)
	if _, ok := result.(NoData); !ok {
		t.Fatalf("expected NoData for unknown entity, got %T", result)
	}
}

func TestGetTrend_EmptyInputsAreErrors(t *testing.T) {
	planner, _, _ := setupPlanner(t)

	if _, ok := planner.GetTrend(context.Background(), "", types.MetricPower, types.TimeframeWeek).(Error); !ok {
		t.Error("expected Error for empty entity id")
	}
	if _, ok := planner.GetTrend(context.Background(), "player-1", "", types.TimeframeWeek).(Error); !ok {
		t.Error("expected Error for empty metric")
	}
}

func TestStitch_DedupesExactTimestamps(t *testing.T) {
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	// Finer tier comes first in the input, so its point wins the tie.
	results := [][]types.TrendPoint{
		{{TimestampMs: ts, Level: 100}},
		{{TimestampMs: ts, Level: 90}, {TimestampMs: ts + 1000, Level: 95}},
	}

	points := stitch(results)
	if len(points) != 2 {
		t.Fatalf("expected 2 points after dedupe, got %d", len(points))
	}
	if points[0].Level != 100 {
		t.Errorf("duplicate timestamp kept level %d, want the finer tier's 100", points[0].Level)
	}
}

func TestGetLevelUps(t *testing.T) {
	planner, st, now := setupPlanner(t)

	if err := st.InsertLevelUpAt(now.AddDate(0, 0, -1), "player-1", "Player One", "MINING", 49, 50); err != nil {
		t.Fatalf("InsertLevelUpAt: %v", err)
	}
	if err := st.InsertLevelUpAt(now.AddDate(0, 0, -30), "player-1", "Player One", "MINING", 48, 49); err != nil {
		t.Fatalf("InsertLevelUpAt: %v", err)
	}

	events, err := planner.GetLevelUps("player-1", types.TimeframeWeek, 0)
	if err != nil {
		t.Fatalf("GetLevelUps: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event inside the week, got %d", len(events))
	}
	if events[0].NewLevel != 50 {
		t.Errorf("new level = %d, want 50", events[0].NewLevel)
	}
}
