package types

import (
	"fmt"
	"time"
)

// Tier represents a storage tier with specific resolution and retention.
type Tier int

const (
	// TierRaw stores raw snapshots at the producer's cadence.
	TierRaw Tier = iota

	// TierHourly stores hourly summaries, one row per (hour, entity).
	TierHourly

	// TierDaily stores daily summaries, one row per (calendar date, entity).
	TierDaily

	// TierWeekly stores weekly summaries, one row per (ISO week, entity).
	TierWeekly
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierRaw:
		return "raw"
	case TierHourly:
		return "hourly"
	case TierDaily:
		return "daily"
	case TierWeekly:
		return "weekly"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// Next returns the next coarser tier for compaction.
// Returns the same tier if it's the highest tier.
func (t Tier) Next() Tier {
	switch t {
	case TierRaw:
		return TierHourly
	case TierHourly:
		return TierDaily
	case TierDaily:
		return TierWeekly
	case TierWeekly:
		return TierWeekly
	default:
		return t
	}
}

// IsHighest returns true if this is the coarsest tier.
func (t Tier) IsHighest() bool {
	return t == TierWeekly
}

// TruncateToBucket truncates a timestamp to the start of its calendar bucket.
// Buckets are calendar-aligned, not rolling: the hour, the calendar date, or
// the ISO week (Monday 00:00 UTC).
func (t Tier) TruncateToBucket(ts time.Time) time.Time {
	ts = ts.UTC()
	switch t {
	case TierHourly:
		return ts.Truncate(time.Hour)
	case TierDaily:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	case TierWeekly:
		weekday := int(ts.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		monday := ts.AddDate(0, 0, -(weekday - 1))
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return ts
	}
}

// BucketKey returns the calendar bucket key for a timestamp in this tier:
// "2006-01-02T15" for hourly, "2006-01-02" for daily, "2006-W02" (ISO week)
// for weekly. The raw tier has no bucket key and returns "".
func (t Tier) BucketKey(ts time.Time) string {
	ts = ts.UTC()
	switch t {
	case TierHourly:
		return ts.Format("2006-01-02T15")
	case TierDaily:
		return ts.Format("2006-01-02")
	case TierWeekly:
		year, week := ts.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return ""
	}
}

// ParseTier parses a string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "raw":
		return TierRaw, nil
	case "hourly":
		return TierHourly, nil
	case "daily":
		return TierDaily, nil
	case "weekly":
		return TierWeekly, nil
	default:
		return TierRaw, fmt.Errorf("unknown tier: %s", s)
	}
}

// AllTiers returns all available tiers in order, finest first.
func AllTiers() []Tier {
	return []Tier{TierRaw, TierHourly, TierDaily, TierWeekly}
}

// RetentionPolicy holds the retention thresholds that decide which tier holds
// data of a given age. Raw rows older than RawDays are rolled into hourly
// buckets, hourly rows older than HourlyDays into daily buckets, and daily
// rows older than DailyDays into weekly buckets. Weekly rows are pruned after
// WeeklyYears.
type RetentionPolicy struct {
	RawDays     int
	HourlyDays  int
	DailyDays   int
	WeeklyYears int
}

// DefaultRetentionPolicy returns the built-in policy used when no
// configuration has ever been recorded.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RawDays:     7,
		HourlyDays:  90,
		DailyDays:   365,
		WeeklyYears: 5,
	}
}

// RawCutoff returns the instant before which raw rows belong to the hourly tier.
func (p RetentionPolicy) RawCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.RawDays)
}

// HourlyCutoff returns the instant before which hourly rows belong to the daily tier.
func (p RetentionPolicy) HourlyCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.HourlyDays)
}

// DailyCutoff returns the instant before which daily rows belong to the weekly tier.
func (p RetentionPolicy) DailyCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.DailyDays)
}

// WeeklyCutoff returns the instant before which weekly rows are pruned.
func (p RetentionPolicy) WeeklyCutoff(now time.Time) time.Time {
	return now.AddDate(-p.WeeklyYears, 0, 0)
}

// Equal reports whether two policies carry identical thresholds.
func (p RetentionPolicy) Equal(o RetentionPolicy) bool {
	return p == o
}

// Validate checks that all thresholds are positive and ordered finest to
// coarsest.
func (p RetentionPolicy) Validate() error {
	if p.RawDays <= 0 {
		return fmt.Errorf("raw retention must be positive, got %d", p.RawDays)
	}
	if p.HourlyDays <= p.RawDays {
		return fmt.Errorf("hourly retention (%d) must exceed raw retention (%d)", p.HourlyDays, p.RawDays)
	}
	if p.DailyDays <= p.HourlyDays {
		return fmt.Errorf("daily retention (%d) must exceed hourly retention (%d)", p.DailyDays, p.HourlyDays)
	}
	if p.WeeklyYears <= 0 {
		return fmt.Errorf("weekly retention must be positive, got %d years", p.WeeklyYears)
	}
	return nil
}
