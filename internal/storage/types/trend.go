package types

import (
	"fmt"
	"time"
)

// MetricPower is the synthetic metric name for the aggregate power level.
// Any other metric name is treated as a literal skill name.
const MetricPower = "POWER"

// TrendPoint is one (timestamp, level) pair returned by a trend query,
// regardless of which tier it came from.
type TrendPoint struct {
	TimestampMs int64
	Level       int
}

// Time returns the point's timestamp as a time.Time.
func (p TrendPoint) Time() time.Time {
	return time.UnixMilli(p.TimestampMs).UTC()
}

// Timeframe is a caller-requested historical window. The query planner maps
// it onto tier boundaries dynamically; the tier each window "usually" lands
// in is documentation, never an assumption.
type Timeframe int

const (
	// TimeframeWeek covers the last 7 days (usually all raw).
	TimeframeWeek Timeframe = iota

	// TimeframeMonth covers the last 30 days (raw + hourly).
	TimeframeMonth

	// TimeframeQuarter covers the last 90 days (up to the daily tier).
	TimeframeQuarter

	// TimeframeHalfYear covers the last 180 days.
	TimeframeHalfYear

	// TimeframeYear covers the last 365 days.
	TimeframeYear

	// TimeframeAll covers everything ever stored.
	TimeframeAll
)

// Days returns the window size in days, or 0 for the all-time window.
func (t Timeframe) Days() int {
	switch t {
	case TimeframeWeek:
		return 7
	case TimeframeMonth:
		return 30
	case TimeframeQuarter:
		return 90
	case TimeframeHalfYear:
		return 180
	case TimeframeYear:
		return 365
	default:
		return 0
	}
}

// Start returns the window start for the given clock, or the zero time for
// the all-time window.
func (t Timeframe) Start(now time.Time) time.Time {
	days := t.Days()
	if days == 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}

// String returns the canonical short form ("7d", "30d", ..., "all").
func (t Timeframe) String() string {
	switch t {
	case TimeframeWeek:
		return "7d"
	case TimeframeMonth:
		return "30d"
	case TimeframeQuarter:
		return "90d"
	case TimeframeHalfYear:
		return "180d"
	case TimeframeYear:
		return "1y"
	case TimeframeAll:
		return "all"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseTimeframe parses the canonical short form of a timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch s {
	case "7d":
		return TimeframeWeek, nil
	case "30d":
		return TimeframeMonth, nil
	case "90d":
		return TimeframeQuarter, nil
	case "180d":
		return TimeframeHalfYear, nil
	case "1y", "365d":
		return TimeframeYear, nil
	case "all":
		return TimeframeAll, nil
	default:
		return TimeframeAll, fmt.Errorf("unknown timeframe: %s", s)
	}
}

// AllTimeframes returns every timeframe in ascending window order.
func AllTimeframes() []Timeframe {
	return []Timeframe{
		TimeframeWeek,
		TimeframeMonth,
		TimeframeQuarter,
		TimeframeHalfYear,
		TimeframeYear,
		TimeframeAll,
	}
}
