// Package metrics exposes Prometheus collectors for the ingestion,
// compaction, and query paths. Collectors work unregistered; call Init once
// at startup to register them with the default registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SnapshotsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skillvault_snapshots_inserted_total",
		Help: "Raw snapshots accepted from the producer.",
	})

	LevelUpsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skillvault_levelups_inserted_total",
		Help: "Level-up events accepted from the producer.",
	})

	CompactionRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillvault_compaction_runs_total",
		Help: "Compaction stage executions.",
	}, []string{"stage", "result"})

	CompactionRowsCompacted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillvault_compaction_rows_compacted_total",
		Help: "Summary rows written by compaction, per stage.",
	}, []string{"stage"})

	CompactionRowsDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillvault_compaction_rows_deleted_total",
		Help: "Source rows deleted by compaction, per stage.",
	}, []string{"stage"})

	TrendQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillvault_trend_queries_total",
		Help: "Trend queries by outcome (success, no_data, error).",
	}, []string{"outcome"})

	TrendQueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skillvault_trend_query_duration_seconds",
		Help:    "End-to-end trend query latency.",
		Buckets: prometheus.DefBuckets,
	})
)

var registerOnce sync.Once

// Init registers all collectors with the default Prometheus registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SnapshotsInserted,
			LevelUpsInserted,
			CompactionRuns,
			CompactionRowsCompacted,
			CompactionRowsDeleted,
			TrendQueries,
			TrendQueryDuration,
		)
	})
}
