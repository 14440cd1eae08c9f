// Package export writes store contents to Parquet files for offline
// analysis. Exports are read-only over the store; they never delete or move
// rows.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/store"
)

// Options configures the Parquet output.
type Options struct {
	// Compression algorithm
	Compression CompressionType
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionGzip
)

// DefaultOptions returns default export options.
func DefaultOptions() Options {
	return Options{Compression: CompressionZstd}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "gzip":
		return CompressionGzip
	case "none":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// SnapshotRow represents a raw snapshot in Parquet format. Skills travel as
// the versioned JSON payload so the export round-trips without loss.
type SnapshotRow struct {
	TimestampMs int64  `parquet:"timestamp_ms"`
	EntityID    string `parquet:"entity_id,zstd"`
	DisplayName string `parquet:"display_name,zstd"`
	PowerLevel  int32  `parquet:"power_level"`
	SkillsJSON  string `parquet:"skills_json,zstd"`
}

// SummaryRow represents a tier summary in Parquet format.
type SummaryRow struct {
	Tier          string  `parquet:"tier,zstd"`
	BucketKey     string  `parquet:"bucket_key,zstd"`
	EntityID      string  `parquet:"entity_id,zstd"`
	DisplayName   string  `parquet:"display_name,zstd"`
	BucketStartMs int64   `parquet:"bucket_start_ms"`
	StartPower    int32   `parquet:"start_power"`
	EndPower      int32   `parquet:"end_power"`
	P50Power      float64 `parquet:"p50_power,optional"`
	P95Power      float64 `parquet:"p95_power,optional"`
	SkillsJSON    string  `parquet:"skills_json,zstd"`
}

func snapshotToRow(s *store.Snapshot) (SnapshotRow, error) {
	payload, err := types.EncodeSkillMap(s.Skills)
	if err != nil {
		return SnapshotRow{}, err
	}
	return SnapshotRow{
		TimestampMs: s.TimestampMs,
		EntityID:    s.EntityID,
		DisplayName: s.DisplayName,
		PowerLevel:  int32(s.PowerLevel),
		SkillsJSON:  string(payload),
	}, nil
}

func summaryToRow(tier types.Tier, s *store.Summary) (SummaryRow, error) {
	payload, err := types.EncodeSkillDeltas(s.Skills)
	if err != nil {
		return SummaryRow{}, err
	}
	row := SummaryRow{
		Tier:          tier.String(),
		BucketKey:     s.BucketKey,
		EntityID:      s.EntityID,
		DisplayName:   s.DisplayName,
		BucketStartMs: s.BucketStartMs,
		StartPower:    int32(s.StartPower),
		EndPower:      int32(s.EndPower),
		SkillsJSON:    string(payload),
	}
	if s.P50Power != nil {
		row.P50Power = *s.P50Power
	}
	if s.P95Power != nil {
		row.P95Power = *s.P95Power
	}
	return row, nil
}

// Exporter exports store contents to Parquet files.
type Exporter struct {
	store *store.Store
	opts  Options
}

// New creates an Exporter over one store.
func New(st *store.Store, opts Options) *Exporter {
	return &Exporter{store: st, opts: opts}
}

// ExportSnapshots writes the raw snapshots of one entity within [start, end)
// to path. Returns the number of rows written.
func (e *Exporter) ExportSnapshots(path, entityID string, start, end int64) (int64, error) {
	snaps, err := e.store.GetSnapshotsInRange(entityID, msToTime(start), msToTime(end))
	if err != nil {
		return 0, fmt.Errorf("load snapshots: %w", err)
	}

	rows := make([]SnapshotRow, 0, len(snaps))
	for i := range snaps {
		row, err := snapshotToRow(&snaps[i])
		if err != nil {
			return 0, fmt.Errorf("encode snapshot: %w", err)
		}
		rows = append(rows, row)
	}

	return writeRows(path, rows, e.opts)
}

// ExportTier writes every summary of one tier to path. Returns the number of
// rows written.
func (e *Exporter) ExportTier(path string, tier types.Tier) (int64, error) {
	sums, err := e.store.GetAllSummaries(tier)
	if err != nil {
		return 0, fmt.Errorf("load %s summaries: %w", tier, err)
	}

	rows := make([]SummaryRow, 0, len(sums))
	for i := range sums {
		row, err := summaryToRow(tier, &sums[i])
		if err != nil {
			return 0, fmt.Errorf("encode summary: %w", err)
		}
		rows = append(rows, row)
	}

	return writeRows(path, rows, e.opts)
}

// ExportAllTiers writes one file per summary tier into dir, named
// <tier>.parquet. Returns total rows written.
func (e *Exporter) ExportAllTiers(dir string) (int64, error) {
	var total int64
	for _, tier := range []types.Tier{types.TierHourly, types.TierDaily, types.TierWeekly} {
		n, err := e.ExportTier(filepath.Join(dir, tier.String()+".parquet"), tier)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// writeRows writes one slice of rows as a complete Parquet file.
func writeRows[T any](path string, rows []T, opts Options) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[T](f, parquet.Compression(getCompression(opts.Compression)))

	n, err := writer.Write(rows)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("write rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		f.Close()
		return 0, fmt.Errorf("close writer: %w", err)
	}
	return int64(n), f.Close()
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
