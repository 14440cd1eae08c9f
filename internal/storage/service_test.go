package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillvault/skillvault/internal/storage/query"
	"github.com/skillvault/skillvault/internal/storage/types"
)

func setupService(t *testing.T) *Service {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "skillvault.db")

	svc, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestService_RecordAndQuery(t *testing.T) {
	svc := setupService(t)

	if !svc.RecordSnapshot("player-1", "Player One", 300, types.SkillMap{"MINING": 70}) {
		t.Fatal("RecordSnapshot returned false")
	}
	if !svc.RecordLevelUp("player-1", "Player One", "MINING", 69, 70) {
		t.Fatal("RecordLevelUp returned false")
	}

	result := svc.GetTrend(context.Background(), "player-1", types.MetricPower, types.TimeframeWeek)
	success, ok := result.(query.Success)
	if !ok {
		t.Fatalf("expected Success, got %T", result)
	}
	if len(success.Points) != 1 || success.Points[0].Level != 300 {
		t.Errorf("unexpected points %+v", success.Points)
	}

	events, err := svc.GetLevelUps("player-1", types.TimeframeWeek, 0)
	if err != nil {
		t.Fatalf("GetLevelUps: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 level-up, got %d", len(events))
	}

	stats := svc.Stats()
	if stats.SnapshotsRecorded != 1 || stats.LevelUpsRecorded != 1 {
		t.Errorf("stats = %+v, want 1 snapshot and 1 level-up recorded", stats)
	}
}

func TestService_RecordSnapshot_InvalidEntity(t *testing.T) {
	svc := setupService(t)

	if svc.RecordSnapshot("", "Nameless", 100, nil) {
		t.Error("expected false for empty entity id")
	}
	if svc.Stats().RecordFailures != 1 {
		t.Error("expected one recorded failure")
	}
}

func TestService_RetentionPolicy(t *testing.T) {
	svc := setupService(t)

	// Effective policy starts at the defaults.
	if got := svc.RetentionPolicy(); !got.Equal(types.DefaultRetentionPolicy()) {
		t.Errorf("effective policy = %+v, want defaults", got)
	}

	updated := types.RetentionPolicy{RawDays: 14, HourlyDays: 120, DailyDays: 400, WeeklyYears: 10}
	if err := svc.SetRetentionPolicy(updated); err != nil {
		t.Fatalf("SetRetentionPolicy: %v", err)
	}

	if got := svc.RetentionPolicy(); !got.Equal(updated) {
		t.Errorf("effective policy = %+v, want %+v", got, updated)
	}

	history, err := svc.ConfigHistory()
	if err != nil {
		t.Fatalf("ConfigHistory: %v", err)
	}
	if len(history) == 0 {
		t.Fatal("expected at least one history row after policy change")
	}
	if !history[0].Policy.Equal(updated) {
		t.Errorf("newest history row = %+v, want %+v", history[0].Policy, updated)
	}
}

func TestService_SetRetentionPolicy_Invalid(t *testing.T) {
	svc := setupService(t)

	bad := types.RetentionPolicy{RawDays: 0, HourlyDays: 90, DailyDays: 365, WeeklyYears: 5}
	if err := svc.SetRetentionPolicy(bad); err == nil {
		t.Error("expected error for invalid policy")
	}
}

func TestService_CompactAll(t *testing.T) {
	svc := setupService(t)

	// Fresh data only; every stage is a clean no-op.
	svc.RecordSnapshot("player-1", "Player One", 100, nil)

	compacted, deleted := svc.CompactAll()
	if compacted != 0 || deleted != 0 {
		t.Errorf("expected no-op compaction, got compacted=%d deleted=%d", compacted, deleted)
	}
	if svc.Stats().Compaction.StageRuns != 3 {
		t.Errorf("expected 3 stage runs, got %d", svc.Stats().Compaction.StageRuns)
	}
}

func TestService_Health(t *testing.T) {
	svc := setupService(t)

	if err := svc.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	svc.Close()
	if err := svc.Health(context.Background()); err == nil {
		t.Error("expected health failure after close")
	}
}

func TestService_PruneLevelUps(t *testing.T) {
	svc := setupService(t)

	svc.RecordLevelUp("player-1", "Player One", "MINING", 49, 50)

	// Cutoff in the past keeps the fresh event.
	if n := svc.PruneLevelUps(time.Now().Add(-time.Hour)); n != 0 {
		t.Errorf("expected 0 pruned, got %d", n)
	}
	// Cutoff in the future removes it.
	if n := svc.PruneLevelUps(time.Now().Add(time.Hour)); n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
}
