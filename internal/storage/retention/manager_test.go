package retention

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/store"
)

func setupManager(t *testing.T, policy types.RetentionPolicy) (*Manager, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "skillvault.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return New(st, policy), st
}

func TestManager_InvalidPolicyFallsBack(t *testing.T) {
	m, _ := setupManager(t, types.RetentionPolicy{RawDays: -1})

	if !m.Configured().Equal(types.DefaultRetentionPolicy()) {
		t.Errorf("configured = %+v, want defaults", m.Configured())
	}
}

func TestManager_EffectiveDefaultsWithoutHistory(t *testing.T) {
	custom := types.RetentionPolicy{RawDays: 14, HourlyDays: 120, DailyDays: 400, WeeklyYears: 10}
	m, _ := setupManager(t, custom)

	// Nothing recorded yet: consumers plan against the defaults, not the
	// configured-but-unrecorded policy.
	if !m.Effective().Equal(types.DefaultRetentionPolicy()) {
		t.Errorf("effective = %+v, want defaults before first Record", m.Effective())
	}

	if !m.Record() {
		t.Fatal("first Record should write a history row")
	}
	if !m.Effective().Equal(custom) {
		t.Errorf("effective = %+v, want %+v after Record", m.Effective(), custom)
	}
}

func TestManager_RecordIsStable(t *testing.T) {
	m, st := setupManager(t, types.DefaultRetentionPolicy())

	if !m.Record() {
		t.Fatal("first Record should write a row")
	}
	for i := 0; i < 3; i++ {
		if m.Record() {
			t.Fatal("unchanged policy must not write another row")
		}
	}

	history, err := st.GetConfigHistory()
	if err != nil {
		t.Fatalf("GetConfigHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history))
	}
}

func TestManager_SetConfigured(t *testing.T) {
	m, _ := setupManager(t, types.DefaultRetentionPolicy())
	m.Record()

	updated := types.RetentionPolicy{RawDays: 14, HourlyDays: 120, DailyDays: 400, WeeklyYears: 10}
	if err := m.SetConfigured(updated); err != nil {
		t.Fatalf("SetConfigured: %v", err)
	}
	if !m.Record() {
		t.Fatal("changed policy should write a row")
	}
	if !m.Effective().Equal(updated) {
		t.Errorf("effective = %+v, want %+v", m.Effective(), updated)
	}

	if err := m.SetConfigured(types.RetentionPolicy{RawDays: 0}); err == nil {
		t.Error("expected error for invalid policy")
	}
}

func TestManager_PruneLevelUps(t *testing.T) {
	m, st := setupManager(t, types.DefaultRetentionPolicy())

	now := time.Now()
	if err := st.InsertLevelUpAt(now.Add(-48*time.Hour), "player-1", "Player One", "MINING", 49, 50); err != nil {
		t.Fatalf("InsertLevelUpAt: %v", err)
	}
	if err := st.InsertLevelUpAt(now, "player-1", "Player One", "MINING", 50, 51); err != nil {
		t.Fatalf("InsertLevelUpAt: %v", err)
	}

	if n := m.PruneLevelUps(now.Add(-24 * time.Hour)); n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}

	count, err := st.CountLevelUps()
	if err != nil {
		t.Fatalf("CountLevelUps: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining event, got %d", count)
	}

	if m.Stats().LevelUpsPruned != 1 {
		t.Errorf("stats pruned = %d, want 1", m.Stats().LevelUpsPruned)
	}
}

func TestManager_PruneWeekly(t *testing.T) {
	m, st := setupManager(t, types.DefaultRetentionPolicy())
	now := time.Now().UTC()

	// One weekly row far past the 5-year horizon, one recent.
	old := now.AddDate(-6, 0, 0)
	recent := now.AddDate(0, 0, -14)
	for _, ts := range []time.Time{old, recent} {
		bucket := types.TierWeekly.TruncateToBucket(ts)
		sum := store.Summary{
			BucketKey:     types.TierWeekly.BucketKey(bucket),
			EntityID:      "player-1",
			BucketStartMs: bucket.UnixMilli(),
			StartPower:    100,
			EndPower:      110,
		}
		if err := st.UpsertSummary(types.TierWeekly, sum); err != nil {
			t.Fatalf("UpsertSummary: %v", err)
		}
	}

	if n := m.PruneWeekly(now); n != 1 {
		t.Errorf("pruned %d weekly rows, want 1", n)
	}
}
