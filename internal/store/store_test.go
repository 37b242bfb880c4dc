package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T, limit int) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "data", "usage.db"), limit)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStore(t *testing.T) {
	store := newTestStore(t, DefaultGenerationLimit)

	if store.db == nil {
		t.Error("Store database should not be nil")
	}
	if _, err := os.Stat(store.Path()); os.IsNotExist(err) {
		t.Error("Database file should be created")
	}
	if store.Limit() != DefaultGenerationLimit {
		t.Errorf("Expected limit %d, got %d", DefaultGenerationLimit, store.Limit())
	}
}

func TestNewStore_InvalidDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "file.txt")
	_ = os.WriteFile(invalidPath, []byte("test"), 0644)

	_, err := NewStore(filepath.Join(invalidPath, "usage.db"), 10)
	if err == nil {
		t.Error("Expected error when creating store below a regular file")
	}
}

func TestNewStore_NegativeLimit(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "usage.db"), -1)
	if err == nil {
		t.Error("Expected error for negative limit")
	}
}

func TestStats_UnknownSession(t *testing.T) {
	store := newTestStore(t, 50)

	stats, err := store.Stats(uuid.NewString())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalGenerations != 0 {
		t.Errorf("Expected 0 generations, got %d", stats.TotalGenerations)
	}
	if stats.Remaining != 50 {
		t.Errorf("Expected 50 remaining, got %d", stats.Remaining)
	}
	if stats.PercentageUsed != 0 {
		t.Errorf("Expected 0%% used, got %f", stats.PercentageUsed)
	}
	if stats.FirstAccess.IsZero() {
		t.Error("Expected first access to default to now")
	}
}

func TestRecordGeneration(t *testing.T) {
	store := newTestStore(t, 4)
	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return first }

	session := uuid.NewString()
	if err := store.RecordGeneration(session, 400); err != nil {
		t.Fatalf("RecordGeneration failed: %v", err)
	}
	store.now = func() time.Time { return first.Add(26 * time.Hour) }
	if err := store.RecordGeneration(session, 600); err != nil {
		t.Fatalf("RecordGeneration failed: %v", err)
	}

	stats, err := store.Stats(session)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalGenerations != 2 {
		t.Errorf("Expected 2 generations, got %d", stats.TotalGenerations)
	}
	if stats.EstimatedTokens != 1000 {
		t.Errorf("Expected 1000 tokens, got %d", stats.EstimatedTokens)
	}
	if stats.Remaining != 2 {
		t.Errorf("Expected 2 remaining, got %d", stats.Remaining)
	}
	if stats.PercentageUsed != 50 {
		t.Errorf("Expected 50%% used, got %f", stats.PercentageUsed)
	}
	if !stats.FirstAccess.Equal(first) {
		t.Errorf("Expected first access %v, got %v", first, stats.FirstAccess)
	}
	if !stats.LastAccess.Equal(first.Add(26 * time.Hour)) {
		t.Errorf("Expected last access to advance, got %v", stats.LastAccess)
	}

	all, err := store.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(all))
	}
	if all[0].GenerationsByDate["2025-03-01"] != 1 || all[0].GenerationsByDate["2025-03-02"] != 1 {
		t.Errorf("Unexpected daily counts: %v", all[0].GenerationsByDate)
	}
}

func TestLimitReached(t *testing.T) {
	store := newTestStore(t, 2)
	session := "session-a"

	for i := 0; i < 2; i++ {
		reached, err := store.LimitReached(session)
		if err != nil {
			t.Fatalf("LimitReached failed: %v", err)
		}
		if reached {
			t.Fatalf("Limit reached too early at %d", i)
		}
		if err := store.RecordGeneration(session, 10); err != nil {
			t.Fatalf("RecordGeneration failed: %v", err)
		}
	}

	reached, err := store.LimitReached(session)
	if err != nil {
		t.Fatalf("LimitReached failed: %v", err)
	}
	if !reached {
		t.Error("Expected limit to be reached after 2 generations")
	}

	other, _ := store.LimitReached("session-b")
	if other {
		t.Error("Limits are per session")
	}
}

func TestLimitZeroIsUnlimited(t *testing.T) {
	store := newTestStore(t, 0)
	_ = store.RecordGeneration("s", 1)

	reached, err := store.LimitReached("s")
	if err != nil || reached {
		t.Errorf("Expected no limit, got reached=%v err=%v", reached, err)
	}
	stats, _ := store.Stats("s")
	if stats.PercentageUsed != 0 || stats.Remaining != 0 {
		t.Errorf("Expected no percentage for unlimited store, got %+v", stats)
	}
}

func TestReset(t *testing.T) {
	store := newTestStore(t, 5)
	_ = store.RecordGeneration("s", 100)
	_ = store.RecordGeneration("s", 100)

	if err := store.Reset("s"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	stats, _ := store.Stats("s")
	if stats.TotalGenerations != 0 || stats.EstimatedTokens != 0 {
		t.Errorf("Expected zeroed counters, got %+v", stats)
	}

	all, _ := store.All()
	if len(all) != 1 || len(all[0].GenerationsByDate) != 0 {
		t.Errorf("Expected session kept with no daily counts, got %+v", all)
	}

	if err := store.Reset("unknown"); err != nil {
		t.Errorf("Reset of unknown session should be a no-op, got %v", err)
	}
}
