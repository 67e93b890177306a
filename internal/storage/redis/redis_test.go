package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/config"
	"github.com/goodtune/playwarden/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{
		Host:         mr.Addr(), // full "host:port", Port stays 0
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSnapshotStore_PutAndLatest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	snapshots := store.Snapshots()

	if _, err := snapshots.Latest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Latest on empty store = %v, want ErrNotFound", err)
	}

	fetched := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	snapshot := storage.Snapshot{
		Budget: backend.BudgetStatus{
			DailyAllowanceMinutes: 120,
			UsedTodayMinutes:      45,
			RemainingTodayMinutes: 75,
			TotalAvailableMinutes: 120,
		},
		Sessions: []backend.Session{
			{ID: "s1", GameName: "Minecraft", ProcessName: "minecraft.exe", StartTime: fetched.Add(-time.Hour)},
		},
		ActiveSeconds: 2700,
		FetchedAt:     fetched,
	}

	if err := snapshots.Put(ctx, snapshot); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := snapshots.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}

	if got.Budget != snapshot.Budget {
		t.Errorf("budget = %+v, want %+v", got.Budget, snapshot.Budget)
	}
	if len(got.Sessions) != 1 || got.Sessions[0].ID != "s1" {
		t.Errorf("sessions not preserved: %+v", got.Sessions)
	}
	if got.ActiveSeconds != 2700 {
		t.Errorf("active seconds = %d, want 2700", got.ActiveSeconds)
	}
	if !got.FetchedAt.Equal(fetched) {
		t.Errorf("fetched at = %s, want %s", got.FetchedAt, fetched)
	}
}

func TestSnapshotStore_PutReplaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	snapshots := store.Snapshots()

	first := storage.Snapshot{ActiveSeconds: 100, FetchedAt: time.Now().UTC()}
	second := storage.Snapshot{ActiveSeconds: 200, FetchedAt: time.Now().UTC()}

	if err := snapshots.Put(ctx, first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := snapshots.Put(ctx, second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := snapshots.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.ActiveSeconds != 200 {
		t.Errorf("active seconds = %d, want 200", got.ActiveSeconds)
	}
}

func alertAt(id string, ts time.Time, severity string) storage.AlertRecord {
	return storage.AlertRecord{
		ID:               id,
		Severity:         severity,
		RemainingMinutes: 5,
		Message:          "5m of gaming time left",
		Timestamp:        ts,
	}
}

func TestAlertStore_AppendAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	alerts := store.Alerts()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, severity := range []string{"warning", "critical", "exceeded"} {
		record := alertAt(severity, base.Add(time.Duration(i)*time.Minute), severity)
		if err := alerts.Append(ctx, record); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := alerts.List(ctx, storage.AlertFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d alerts, want 3", len(got))
	}
	// Newest first.
	if got[0].Severity != "exceeded" || got[2].Severity != "warning" {
		t.Errorf("unexpected order: %s, %s, %s", got[0].Severity, got[1].Severity, got[2].Severity)
	}

	limited, err := alerts.List(ctx, storage.AlertFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 || limited[0].Severity != "exceeded" {
		t.Errorf("limited list = %+v, want single exceeded alert", limited)
	}

	from := base.Add(30 * time.Second)
	to := base.Add(90 * time.Second)
	window, err := alerts.List(ctx, storage.AlertFilter{StartTime: &from, EndTime: &to})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(window) != 1 || window[0].Severity != "critical" {
		t.Errorf("windowed list = %+v, want single critical alert", window)
	}
}

func TestAlertStore_TrimBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	alerts := store.Alerts()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		record := alertAt(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour), "warning")
		if err := alerts.Append(ctx, record); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	removed, err := alerts.TrimBefore(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("TrimBefore failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	remaining, err := alerts.List(ctx, storage.AlertFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("got %d alerts after trim, want 2", len(remaining))
	}
}

func TestSummaryStore_UpsertAndRange(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	summaries := store.Summaries()

	days := []storage.DailySummary{
		{Date: "2025-06-01", MergedActiveSeconds: 3600, TotalPlaytimeSeconds: 4200, SessionCount: 3, UsedMinutes: 60, TotalAvailableMinutes: 120, UnusedMinutes: 60},
		{Date: "2025-06-02", MergedActiveSeconds: 7200, TotalPlaytimeSeconds: 7200, SessionCount: 2, UsedMinutes: 120, TotalAvailableMinutes: 120},
		{Date: "2025-06-03", MergedActiveSeconds: 1800, TotalPlaytimeSeconds: 1800, SessionCount: 1, UsedMinutes: 30, TotalAvailableMinutes: 150, UnusedMinutes: 120},
	}
	for _, day := range days {
		if err := summaries.Upsert(ctx, day); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", day.Date, err)
		}
	}

	all, err := summaries.Range(ctx, "", "")
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d summaries, want 3", len(all))
	}
	// Oldest first.
	if all[0].Date != "2025-06-01" || all[2].Date != "2025-06-03" {
		t.Errorf("unexpected order: %s, %s, %s", all[0].Date, all[1].Date, all[2].Date)
	}
	if all[0] != days[0] {
		t.Errorf("summary = %+v, want %+v", all[0], days[0])
	}

	window, err := summaries.Range(ctx, "2025-06-02", "2025-06-02")
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(window) != 1 || window[0].Date != "2025-06-02" {
		t.Errorf("windowed range = %+v, want single 2025-06-02 entry", window)
	}
}

func TestSummaryStore_UpsertReplacesSameDay(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	summaries := store.Summaries()

	if err := summaries.Upsert(ctx, storage.DailySummary{Date: "2025-06-01", SessionCount: 1}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := summaries.Upsert(ctx, storage.DailySummary{Date: "2025-06-01", SessionCount: 4}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := summaries.Range(ctx, "2025-06-01", "2025-06-01")
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(got) != 1 || got[0].SessionCount != 4 {
		t.Errorf("range after replace = %+v, want one entry with 4 sessions", got)
	}
}

func TestSummaryStore_UpsertRejectsBadDate(t *testing.T) {
	store := setupTestStore(t)

	err := store.Summaries().Upsert(context.Background(), storage.DailySummary{Date: "June 1st"})
	if err == nil {
		t.Error("expected error for malformed date")
	}
}
