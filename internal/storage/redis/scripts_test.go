package redis

import (
	"context"
	"testing"
	"time"

	"github.com/goodtune/playwarden/internal/storage"
)

// Appending an alert must drop journal entries past the retention
// horizon in the same atomic call.
func TestAppendAlertTrimsExpiredEntries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	alerts := store.Alerts()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ancient := now.Add(-alertRetention - time.Hour)

	if err := alerts.Append(ctx, alertAt("old", ancient, "warning")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := alerts.Append(ctx, alertAt("new", now, "critical")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := alerts.List(ctx, storage.AlertFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d alerts, want 1 (expired entry trimmed)", len(got))
	}
	if got[0].ID != "new" {
		t.Errorf("surviving alert = %s, want new", got[0].ID)
	}
}
