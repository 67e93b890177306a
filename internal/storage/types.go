package storage

import (
	"time"

	"github.com/goodtune/playwarden/internal/backend"
)

// DateFormat is the key format for per-day records.
const DateFormat = "2006-01-02"

// Snapshot is the agent's view of one successful backend fetch:
// the budget, the sessions that count toward it, and the raw active
// seconds the monitor reported.
type Snapshot struct {
	Budget        backend.BudgetStatus `json:"budget"`
	Sessions      []backend.Session    `json:"sessions"`
	Recent        []backend.Session    `json:"recent_sessions,omitempty"`
	ActiveSeconds int64                `json:"active_seconds"`
	FetchedAt     time.Time            `json:"fetched_at"`
}

// AlertRecord is one threshold crossing written to the alert journal.
type AlertRecord struct {
	ID               string    `json:"id"`
	Severity         string    `json:"severity"`
	RemainingMinutes int       `json:"remaining_minutes"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}

// AlertFilter defines criteria for querying the alert journal. Results
// come back newest first.
type AlertFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// DailySummary is the end-of-day record written at rollover, before
// counters reset.
type DailySummary struct {
	Date                  string `json:"date"`
	MergedActiveSeconds   int64  `json:"merged_active_seconds"`
	TotalPlaytimeSeconds  int64  `json:"total_playtime_seconds"`
	SessionCount          int    `json:"session_count"`
	UsedMinutes           int    `json:"used_minutes"`
	TotalAvailableMinutes int    `json:"total_available_minutes"`
	UnusedMinutes         int    `json:"unused_minutes"`
}
