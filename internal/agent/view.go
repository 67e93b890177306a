package agent

import (
	"time"

	"github.com/goodtune/playwarden/internal/alert"
	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/budget"
)

// WebSocket event names broadcast by the agent.
const (
	EventBudgetUpdate   = "budget_update"
	EventSessionsUpdate = "sessions_update"
	EventSeverityChange = "severity_change"
	EventGamesClosed    = "games_closed"
)

// SessionView is a session decorated for the dashboard: display name
// and, for open sessions, the live running span.
type SessionView struct {
	backend.Session
	DisplayName     string `json:"display_name"`
	ActiveSeconds   int64  `json:"active_seconds"`
	ActiveFormatted string `json:"active_formatted"`
}

// BudgetView is the derived dashboard state from one poll. Stale marks
// views rebuilt from the last known snapshot while the monitor service
// is unreachable.
type BudgetView struct {
	Budget     backend.BudgetStatus `json:"budget"`
	Percentage int                  `json:"percentage"`
	State      budget.State         `json:"state"`
	Severity   alert.Severity       `json:"severity"`

	UsedFormatted      string `json:"used_formatted"`
	RemainingFormatted string `json:"remaining_formatted"`

	Sessions []SessionView `json:"sessions"`

	MergedActiveSecondsToday  int64 `json:"merged_active_seconds_today"`
	TotalPlaytimeSecondsToday int64 `json:"total_playtime_seconds_today"`
	SessionsToday             int   `json:"sessions_today"`
	LiveActiveSeconds         int64 `json:"live_active_seconds"`

	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// SeverityChange is the payload of a severity_change event.
type SeverityChange struct {
	Severity         alert.Severity `json:"severity"`
	RemainingMinutes int            `json:"remaining_minutes"`
	Timestamp        time.Time      `json:"timestamp"`
}

// GamesClosed is the payload of a games_closed event.
type GamesClosed struct {
	Processes []string  `json:"processes"`
	Timestamp time.Time `json:"timestamp"`
}
