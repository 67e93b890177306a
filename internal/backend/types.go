package backend

import "time"

// Session represents one recorded run of a monitored game process.
// Sessions are produced by the monitor service and handed across the
// boundary as values; the agent derives view state from each snapshot
// rather than mutating records in place.
type Session struct {
	ID                   string     `json:"id,omitempty"`
	GameName             string     `json:"game_name"`
	ProcessName          string     `json:"process_name"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	DurationSeconds      *int64     `json:"duration_seconds,omitempty"`
	IsSocialSession      bool       `json:"is_social_session"`
	IsConcurrent         bool       `json:"is_concurrent"`
	ConcurrentSessionIDs []string   `json:"concurrent_session_ids,omitempty"`
}

// Closed reports whether the session has finished. A session is closed
// only when both end time and duration are present; the monitor fills
// them together when the process exits.
func (s *Session) Closed() bool {
	return s.EndTime != nil && s.DurationSeconds != nil
}

// Duration returns the server-recorded length of a closed session. The
// recorded value is authoritative and is never recomputed from the
// timestamps, so it stays consistent with the monitor's own accounting
// under clock skew or rounding. Returns 0 for open sessions.
func (s *Session) Duration() time.Duration {
	if s.DurationSeconds == nil {
		return 0
	}
	return time.Duration(*s.DurationSeconds) * time.Second
}

// BudgetStatus is the monitor service's snapshot of today's time budget.
// All fields are whole minutes. TotalAvailableMinutes is assumed to be
// allowance + rollover + earned but is never validated here, and
// RemainingTodayMinutes may go negative when the budget is exceeded;
// both are representable states, not errors.
type BudgetStatus struct {
	DailyAllowanceMinutes int `json:"daily_allowance_minutes"`
	UsedTodayMinutes      int `json:"used_today_minutes"`
	RemainingTodayMinutes int `json:"remaining_today_minutes"`
	RolloverMinutes       int `json:"rollover_minutes"`
	EarnedMinutes         int `json:"earned_minutes"`
	TotalAvailableMinutes int `json:"total_available_minutes"`
}

// LearningActivity is an activity submitted to earn extra gaming time.
// EarnedGamingMinutes carries the client-side preview; the service
// recomputes the authoritative reward on submission.
type LearningActivity struct {
	ID                  string    `json:"id,omitempty"`
	ActivityType        string    `json:"activity_type"`
	Description         string    `json:"description"`
	DurationMinutes     int       `json:"duration_minutes"`
	EarnedGamingMinutes int       `json:"earned_gaming_minutes"`
	Timestamp           time.Time `json:"timestamp"`
}
