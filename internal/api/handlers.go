package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/goodtune/playwarden/internal/agent"
	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/budget"
	"github.com/goodtune/playwarden/internal/metrics"
	"github.com/goodtune/playwarden/internal/storage"
	"github.com/goodtune/playwarden/internal/timeline"
)

const defaultAlertLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBudget returns the agent's current budget view. Stale views are
// served as-is; the payload carries the stale flag and fetch time.
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	view, ok := s.agent.View()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "No budget data available yet")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCurrentSessions(w http.ResponseWriter, r *http.Request) {
	view, ok := s.agent.View()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "No session data available yet")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":   view.Sessions,
		"count":      len(view.Sessions),
		"fetched_at": view.FetchedAt,
		"stale":      view.Stale,
	})
}

// recentSessionsResponse carries the filtered history rows plus the
// aggregate under the requested accounting mode.
type recentSessionsResponse struct {
	Sessions           []backend.Session       `json:"sessions"`
	Count              int                     `json:"count"`
	Mode               timeline.AccountingMode `json:"mode"`
	AggregateSeconds   int64                   `json:"aggregate_seconds"`
	AggregateFormatted string                  `json:"aggregate_formatted"`
	Stale              bool                    `json:"stale"`
}

// handleRecentSessions fetches recent history live from the monitor
// service, falling back to the last stored snapshot when it is
// unreachable. Query parameters: mode (budget-usage | total-playtime),
// from and to (RFC 3339, filter on session start), social (bool).
func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode, err := timeline.ParseAccountingMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var from, to time.Time
	if v := q.Get("from"); v != "" {
		from, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' timestamp, want RFC 3339")
			return
		}
	}
	if v := q.Get("to"); v != "" {
		to, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' timestamp, want RFC 3339")
			return
		}
	}

	var social *bool
	if v := q.Get("social"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'social' value, want boolean")
			return
		}
		social = &b
	}

	sessions, stale, err := s.recentSessions(r)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Monitor service unreachable and no snapshot available")
		return
	}

	filtered := make([]backend.Session, 0, len(sessions))
	for _, session := range sessions {
		if !from.IsZero() && session.StartTime.Before(from) {
			continue
		}
		if !to.IsZero() && session.StartTime.After(to) {
			continue
		}
		if social != nil && session.IsSocialSession != *social {
			continue
		}
		filtered = append(filtered, session)
	}

	aggregate := timeline.Aggregate(filtered, mode)

	writeJSON(w, http.StatusOK, recentSessionsResponse{
		Sessions:           filtered,
		Count:              len(filtered),
		Mode:               mode,
		AggregateSeconds:   aggregate,
		AggregateFormatted: timeline.FormatDuration(aggregate),
		Stale:              stale,
	})
}

// recentSessions prefers a live fetch and degrades to the snapshot's
// recent set when the service is down.
func (s *Server) recentSessions(r *http.Request) ([]backend.Session, bool, error) {
	sessions, err := s.backend.RecentSessions(r.Context())
	if err == nil {
		return sessions, false, nil
	}

	s.logger.Warn().Err(err).Msg("Live history fetch failed, serving snapshot")

	snapshot, ok := s.agent.Snapshot()
	if !ok {
		return nil, false, err
	}
	return snapshot.Recent, true, nil
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid 'limit' value, want positive integer")
			return
		}
		limit = n
	}

	records, err := s.store.Alerts().List(r.Context(), storage.AlertFilter{Limit: limit})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list alerts")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": records,
		"count":  len(records),
	})
}

type adjustRequest struct {
	Minutes int `json:"minutes"`
}

// handleBudgetAdjust credits or debits today's budget on the monitor
// service. Positive minutes add time, negative minutes remove it.
func (s *Server) handleBudgetAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Minutes == 0 {
		writeError(w, http.StatusBadRequest, "Minutes must be non-zero")
		return
	}

	var err error
	if req.Minutes > 0 {
		err = s.backend.AddBudgetMinutes(r.Context(), req.Minutes)
	} else {
		err = s.backend.RemoveBudgetMinutes(r.Context(), -req.Minutes)
	}
	if err != nil {
		s.logger.Error().Err(err).Int("minutes", req.Minutes).Msg("Budget adjustment failed")
		if errors.Is(err, backend.ErrUnavailable) {
			writeError(w, http.StatusBadGateway, "Monitor service unreachable")
		} else {
			writeError(w, http.StatusInternalServerError, "Budget adjustment failed")
		}
		return
	}

	s.logger.Info().Int("minutes", req.Minutes).Msg("Budget adjusted")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"adjusted_minutes": req.Minutes,
	})
}

// handleActivities submits a learning activity. The reward preview is
// computed locally; the service recomputes the authoritative value.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	var activity backend.LearningActivity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if activity.ActivityType == "" {
		writeError(w, http.StatusBadRequest, "Activity type is required")
		return
	}
	if activity.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "Duration must be positive")
		return
	}

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = s.clock.Now().UTC()
	}
	activity.EarnedGamingMinutes = budget.EarnedMinutes(activity.ActivityType, activity.DurationMinutes)

	if err := s.backend.AddLearningActivity(r.Context(), activity); err != nil {
		s.logger.Error().Err(err).Str("activity_type", activity.ActivityType).Msg("Activity submission failed")
		if errors.Is(err, backend.ErrUnavailable) {
			writeError(w, http.StatusBadGateway, "Monitor service unreachable")
		} else {
			writeError(w, http.StatusInternalServerError, "Activity submission failed")
		}
		return
	}

	s.logger.Info().
		Str("activity_type", activity.ActivityType).
		Int("duration_minutes", activity.DurationMinutes).
		Int("earned_minutes", activity.EarnedGamingMinutes).
		Msg("Learning activity submitted")

	writeJSON(w, http.StatusCreated, activity)
}

// handleCloseGames asks the monitor service to terminate every
// monitored game process right now.
func (s *Server) handleCloseGames(w http.ResponseWriter, r *http.Request) {
	processes, err := s.backend.CloseAllGames(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Close games failed")
		if errors.Is(err, backend.ErrUnavailable) {
			writeError(w, http.StatusBadGateway, "Monitor service unreachable")
		} else {
			writeError(w, http.StatusInternalServerError, "Close games failed")
		}
		return
	}

	metrics.GamesClosedTotal.Inc()
	s.logger.Info().Strs("processes", processes).Msg("Closed games on request")

	if s.hub != nil {
		s.hub.Broadcast(agent.EventGamesClosed, agent.GamesClosed{
			Processes: processes,
			Timestamp: s.clock.Now(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"processes": processes,
		"count":     len(processes),
	})
}
