// Package testbackend provides an in-memory monitor service for tests.
// It implements backend.Client directly for agent and handler tests,
// and serves the same state over the JSON-RPC wire for client tests.
package testbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/backend/jsonrpc"
	"github.com/goodtune/playwarden/internal/budget"
)

// Backend is a scriptable monitor service. Zero value is usable; set
// Err to make every operation fail with that error.
type Backend struct {
	mu sync.Mutex

	Budget        backend.BudgetStatus
	Current       []backend.Session
	Recent        []backend.Session
	ActiveSeconds int64
	Running       []string

	Activities []backend.LearningActivity
	CloseCalls int

	// Err, when set, is returned by every operation.
	Err error
}

var _ backend.Client = (*Backend)(nil)

// Server bundles a Backend with an httptest server speaking the
// JSON-RPC wire, for exercising the real client.
type Server struct {
	*Backend
	HTTP *httptest.Server
}

// NewServer starts a wire-level test backend, torn down with the test.
func NewServer(t *testing.T) *Server {
	t.Helper()

	b := &Backend{}
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	return &Server{Backend: b, HTTP: srv}
}

// SetErr injects a failure into every subsequent operation; pass nil to
// restore normal behavior.
func (b *Backend) SetErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Err = err
}

func (b *Backend) CurrentSessions(ctx context.Context) ([]backend.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	out := make([]backend.Session, len(b.Current))
	copy(out, b.Current)
	return out, nil
}

func (b *Backend) TotalActiveTime(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return 0, b.Err
	}
	return b.ActiveSeconds, nil
}

func (b *Backend) RealtimeBudgetStatus(ctx context.Context) (backend.BudgetStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return backend.BudgetStatus{}, b.Err
	}
	return b.Budget, nil
}

// RecentSessions returns newest-first sessions, capped at 20 like the
// real service.
func (b *Backend) RecentSessions(ctx context.Context) ([]backend.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	n := len(b.Recent)
	if n > 20 {
		n = 20
	}
	out := make([]backend.Session, n)
	copy(out, b.Recent[:n])
	return out, nil
}

func (b *Backend) AddBudgetMinutes(ctx context.Context, minutes int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Budget.EarnedMinutes += minutes
	b.Budget.TotalAvailableMinutes += minutes
	b.Budget.RemainingTodayMinutes += minutes
	return nil
}

func (b *Backend) RemoveBudgetMinutes(ctx context.Context, minutes int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Budget.EarnedMinutes -= minutes
	b.Budget.TotalAvailableMinutes -= minutes
	b.Budget.RemainingTodayMinutes -= minutes
	return nil
}

// AddLearningActivity records the activity and credits the authoritative
// reward, same table the real service applies.
func (b *Backend) AddLearningActivity(ctx context.Context, activity backend.LearningActivity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}

	earned := budget.EarnedMinutes(activity.ActivityType, activity.DurationMinutes)
	activity.EarnedGamingMinutes = earned
	b.Activities = append(b.Activities, activity)

	b.Budget.EarnedMinutes += earned
	b.Budget.TotalAvailableMinutes += earned
	b.Budget.RemainingTodayMinutes += earned
	return nil
}

func (b *Backend) CloseAllGames(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	b.CloseCalls++
	out := make([]string, len(b.Running))
	copy(out, b.Running)
	return out, nil
}

// Handler serves the backend state over the JSON-RPC 2.0 wire.
func (b *Backend) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, nil, jsonrpc.ErrParseCode, "parse error")
			return
		}
		if req.JSONRPC != "2.0" || req.Method == "" {
			writeError(w, req.ID, jsonrpc.ErrInvalidReq, "invalid request")
			return
		}

		ctx := r.Context()

		var result any
		var err error

		switch req.Method {
		case "get_current_sessions":
			result, err = b.CurrentSessions(ctx)
		case "get_total_active_time":
			result, err = b.TotalActiveTime(ctx)
		case "get_realtime_budget_status":
			result, err = b.RealtimeBudgetStatus(ctx)
		case "get_recent_sessions":
			result, err = b.RecentSessions(ctx)
		case "add_budget_minutes":
			var params struct {
				Minutes int `json:"minutes"`
			}
			if err := json.Unmarshal(req.Params, &params); err != nil {
				writeError(w, req.ID, jsonrpc.ErrInvalidParams, "invalid params")
				return
			}
			err = b.AddBudgetMinutes(ctx, params.Minutes)
		case "remove_budget_minutes":
			var params struct {
				Minutes int `json:"minutes"`
			}
			if err := json.Unmarshal(req.Params, &params); err != nil {
				writeError(w, req.ID, jsonrpc.ErrInvalidParams, "invalid params")
				return
			}
			err = b.RemoveBudgetMinutes(ctx, params.Minutes)
		case "add_learning_activity":
			var activity backend.LearningActivity
			if err := json.Unmarshal(req.Params, &activity); err != nil {
				writeError(w, req.ID, jsonrpc.ErrInvalidParams, "invalid params")
				return
			}
			err = b.AddLearningActivity(ctx, activity)
		case "close_all_games":
			result, err = b.CloseAllGames(ctx)
		default:
			writeError(w, req.ID, jsonrpc.ErrMethodNotFound, "method not found")
			return
		}

		if err != nil {
			writeError(w, req.ID, jsonrpc.ErrInternal, err.Error())
			return
		}

		raw, err := json.Marshal(result)
		if err != nil {
			writeError(w, req.ID, jsonrpc.ErrInternal, "encode result")
			return
		}

		writeResponse(w, jsonrpc.Response{JSONRPC: "2.0", Result: raw, ID: req.ID})
	})
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	writeResponse(w, jsonrpc.Response{
		JSONRPC: "2.0",
		Error:   &jsonrpc.Error{Code: code, Message: message},
		ID:      id,
	})
}

func writeResponse(w http.ResponseWriter, resp jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
