package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/metrics"
	"github.com/rs/zerolog"
)

// Remote method names exposed by the monitor service.
const (
	methodCurrentSessions      = "get_current_sessions"
	methodTotalActiveTime      = "get_total_active_time"
	methodRealtimeBudgetStatus = "get_realtime_budget_status"
	methodRecentSessions       = "get_recent_sessions"
	methodAddBudgetMinutes     = "add_budget_minutes"
	methodRemoveBudgetMinutes  = "remove_budget_minutes"
	methodAddLearningActivity  = "add_learning_activity"
	methodCloseAllGames        = "close_all_games"
)

// Config holds the client configuration.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client talks JSON-RPC 2.0 to the monitor service over HTTP POST.
// Transport failures and malformed responses are wrapped in
// backend.ErrUnavailable; application errors from the service come back
// as plain errors.
type Client struct {
	url    string
	http   *http.Client
	logger zerolog.Logger
	nextID atomic.Int64
}

var _ backend.Client = (*Client)(nil)

// New creates a client for the monitor service at cfg.URL.
func New(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		url:    cfg.URL,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "backend").Logger(),
	}
}

// call performs one JSON-RPC round trip. A nil result discards the
// response payload.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	start := time.Now()
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		ID:      c.nextID.Add(1),
	}

	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
		req.Params = raw
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", backend.ErrUnavailable, method, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %d", backend.ErrUnavailable, method, httpResp.StatusCode)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", backend.ErrUnavailable, method, err)
	}

	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}

	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%w: %s: decode result: %v", backend.ErrUnavailable, method, err)
		}
	}

	c.logger.Debug().Str("method", method).Dur("duration", time.Since(start)).Msg("Backend call complete")

	return nil
}

// CurrentSessions returns the sessions for processes running right now.
func (c *Client) CurrentSessions(ctx context.Context) ([]backend.Session, error) {
	var sessions []backend.Session
	if err := c.call(ctx, methodCurrentSessions, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// TotalActiveTime returns the live active seconds across open sessions.
func (c *Client) TotalActiveTime(ctx context.Context) (int64, error) {
	var seconds int64
	if err := c.call(ctx, methodTotalActiveTime, nil, &seconds); err != nil {
		return 0, err
	}
	return seconds, nil
}

// RealtimeBudgetStatus returns today's budget with live active time
// folded in.
func (c *Client) RealtimeBudgetStatus(ctx context.Context) (backend.BudgetStatus, error) {
	var status backend.BudgetStatus
	if err := c.call(ctx, methodRealtimeBudgetStatus, nil, &status); err != nil {
		return backend.BudgetStatus{}, err
	}
	return status, nil
}

// RecentSessions returns the most recently recorded sessions, newest first.
func (c *Client) RecentSessions(ctx context.Context) ([]backend.Session, error) {
	var sessions []backend.Session
	if err := c.call(ctx, methodRecentSessions, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// AddBudgetMinutes credits extra minutes to today's budget.
func (c *Client) AddBudgetMinutes(ctx context.Context, minutes int) error {
	return c.call(ctx, methodAddBudgetMinutes, map[string]int{"minutes": minutes}, nil)
}

// RemoveBudgetMinutes debits minutes from today's budget.
func (c *Client) RemoveBudgetMinutes(ctx context.Context, minutes int) error {
	return c.call(ctx, methodRemoveBudgetMinutes, map[string]int{"minutes": minutes}, nil)
}

// AddLearningActivity submits a completed learning activity.
func (c *Client) AddLearningActivity(ctx context.Context, activity backend.LearningActivity) error {
	return c.call(ctx, methodAddLearningActivity, activity, nil)
}

// CloseAllGames asks the service to terminate every monitored game
// process.
func (c *Client) CloseAllGames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.call(ctx, methodCloseAllGames, nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}
