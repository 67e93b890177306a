// Package backend defines the call contract with the monitor service
// that owns process detection and persistence. The agent only ever talks
// to the service through this interface; the wire protocol lives in the
// jsonrpc subpackage.
package backend

import (
	"context"
	"errors"
)

// ErrUnavailable wraps transport-level failures (service unreachable,
// malformed response). Callers check for it with errors.Is and fall back
// to the last known snapshot instead of failing the poll loop.
var ErrUnavailable = errors.New("backend: service unavailable")

// Client is the set of remote operations the monitor service exposes.
type Client interface {
	// CurrentSessions returns the sessions for processes running right now.
	CurrentSessions(ctx context.Context) ([]Session, error)

	// TotalActiveTime returns the live active seconds across open
	// sessions, computed by the service against its own clock.
	TotalActiveTime(ctx context.Context) (int64, error)

	// RealtimeBudgetStatus returns today's budget with live active time
	// already folded into the used minutes.
	RealtimeBudgetStatus(ctx context.Context) (BudgetStatus, error)

	// RecentSessions returns the most recently recorded sessions, newest
	// first. The service caps the result at 20 entries.
	RecentSessions(ctx context.Context) ([]Session, error)

	// AddBudgetMinutes credits extra minutes to today's budget.
	AddBudgetMinutes(ctx context.Context, minutes int) error

	// RemoveBudgetMinutes debits minutes from today's budget.
	RemoveBudgetMinutes(ctx context.Context, minutes int) error

	// AddLearningActivity submits a completed learning activity. The
	// service computes the authoritative reward and credits the budget.
	AddLearningActivity(ctx context.Context, activity LearningActivity) error

	// CloseAllGames asks the service to terminate every monitored game
	// process and returns the names of the processes it closed.
	CloseAllGames(ctx context.Context) ([]string, error)
}
