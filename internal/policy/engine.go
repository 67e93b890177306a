// Package policy decides which game sessions count toward the time
// budget. The engine gathers facts about a session and asks OPA; the
// rules live in rego so the blacklist and any household-specific
// exceptions can change without a rebuild.
package policy

import (
	"context"
	"fmt"

	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/policy/opa"
	"github.com/goodtune/playwarden/internal/timeline"
	"github.com/rs/zerolog"
)

// Engine evaluates session eligibility by gathering facts and calling
// OPA.
type Engine struct {
	opaEngine *opa.Engine
	clock     timeline.Clock
	logger    zerolog.Logger
}

// NewEngine creates a fact-based eligibility engine.
func NewEngine(cfg opa.Config, logger zerolog.Logger) (*Engine, error) {
	opaEngine, err := opa.NewEngine(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OPA engine: %w", err)
	}

	return &Engine{
		opaEngine: opaEngine,
		clock:     timeline.RealClock{},
		logger:    logger.With().Str("component", "policy").Logger(),
	}, nil
}

// SetClock sets the clock used for time-of-day facts (for testing).
func (e *Engine) SetClock(clock timeline.Clock) {
	e.clock = clock
}

// Countable reports whether a session counts toward the budget.
// Evaluation failure falls back to countable: a broken policy must not
// silently stop the meter.
func (e *Engine) Countable(ctx context.Context, session backend.Session, displayName string) bool {
	facts := e.buildSessionFacts(session, displayName)

	countable, err := e.opaEngine.Countable(ctx, facts)
	if err != nil {
		e.logger.Error().Err(err).
			Str("process", session.ProcessName).
			Msg("OPA evaluation failed, counting session")
		return true
	}

	return countable
}

// FilterCountable returns the sessions that count toward the budget.
// resolve maps a process name to its display name; nil falls back to
// the session's own game name.
func (e *Engine) FilterCountable(ctx context.Context, sessions []backend.Session, resolve func(string) string) []backend.Session {
	countable := make([]backend.Session, 0, len(sessions))
	for _, session := range sessions {
		displayName := session.GameName
		if resolve != nil {
			displayName = resolve(session.ProcessName)
		}
		if e.Countable(ctx, session, displayName) {
			countable = append(countable, session)
		}
	}
	return countable
}

// buildSessionFacts gathers the facts a policy can rule on.
func (e *Engine) buildSessionFacts(session backend.Session, displayName string) map[string]interface{} {
	now := e.clock.Now()

	durationSeconds := int64(0)
	if session.Closed() {
		durationSeconds = int64(session.Duration().Seconds())
	} else if now.After(session.StartTime) {
		durationSeconds = int64(now.Sub(session.StartTime).Seconds())
	}

	return map[string]interface{}{
		"process_name":      session.ProcessName,
		"game_name":         displayName,
		"is_social_session": session.IsSocialSession,
		"is_concurrent":     session.IsConcurrent,
		"duration_seconds":  durationSeconds,
		"time": map[string]interface{}{
			"day_of_week": int(now.Weekday()),
			"hour":        now.Hour(),
			"minute":      now.Minute(),
		},
	}
}

// Reload reloads the OPA policies from disk.
func (e *Engine) Reload() error {
	return e.opaEngine.Reload()
}
