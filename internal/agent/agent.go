// Package agent runs the monitoring loop: poll the monitor service,
// derive the dashboard view, escalate threshold alerts, and keep the
// last known snapshot durable for the times the service is unreachable.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goodtune/playwarden/internal/alert"
	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/budget"
	"github.com/goodtune/playwarden/internal/metrics"
	"github.com/goodtune/playwarden/internal/names"
	"github.com/goodtune/playwarden/internal/policy"
	"github.com/goodtune/playwarden/internal/storage"
	"github.com/goodtune/playwarden/internal/timeline"
)

// Broadcaster fans agent events out to dashboard subscribers.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Options wires the agent's collaborators. Backend and Store are
// required; the rest degrade gracefully when nil.
type Options struct {
	Backend    backend.Client
	Store      storage.Store
	Policy     *policy.Engine
	Names      *names.Resolver
	Hub        Broadcaster
	AutoCloser *alert.AutoCloser

	PollInterval time.Duration
	Clock        timeline.Clock
	Logger       zerolog.Logger
}

// Agent is the monitoring daemon core.
type Agent struct {
	backend    backend.Client
	store      storage.Store
	policy     *policy.Engine
	names      *names.Resolver
	hub        Broadcaster
	autoCloser *alert.AutoCloser

	pollInterval time.Duration
	clock        timeline.Clock
	logger       zerolog.Logger

	mu       sync.RWMutex
	view     BudgetView
	hasView  bool
	snapshot *storage.Snapshot
	notifier alert.State

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates an agent from the given options.
func New(opts Options) *Agent {
	if opts.Clock == nil {
		opts.Clock = timeline.RealClock{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}

	a := &Agent{
		backend:      opts.Backend,
		store:        opts.Store,
		policy:       opts.Policy,
		names:        opts.Names,
		hub:          opts.Hub,
		autoCloser:   opts.AutoCloser,
		pollInterval: opts.PollInterval,
		clock:        opts.Clock,
		logger:       opts.Logger.With().Str("component", "agent").Logger(),
		notifier:     alert.NewState(),
		stopChan:     make(chan struct{}),
	}

	if a.autoCloser != nil {
		a.autoCloser.OnClosed = a.onGamesClosed
	}

	return a
}

// Start primes the last known snapshot from the store and launches the
// poll and rollover loops.
func (a *Agent) Start() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if snapshot, err := a.store.Snapshots().Latest(ctx); err == nil {
		a.mu.Lock()
		a.snapshot = snapshot
		a.view = a.buildView(snapshot, a.clock.Now(), true)
		a.hasView = true
		a.mu.Unlock()
		a.logger.Info().Time("fetched_at", snapshot.FetchedAt).Msg("Recovered last known snapshot")
	} else if !errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn().Err(err).Msg("Failed to load stored snapshot")
	}

	a.wg.Add(2)
	go a.run()
	go a.runRollover()

	a.logger.Info().Dur("poll_interval", a.pollInterval).Msg("Agent started")
}

// Stop stops the loops and waits for them to exit.
func (a *Agent) Stop() {
	close(a.stopChan)
	a.wg.Wait()
	if a.autoCloser != nil {
		a.autoCloser.Stop()
	}
	a.logger.Info().Msg("Agent stopped")
}

// ReloadPolicy reloads the eligibility policies (SIGHUP).
func (a *Agent) ReloadPolicy() error {
	if a.policy == nil {
		return nil
	}
	return a.policy.Reload()
}

// View returns the current dashboard view. The second return is false
// until the first snapshot exists.
func (a *Agent) View() (BudgetView, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view, a.hasView
}

// Snapshot returns the last known good snapshot.
func (a *Agent) Snapshot() (*storage.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot, a.snapshot != nil
}

func (a *Agent) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Tick(context.Background())
		case <-a.stopChan:
			return
		}
	}
}

// Tick runs one poll cycle: fetch, derive, persist, publish, escalate.
// A fetch failure downgrades the tick to the last known snapshot rather
// than skipping it, so the view and the notifier keep moving.
func (a *Agent) Tick(ctx context.Context) {
	metrics.PollsTotal.Inc()
	now := a.clock.Now()

	snapshot, err := a.fetch(ctx, now)
	stale := false
	if err != nil {
		metrics.PollFailures.Inc()
		a.logger.Warn().Err(err).Msg("Poll failed, using last known snapshot")

		a.mu.RLock()
		cached := a.snapshot
		a.mu.RUnlock()
		if cached == nil {
			return
		}
		snapshot = cached
		stale = true
	} else if err := a.store.Snapshots().Put(ctx, *snapshot); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to persist snapshot")
	}

	view := a.buildView(snapshot, now, stale)

	a.mu.Lock()
	if !stale {
		a.snapshot = snapshot
	}
	state, ev := alert.Transition(a.notifier, snapshot.Budget.RemainingTodayMinutes)
	a.notifier = state
	view.Severity = state.Severity
	a.view = view
	a.hasView = true
	a.mu.Unlock()

	a.publishMetrics(view)

	if a.hub != nil {
		a.hub.Broadcast(EventBudgetUpdate, view)
		a.hub.Broadcast(EventSessionsUpdate, view.Sessions)
	}

	a.handleAlertEvent(ctx, ev, snapshot.Budget.RemainingTodayMinutes, now)
}

// fetch pulls the tick's working set from the monitor service and
// reduces it to a snapshot of eligible, annotated sessions.
func (a *Agent) fetch(ctx context.Context, now time.Time) (*storage.Snapshot, error) {
	budgetStatus, err := a.backend.RealtimeBudgetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}

	current, err := a.backend.CurrentSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("current sessions: %w", err)
	}

	activeSeconds, err := a.backend.TotalActiveTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("total active time: %w", err)
	}

	recent, err := a.backend.RecentSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}

	annotated := timeline.AnnotateConcurrency(current, now)
	eligible := annotated
	if a.policy != nil {
		eligible = a.policy.FilterCountable(ctx, annotated, a.resolveFunc())
	}

	return &storage.Snapshot{
		Budget:        budgetStatus,
		Sessions:      eligible,
		Recent:        recent,
		ActiveSeconds: activeSeconds,
		FetchedAt:     now,
	}, nil
}

func (a *Agent) resolveFunc() func(string) string {
	if a.names == nil {
		return nil
	}
	return a.names.Resolve
}

// buildView derives the dashboard state from a snapshot.
func (a *Agent) buildView(snapshot *storage.Snapshot, now time.Time, stale bool) BudgetView {
	classification := budget.Classify(snapshot.Budget)

	sessions := make([]SessionView, 0, len(snapshot.Sessions))
	for _, s := range snapshot.Sessions {
		active := int64(timeline.ActiveSpan(s, now).Seconds())
		displayName := s.GameName
		if a.names != nil {
			displayName = a.names.Resolve(s.ProcessName)
		}
		sessions = append(sessions, SessionView{
			Session:         s,
			DisplayName:     displayName,
			ActiveSeconds:   active,
			ActiveFormatted: timeline.FormatDuration(active),
		})
	}

	today := filterToday(snapshot.Recent, now)

	usedSeconds := int64(snapshot.Budget.UsedTodayMinutes) * 60
	remainingSeconds := int64(snapshot.Budget.RemainingTodayMinutes) * 60
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}

	return BudgetView{
		Budget:     snapshot.Budget,
		Percentage: classification.Percentage,
		State:      classification.State,

		UsedFormatted:      timeline.FormatDuration(usedSeconds),
		RemainingFormatted: timeline.FormatDuration(remainingSeconds),

		Sessions: sessions,

		MergedActiveSecondsToday:  timeline.MergeActiveTime(today),
		TotalPlaytimeSecondsToday: timeline.TotalPlaytime(today),
		SessionsToday:             len(today),
		LiveActiveSeconds:         snapshot.ActiveSeconds,

		FetchedAt: snapshot.FetchedAt,
		Stale:     stale,
	}
}

// filterToday keeps the sessions that started on now's local day.
func filterToday(sessions []backend.Session, now time.Time) []backend.Session {
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := make([]backend.Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.StartTime.Before(dayStart) && s.StartTime.Before(dayEnd) {
			out = append(out, s)
		}
	}
	return out
}

func (a *Agent) publishMetrics(view BudgetView) {
	metrics.BudgetUsedMinutes.Set(float64(view.Budget.UsedTodayMinutes))
	metrics.BudgetRemainingMinutes.Set(float64(view.Budget.RemainingTodayMinutes))
	metrics.BudgetTotalAvailableMinutes.Set(float64(view.Budget.TotalAvailableMinutes))
	metrics.BudgetUsagePercent.Set(float64(view.Percentage))
	metrics.MergedActiveSeconds.Set(float64(view.MergedActiveSecondsToday))

	open := 0
	for _, s := range view.Sessions {
		if !s.Closed() {
			open++
		}
	}
	metrics.ActiveSessions.Set(float64(open))
}

// handleAlertEvent journals and broadcasts a severity transition.
func (a *Agent) handleAlertEvent(ctx context.Context, ev alert.Event, remaining int, now time.Time) {
	if ev.Fired == alert.SeverityNone && !ev.Recovered {
		return
	}

	var record storage.AlertRecord
	if ev.Fired != alert.SeverityNone {
		message := fmt.Sprintf("%s of gaming time left", timeline.FormatDuration(int64(remaining)*60))
		if ev.Fired == alert.SeverityExceeded {
			message = "Gaming time budget exceeded"
		}
		record = storage.AlertRecord{
			ID:               uuid.NewString(),
			Severity:         string(ev.Fired),
			RemainingMinutes: remaining,
			Message:          message,
			Timestamp:        now,
		}
		metrics.AlertsTotal.WithLabelValues(string(ev.Fired)).Inc()
	} else {
		record = storage.AlertRecord{
			ID:               uuid.NewString(),
			Severity:         string(alert.SeverityNone),
			RemainingMinutes: remaining,
			Message:          "Budget recovered",
			Timestamp:        now,
		}
	}

	if err := a.store.Alerts().Append(ctx, record); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to journal alert")
	}

	a.logger.Info().
		Str("severity", record.Severity).
		Int("remaining_minutes", remaining).
		Msg("Budget severity changed")

	if a.hub != nil {
		a.hub.Broadcast(EventSeverityChange, SeverityChange{
			Severity:         alert.Severity(record.Severity),
			RemainingMinutes: remaining,
			Timestamp:        now,
		})
	}

	if ev.AutoClose && a.autoCloser != nil {
		a.autoCloser.Arm()
	}
}

func (a *Agent) onGamesClosed(processes []string) {
	metrics.GamesClosedTotal.Inc()
	if a.hub != nil {
		a.hub.Broadcast(EventGamesClosed, GamesClosed{
			Processes: processes,
			Timestamp: a.clock.Now(),
		})
	}
}
