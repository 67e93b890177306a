package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// GameCloser asks the monitor service to terminate game processes.
type GameCloser interface {
	CloseAllGames(ctx context.Context) ([]string, error)
}

// AutoCloser runs the deferred close-all action after the budget is
// exceeded. Each Arm schedules one independent one-shot timer; the
// timer is deliberately not cancelled when the budget recovers before
// the delay elapses, so the action fires exactly once per exceeded
// entry.
type AutoCloser struct {
	closer GameCloser
	delay  time.Duration
	logger zerolog.Logger

	// OnClosed, when set, receives the names of the processes the
	// service reports terminating.
	OnClosed func(names []string)

	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	stopped bool
}

// NewAutoCloser creates an auto-closer firing after delay.
func NewAutoCloser(closer GameCloser, delay time.Duration, logger zerolog.Logger) *AutoCloser {
	return &AutoCloser{
		closer:  closer,
		delay:   delay,
		logger:  logger.With().Str("component", "autoclose").Logger(),
		pending: make(map[*time.Timer]struct{}),
	}
}

// Arm schedules the close action. Callers invoke it once per exceeded
// entry; the transition latch guarantees that cadence.
func (a *AutoCloser) Arm() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(a.delay, func() {
		a.mu.Lock()
		delete(a.pending, timer)
		a.mu.Unlock()
		a.fire()
	})
	a.pending[timer] = struct{}{}

	a.logger.Info().Dur("delay", a.delay).Msg("Budget exceeded, game close scheduled")
}

func (a *AutoCloser) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	names, err := a.closer.CloseAllGames(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to close games")
		return
	}

	a.logger.Info().Strs("processes", names).Msg("Closed game processes")

	if a.OnClosed != nil {
		a.OnClosed(names)
	}
}

// Stop cancels timers still pending at shutdown.
func (a *AutoCloser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	for timer := range a.pending {
		timer.Stop()
	}
	a.pending = make(map[*time.Timer]struct{})
}
