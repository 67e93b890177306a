package agent

import (
	"context"
	"time"

	"github.com/goodtune/playwarden/internal/alert"
	"github.com/goodtune/playwarden/internal/storage"
)

// alertRetentionDays is how much alert history the rollover keeps.
const alertRetentionDays = 90

// runRollover waits for local midnight and closes out the finished day.
func (a *Agent) runRollover() {
	defer a.wg.Done()

	for {
		now := a.clock.Now()
		next := nextMidnight(now)

		a.logger.Info().Time("next_rollover", next).Msg("Scheduled daily rollover")

		select {
		case <-time.After(next.Sub(now)):
			a.performRollover(context.Background())
		case <-a.stopChan:
			return
		}
	}
}

// nextMidnight returns the start of the next local day.
func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

// performRollover writes the finished day's summary from the last view,
// resets the notifier latches for the new day, and applies alert
// retention. The auto-close timers are left alone; an exceeded budget
// at midnight still closes games.
func (a *Agent) performRollover(ctx context.Context) {
	now := a.clock.Now()
	date := now.AddDate(0, 0, -1).Format(storage.DateFormat)

	a.mu.Lock()
	view := a.view
	hasView := a.hasView
	a.notifier = alert.NewState()
	a.mu.Unlock()

	a.logger.Info().Str("date", date).Msg("Performing daily rollover")

	if hasView {
		unused := view.Budget.RemainingTodayMinutes
		if unused < 0 {
			unused = 0
		}

		summary := storage.DailySummary{
			Date:                  date,
			MergedActiveSeconds:   view.MergedActiveSecondsToday,
			TotalPlaytimeSeconds:  view.TotalPlaytimeSecondsToday,
			SessionCount:          view.SessionsToday,
			UsedMinutes:           view.Budget.UsedTodayMinutes,
			TotalAvailableMinutes: view.Budget.TotalAvailableMinutes,
			UnusedMinutes:         unused,
		}
		if err := a.store.Summaries().Upsert(ctx, summary); err != nil {
			a.logger.Error().Err(err).Msg("Failed to write daily summary")
		}
	}

	cutoff := now.AddDate(0, 0, -alertRetentionDays)
	removed, err := a.store.Alerts().TrimBefore(ctx, cutoff)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to trim alert journal")
		return
	}

	a.logger.Info().
		Int("alerts_removed", removed).
		Str("cutoff", cutoff.Format(storage.DateFormat)).
		Msg("Daily rollover complete")
}
