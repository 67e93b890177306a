// Package budget classifies budget snapshots and prices learning
// rewards. Everything here is a pure function over the snapshot values;
// over-budget and negative remaining minutes are ordinary inputs, never
// errors.
package budget

import (
	"math"

	"github.com/goodtune/playwarden/internal/backend"
)

// Classification thresholds, evaluated high to low.
const (
	exceededPercent = 100
	criticalPercent = 90
	warningPercent  = 75
)

// Classify maps a budget snapshot to a usage percentage and state.
// A zero total allowance classifies as 0% safe rather than dividing by
// zero.
func Classify(s backend.BudgetStatus) Classification {
	if s.TotalAvailableMinutes == 0 {
		return Classification{Percentage: 0, State: StateSafe}
	}

	percentage := int(math.Round(float64(s.UsedTodayMinutes) / float64(s.TotalAvailableMinutes) * 100))

	var state State
	switch {
	case percentage >= exceededPercent:
		state = StateExceeded
	case percentage >= criticalPercent:
		state = StateCritical
	case percentage >= warningPercent:
		state = StateWarning
	default:
		state = StateSafe
	}

	return Classification{Percentage: percentage, State: state}
}
