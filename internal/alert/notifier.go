// Package alert escalates budget threshold alerts. The escalation rules
// live in a pure transition function over an explicit state value owned
// by the caller, so the same reading sequence always produces the same
// alert sequence and tests need no shared mutable cells.
package alert

// Remaining-minute thresholds for escalation.
const (
	warningThresholdMinutes  = 5
	criticalThresholdMinutes = 1
)

// State is the notifier's full state between readings: the severity
// currently shown plus one fire-once latch per threshold. The zero
// value is not ready to use; start from NewState.
type State struct {
	Severity Severity `json:"severity"`

	warningFired  bool
	criticalFired bool
	exceededFired bool
}

// NewState returns the initial notifier state for a monitoring run.
func NewState() State {
	return State{Severity: SeverityNone}
}

// Event reports what a transition asks the caller to do.
type Event struct {
	// Fired is the severity of the alert that became current this
	// reading, SeverityNone when nothing new fired.
	Fired Severity

	// Recovered is set when the active alert was dismissed because the
	// budget rose back above its threshold.
	Recovered bool

	// AutoClose is set on each distinct entry into the exceeded state;
	// the caller arms the deferred game-close action.
	AutoClose bool
}

// Transition feeds one remaining-minutes reading through the escalation
// rules and returns the next state.
//
// Each threshold fires at most once per entry: the latch sets when the
// threshold fires and clears only when remaining rises back above that
// threshold. Recovery above the threshold of the active alert dismisses
// it back to none. A higher severity is never downgraded by a lower
// threshold becoming true while the budget is still below the higher
// threshold.
func Transition(s State, remainingMinutes int) (State, Event) {
	ev := Event{Fired: SeverityNone}

	// Recovery pass: clear latches for every threshold the budget has
	// risen back above, dismissing the active alert if it was theirs.
	if remainingMinutes > 0 && s.exceededFired {
		s.exceededFired = false
		if s.Severity == SeverityExceeded {
			s.Severity = SeverityNone
			ev.Recovered = true
		}
	}
	if remainingMinutes > criticalThresholdMinutes && s.criticalFired {
		s.criticalFired = false
		if s.Severity == SeverityCritical {
			s.Severity = SeverityNone
			ev.Recovered = true
		}
	}
	if remainingMinutes > warningThresholdMinutes && s.warningFired {
		s.warningFired = false
		if s.Severity == SeverityWarning {
			s.Severity = SeverityNone
			ev.Recovered = true
		}
	}

	// Escalation pass, most severe first.
	switch {
	case remainingMinutes <= 0:
		if !s.exceededFired {
			s.exceededFired = true
			s.Severity = SeverityExceeded
			ev.Fired = SeverityExceeded
			ev.AutoClose = true
		}
	case remainingMinutes <= criticalThresholdMinutes:
		if !s.criticalFired && s.Severity.Rank() < SeverityCritical.Rank() {
			s.criticalFired = true
			s.Severity = SeverityCritical
			ev.Fired = SeverityCritical
		}
	case remainingMinutes <= warningThresholdMinutes:
		if !s.warningFired && s.Severity.Rank() < SeverityWarning.Rank() {
			s.warningFired = true
			s.Severity = SeverityWarning
			ev.Fired = SeverityWarning
		}
	}

	return s, ev
}
