// Package timeline reconciles gaming session intervals into budget
// accounting figures. Concurrent sessions must not double-count toward
// the budget, so budget usage is computed as the union length of the
// closed session intervals, while total playtime keeps the raw
// per-session sums for history views. Every surface in the repository
// goes through this package; the aggregations are never re-derived
// elsewhere.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/playwarden/internal/backend"
)

// AccountingMode selects how a set of sessions is aggregated.
type AccountingMode string

const (
	// ModeBudgetUsage merges overlapping intervals so each wall-clock
	// instant counts at most once. Matches the service's budget deductions.
	ModeBudgetUsage AccountingMode = "budget-usage"

	// ModeTotalPlaytime sums each session's own recorded duration,
	// ignoring overlap. May exceed budget usage when sessions overlap.
	ModeTotalPlaytime AccountingMode = "total-playtime"
)

// ParseAccountingMode validates a mode string, defaulting empty input to
// budget usage.
func ParseAccountingMode(s string) (AccountingMode, error) {
	switch AccountingMode(s) {
	case "":
		return ModeBudgetUsage, nil
	case ModeBudgetUsage, ModeTotalPlaytime:
		return AccountingMode(s), nil
	default:
		return "", fmt.Errorf("unknown accounting mode: %q", s)
	}
}

type interval struct {
	start time.Time
	end   time.Time
}

// countable keeps the sessions that participate in historical
// accounting: closed, with a usable start time, and with an end that
// does not precede the start. Open sessions are handled separately as
// live active time, and garbage timestamps are excluded rather than
// rejected.
func countable(sessions []backend.Session) []backend.Session {
	out := make([]backend.Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.Closed() || s.StartTime.IsZero() {
			continue
		}
		if s.EndTime.Before(s.StartTime) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// MergeActiveTime computes the union length, in whole seconds, of the
// closed sessions' intervals. Overlapping spans are counted once;
// fully contained spans contribute nothing. This is the figure that
// should match the service's budget deductions.
func MergeActiveTime(sessions []backend.Session) int64 {
	eligible := countable(sessions)
	if len(eligible) == 0 {
		return 0
	}

	intervals := make([]interval, 0, len(eligible))
	for _, s := range eligible {
		intervals = append(intervals, interval{start: s.StartTime, end: *s.EndTime})
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].start.Before(intervals[j].start)
	})

	var total time.Duration
	currentEnd := intervals[0].start

	for i, iv := range intervals {
		switch {
		case i == 0:
			total += iv.end.Sub(iv.start)
			currentEnd = iv.end
		case !iv.start.Before(currentEnd):
			// No overlap with the covered region, possibly touching.
			total += iv.end.Sub(iv.start)
			currentEnd = iv.end
		case iv.end.After(currentEnd):
			// Partial overlap extending the covered region.
			total += iv.end.Sub(currentEnd)
			currentEnd = iv.end
		default:
			// Fully contained in the covered region.
		}
	}

	return int64(total.Seconds())
}

// TotalPlaytime sums the recorded duration of each closed session over
// the same filtered set MergeActiveTime uses. The recorded durations
// are trusted as-is rather than recomputed from timestamps.
func TotalPlaytime(sessions []backend.Session) int64 {
	var total int64
	for _, s := range countable(sessions) {
		total += *s.DurationSeconds
	}
	return total
}

// Aggregate applies the selected accounting mode to the session set.
func Aggregate(sessions []backend.Session, mode AccountingMode) int64 {
	if mode == ModeTotalPlaytime {
		return TotalPlaytime(sessions)
	}
	return MergeActiveTime(sessions)
}

// ActiveSpan reports how long an open session has been running as of
// now. Closed sessions and sessions starting in the future report zero.
func ActiveSpan(s backend.Session, now time.Time) time.Duration {
	if s.Closed() || s.StartTime.IsZero() {
		return 0
	}
	span := now.Sub(s.StartTime)
	if span < 0 {
		return 0
	}
	return span
}

// AnnotateConcurrency recomputes the concurrency flags across a
// snapshot from timestamp overlap alone. Open sessions are treated as
// extending to now. The returned slice is a copy; input records are
// never mutated.
func AnnotateConcurrency(sessions []backend.Session, now time.Time) []backend.Session {
	out := make([]backend.Session, len(sessions))
	copy(out, sessions)

	ends := make([]time.Time, len(out))
	for i, s := range out {
		if s.EndTime != nil {
			ends[i] = *s.EndTime
		} else {
			ends[i] = now
		}
	}

	for i := range out {
		out[i].IsConcurrent = false
		out[i].ConcurrentSessionIDs = nil
	}

	for i := range out {
		if out[i].StartTime.IsZero() {
			continue
		}
		for j := i + 1; j < len(out); j++ {
			if out[j].StartTime.IsZero() {
				continue
			}
			if out[i].StartTime.Before(ends[j]) && out[j].StartTime.Before(ends[i]) {
				out[i].IsConcurrent = true
				out[j].IsConcurrent = true
				if out[j].ID != "" {
					out[i].ConcurrentSessionIDs = append(out[i].ConcurrentSessionIDs, out[j].ID)
				}
				if out[i].ID != "" {
					out[j].ConcurrentSessionIDs = append(out[j].ConcurrentSessionIDs, out[i].ID)
				}
			}
		}
	}

	return out
}
