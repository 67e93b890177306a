package timeline

import "fmt"

// FormatDuration renders a second count as a compact human string:
// "42s", "5m", "5m 30s", "2h", "2h 15m". Seconds are dropped once the
// total reaches an hour. Negative input is not produced by callers;
// clamp upstream.
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}

	if totalSeconds < 3600 {
		minutes := totalSeconds / 60
		seconds := totalSeconds % 60
		if seconds > 0 {
			return fmt.Sprintf("%dm %ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	if minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}
