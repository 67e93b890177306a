package budget

import "strings"

// Minutes of learning required to earn one minute of gaming time, by
// activity type.
var rewardDivisors = map[string]int{
	"coding":   4,
	"course":   4,
	"exercise": 3,
	"reading":  6,
}

const defaultRewardDivisor = 5

// EarnedMinutes previews the gaming minutes a learning activity earns.
// The lookup is case-insensitive and unknown activity types use the
// default rate. The monitor service computes the authoritative reward
// when the activity is submitted; this mirrors its table for client-side
// display.
func EarnedMinutes(activityType string, durationMinutes int) int {
	if durationMinutes <= 0 {
		return 0
	}

	divisor, ok := rewardDivisors[strings.ToLower(activityType)]
	if !ok {
		divisor = defaultRewardDivisor
	}

	return durationMinutes / divisor
}
