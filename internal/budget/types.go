package budget

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the qualitative budget status derived from a snapshot.
type State string

const (
	StateSafe     State = "safe"
	StateWarning  State = "warning"
	StateCritical State = "critical"
	StateExceeded State = "exceeded"
)

// Rank orders states by severity, safe lowest.
func (s State) Rank() int {
	switch s {
	case StateWarning:
		return 1
	case StateCritical:
		return 2
	case StateExceeded:
		return 3
	default:
		return 0
	}
}

// UnmarshalJSON implements json.Unmarshaler to normalize state to lowercase.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := State(strings.ToLower(raw))

	switch normalized {
	case StateSafe, StateWarning, StateCritical, StateExceeded:
		*s = normalized
		return nil
	default:
		return fmt.Errorf("invalid budget state: %s (must be safe, warning, critical, or exceeded)", raw)
	}
}

// MarshalJSON implements json.Marshaler to ensure lowercase output.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Classification is the derived view of one budget snapshot.
type Classification struct {
	Percentage int   `json:"percentage"`
	State      State `json:"state"`
}
