package alert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the escalation level of a budget alert.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityExceeded Severity = "exceeded"
)

// Rank orders severities, none lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	case SeverityExceeded:
		return 3
	default:
		return 0
	}
}

// UnmarshalJSON implements json.Unmarshaler to normalize severity to lowercase.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := Severity(strings.ToLower(raw))

	switch normalized {
	case SeverityNone, SeverityWarning, SeverityCritical, SeverityExceeded:
		*s = normalized
		return nil
	default:
		return fmt.Errorf("invalid severity: %s (must be none, warning, critical, or exceeded)", raw)
	}
}

// MarshalJSON implements json.Marshaler to ensure lowercase output.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}
