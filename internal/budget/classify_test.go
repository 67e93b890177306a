package budget

import (
	"encoding/json"
	"testing"

	"github.com/goodtune/playwarden/internal/backend"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		used           int
		total          int
		wantPercentage int
		wantState      State
	}{
		{name: "half used is safe", used: 60, total: 120, wantPercentage: 50, wantState: StateSafe},
		{name: "warning threshold at 75", used: 90, total: 120, wantPercentage: 75, wantState: StateWarning},
		{name: "just under critical", used: 107, total: 120, wantPercentage: 89, wantState: StateWarning},
		{name: "critical rounds up from 91.67", used: 110, total: 120, wantPercentage: 92, wantState: StateCritical},
		{name: "exactly at allowance is exceeded", used: 120, total: 120, wantPercentage: 100, wantState: StateExceeded},
		{name: "over budget is exceeded", used: 130, total: 120, wantPercentage: 108, wantState: StateExceeded},
		{name: "zero total avoids division by zero", used: 45, total: 0, wantPercentage: 0, wantState: StateSafe},
		{name: "nothing used", used: 0, total: 120, wantPercentage: 0, wantState: StateSafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(backend.BudgetStatus{
				UsedTodayMinutes:      tt.used,
				TotalAvailableMinutes: tt.total,
			})
			if got.Percentage != tt.wantPercentage {
				t.Errorf("Classify().Percentage = %d, want %d", got.Percentage, tt.wantPercentage)
			}
			if got.State != tt.wantState {
				t.Errorf("Classify().State = %s, want %s", got.State, tt.wantState)
			}
		})
	}
}

func TestStateJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    State
		wantErr bool
	}{
		{name: "lowercase", input: `"safe"`, want: StateSafe},
		{name: "mixed case normalizes", input: `"Warning"`, want: StateWarning},
		{name: "exceeded", input: `"exceeded"`, want: StateExceeded},
		{name: "unknown state", input: `"doomed"`, wantErr: true},
		{name: "not a string", input: `7`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s State
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s, got %s", tt.input, s)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s != tt.want {
				t.Errorf("unmarshal %s = %s, want %s", tt.input, s, tt.want)
			}
		})
	}
}

func TestStateRankOrdering(t *testing.T) {
	ordered := []State{StateSafe, StateWarning, StateCritical, StateExceeded}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Errorf("expected %s < %s by rank", ordered[i-1], ordered[i])
		}
	}
}
