package timeline

import (
	"testing"
	"time"

	"github.com/goodtune/playwarden/internal/backend"
)

func closedSession(t *testing.T, id string, start, end time.Time) backend.Session {
	t.Helper()
	seconds := int64(end.Sub(start).Seconds())
	return backend.Session{
		ID:              id,
		GameName:        "Test Game",
		ProcessName:     "testgame.exe",
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: &seconds,
	}
}

func openSession(id string, start time.Time) backend.Session {
	return backend.Session{
		ID:          id,
		GameName:    "Test Game",
		ProcessName: "testgame.exe",
		StartTime:   start,
	}
}

func TestMergeActiveTime(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sessions func(t *testing.T) []backend.Session
		want     int64
	}{
		{
			name:     "empty input",
			sessions: func(t *testing.T) []backend.Session { return nil },
			want:     0,
		},
		{
			name: "single session counts its full span",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					closedSession(t, "a", base, base.Add(30*time.Minute)),
				}
			},
			want: 1800,
		},
		{
			name: "disjoint sessions are additive",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					closedSession(t, "a", base, base.Add(time.Hour)),
					closedSession(t, "b", base.Add(2*time.Hour), base.Add(3*time.Hour)),
				}
			},
			want: 7200,
		},
		{
			name: "partial overlap counts the union",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					closedSession(t, "a", base, base.Add(time.Hour)),
					closedSession(t, "b", base.Add(30*time.Minute), base.Add(90*time.Minute)),
				}
			},
			want: 5400,
		},
		{
			name: "contained session adds nothing",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					closedSession(t, "a", base, base.Add(2*time.Hour)),
					closedSession(t, "b", base.Add(15*time.Minute), base.Add(45*time.Minute)),
				}
			},
			want: 7200,
		},
		{
			name: "touching sessions do not overlap",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					closedSession(t, "a", base, base.Add(time.Hour)),
					closedSession(t, "b", base.Add(time.Hour), base.Add(2*time.Hour)),
				}
			},
			want: 7200,
		},
		{
			name: "unsorted input is sorted before the sweep",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					closedSession(t, "b", base.Add(30*time.Minute), base.Add(90*time.Minute)),
					closedSession(t, "a", base, base.Add(time.Hour)),
				}
			},
			want: 5400,
		},
		{
			name: "open sessions are excluded",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					openSession("a", base),
					openSession("b", base.Add(time.Hour)),
				}
			},
			want: 0,
		},
		{
			name: "mixed open and closed counts only closed",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					openSession("a", base),
					closedSession(t, "b", base.Add(time.Hour), base.Add(2*time.Hour)),
				}
			},
			want: 3600,
		},
		{
			name: "zero-length session contributes nothing",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					closedSession(t, "a", base, base),
					closedSession(t, "b", base, base.Add(time.Hour)),
				}
			},
			want: 3600,
		},
		{
			name: "missing start time is excluded",
			sessions: func(t *testing.T) []backend.Session {
				s := closedSession(t, "a", base, base.Add(time.Hour))
				s.StartTime = time.Time{}
				return []backend.Session{
					s,
					closedSession(t, "b", base, base.Add(30*time.Minute)),
				}
			},
			want: 1800,
		},
		{
			name: "end before start is excluded",
			sessions: func(t *testing.T) []backend.Session {
				end := base.Add(-time.Hour)
				seconds := int64(3600)
				return []backend.Session{
					{ID: "a", StartTime: base, EndTime: &end, DurationSeconds: &seconds},
					closedSession(t, "b", base, base.Add(30*time.Minute)),
				}
			},
			want: 1800,
		},
		{
			name: "three overlapping sessions count the covered hour once",
			sessions: func(t *testing.T) []backend.Session {
				return []backend.Session{
					closedSession(t, "a", base, base.Add(time.Hour)),
					closedSession(t, "b", base.Add(10*time.Minute), base.Add(40*time.Minute)),
					closedSession(t, "c", base.Add(20*time.Minute), base.Add(time.Hour)),
				}
			},
			want: 3600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeActiveTime(tt.sessions(t))
			if got != tt.want {
				t.Errorf("MergeActiveTime() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTotalPlaytimeTrustsRecordedDurations(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// The recorded duration disagrees with the timestamps on purpose;
	// the recorded value wins.
	end := base.Add(time.Hour)
	recorded := int64(3000)
	skewed := backend.Session{ID: "a", StartTime: base, EndTime: &end, DurationSeconds: &recorded}

	sessions := []backend.Session{
		skewed,
		closedSession(t, "b", base.Add(30*time.Minute), base.Add(90*time.Minute)),
		openSession("c", base),
	}

	if got, want := TotalPlaytime(sessions), int64(3000+3600); got != want {
		t.Errorf("TotalPlaytime() = %d, want %d", got, want)
	}
}

func TestTotalPlaytimeExceedsMergedForOverlap(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sessions := []backend.Session{
		closedSession(t, "a", base, base.Add(time.Hour)),
		closedSession(t, "b", base.Add(30*time.Minute), base.Add(90*time.Minute)),
	}

	merged := MergeActiveTime(sessions)
	playtime := TotalPlaytime(sessions)

	if merged != 5400 {
		t.Errorf("MergeActiveTime() = %d, want 5400", merged)
	}
	if playtime != 7200 {
		t.Errorf("TotalPlaytime() = %d, want 7200", playtime)
	}
}

func TestAggregate(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sessions := []backend.Session{
		closedSession(t, "a", base, base.Add(time.Hour)),
		closedSession(t, "b", base.Add(30*time.Minute), base.Add(90*time.Minute)),
	}

	if got := Aggregate(sessions, ModeBudgetUsage); got != 5400 {
		t.Errorf("Aggregate(budget-usage) = %d, want 5400", got)
	}
	if got := Aggregate(sessions, ModeTotalPlaytime); got != 7200 {
		t.Errorf("Aggregate(total-playtime) = %d, want 7200", got)
	}
}

func TestParseAccountingMode(t *testing.T) {
	tests := []struct {
		input   string
		want    AccountingMode
		wantErr bool
	}{
		{input: "", want: ModeBudgetUsage},
		{input: "budget-usage", want: ModeBudgetUsage},
		{input: "total-playtime", want: ModeTotalPlaytime},
		{input: "raw", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAccountingMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAccountingMode(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAccountingMode(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAccountingMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestActiveSpan(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session backend.Session
		want    time.Duration
	}{
		{
			name:    "open session measures against now",
			session: openSession("a", now.Add(-25*time.Minute)),
			want:    25 * time.Minute,
		},
		{
			name: "closed session reports zero",
			session: func() backend.Session {
				end := now.Add(-time.Hour)
				seconds := int64(600)
				return backend.Session{ID: "a", StartTime: now.Add(-70 * time.Minute), EndTime: &end, DurationSeconds: &seconds}
			}(),
			want: 0,
		},
		{
			name:    "future start clamps to zero",
			session: openSession("a", now.Add(5*time.Minute)),
			want:    0,
		},
		{
			name:    "missing start reports zero",
			session: backend.Session{ID: "a"},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActiveSpan(tt.session, now); got != tt.want {
				t.Errorf("ActiveSpan() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAnnotateConcurrency(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	base := now.Add(-2 * time.Hour)

	overlapA := closedSession(t, "a", base, base.Add(time.Hour))
	overlapB := closedSession(t, "b", base.Add(30*time.Minute), base.Add(90*time.Minute))
	lone := closedSession(t, "c", base.Add(100*time.Minute), base.Add(110*time.Minute))
	open := openSession("d", base.Add(105*time.Minute))

	annotated := AnnotateConcurrency([]backend.Session{overlapA, overlapB, lone, open}, now)

	byID := make(map[string]backend.Session, len(annotated))
	for _, s := range annotated {
		byID[s.ID] = s
	}

	if !byID["a"].IsConcurrent || !byID["b"].IsConcurrent {
		t.Errorf("overlapping sessions not marked concurrent: a=%v b=%v", byID["a"].IsConcurrent, byID["b"].IsConcurrent)
	}
	if got := byID["a"].ConcurrentSessionIDs; len(got) != 1 || got[0] != "b" {
		t.Errorf("session a concurrent ids = %v, want [b]", got)
	}

	// The open session extends to now and overlaps c's tail.
	if !byID["c"].IsConcurrent || !byID["d"].IsConcurrent {
		t.Errorf("open-session overlap not marked: c=%v d=%v", byID["c"].IsConcurrent, byID["d"].IsConcurrent)
	}
	if byID["a"].IsConcurrent && len(byID["a"].ConcurrentSessionIDs) != 1 {
		t.Errorf("session a should only overlap b, got %v", byID["a"].ConcurrentSessionIDs)
	}

	// Input records stay untouched.
	if overlapA.IsConcurrent || overlapB.IsConcurrent {
		t.Error("AnnotateConcurrency mutated its input")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{seconds: 0, want: "0s"},
		{seconds: 1, want: "1s"},
		{seconds: 59, want: "59s"},
		{seconds: 60, want: "1m"},
		{seconds: 61, want: "1m 1s"},
		{seconds: 90, want: "1m 30s"},
		{seconds: 3599, want: "59m 59s"},
		{seconds: 3600, want: "1h"},
		{seconds: 3660, want: "1h 1m"},
		{seconds: 3661, want: "1h 1m"},
		{seconds: 7200, want: "2h"},
		{seconds: 9000, want: "2h 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}
