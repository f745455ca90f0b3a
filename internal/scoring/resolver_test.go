package scoring_test

import (
	"testing"

	"github.com/p-n-ai/pai-unit/internal/scoring"
)

func strPtr(s string) *string { return &s }

func TestTable_Lookup(t *testing.T) {
	table := scoring.NewTable(map[int]*string{
		0:  strPtr("A"),
		5:  strPtr("B"),
		10: nil,
	})

	tests := []struct {
		name        string
		score       float64
		inverse     bool
		wantOutcome scoring.Outcome
		wantKey     int
		wantValue   string
	}{
		{"below first key", -1, false, scoring.NotFound, 0, ""},
		{"first band", 3, false, scoring.Found, 0, "A"},
		{"exact key", 5, false, scoring.Found, 5, "B"},
		{"second band", 7, false, scoring.Found, 5, "B"},
		{"null band", 10, false, scoring.FoundNull, 10, ""},
		{"above last key", 42, false, scoring.FoundNull, 10, ""},
		{"fractional score", 4.5, false, scoring.Found, 0, "A"},
		{"inverse picks smallest key above", 7, true, scoring.FoundNull, 10, ""},
		{"inverse exact key", 5, true, scoring.Found, 5, "B"},
		{"inverse low score", -3, true, scoring.Found, 0, "A"},
		{"inverse above last key", 11, true, scoring.NotFound, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Lookup(tt.score, tt.inverse)
			if got.Outcome != tt.wantOutcome {
				t.Fatalf("Outcome = %v, want %v", got.Outcome, tt.wantOutcome)
			}
			if tt.wantOutcome == scoring.NotFound {
				return
			}
			if got.Key != tt.wantKey {
				t.Errorf("Key = %d, want %d", got.Key, tt.wantKey)
			}
			if tt.wantOutcome == scoring.Found && *got.Value != tt.wantValue {
				t.Errorf("Value = %q, want %q", *got.Value, tt.wantValue)
			}
			if got.Present() != (tt.wantOutcome == scoring.Found) {
				t.Errorf("Present() = %v", got.Present())
			}
		})
	}
}

func TestTable_Empty(t *testing.T) {
	got := scoring.Resolve[string](nil, 3, false)
	if got.Outcome != scoring.NotFound {
		t.Errorf("Outcome = %v, want not-found", got.Outcome)
	}
}

func TestPassed(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		criteria scoring.Criteria
		want     bool
	}{
		{"meets threshold", 5, scoring.Criteria{Score: 5}, true},
		{"below threshold", 3, scoring.Criteria{Score: 5}, false},
		{"inverse at threshold", 5, scoring.Criteria{Score: 5, Inverse: true}, true},
		{"inverse above threshold", 6, scoring.Criteria{Score: 5, Inverse: true}, false},
		{"inverse below threshold", 1, scoring.Criteria{Score: 5, Inverse: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoring.Passed(tt.score, tt.criteria); got != tt.want {
				t.Errorf("Passed() = %v, want %v", got, tt.want)
			}
		})
	}
}
