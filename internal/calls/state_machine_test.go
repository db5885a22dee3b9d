package calls

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name  string
		from  Status
		to    Status
		valid bool
	}{
		{"complete", StatusInProgress, StatusCompleted, true},
		{"complete with error", StatusInProgress, StatusFailed, true},
		{"scheduler pickup", StatusCompleted, StatusProcessingAI, true},
		{"analysis success", StatusProcessingAI, StatusCompleted, true},
		{"analysis exhausted", StatusProcessingAI, StatusFailed, true},
		{"archive completed", StatusCompleted, StatusArchived, true},
		{"archive failed", StatusFailed, StatusArchived, true},
		{"skip completion", StatusInProgress, StatusProcessingAI, false},
		{"skip to archive", StatusInProgress, StatusArchived, false},
		{"reopen completed", StatusCompleted, StatusInProgress, false},
		{"archive processing", StatusProcessingAI, StatusArchived, false},
		{"retry failed", StatusFailed, StatusCompleted, false},
		{"unarchive", StatusArchived, StatusInProgress, false},
		{"archived to completed", StatusArchived, StatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.from, tc.to)
			if tc.valid {
				if err != nil {
					t.Fatalf("Transition(%s, %s) unexpected error: %v", tc.from, tc.to, err)
				}
				if got != tc.to {
					t.Fatalf("Transition(%s, %s) = %s, want %s", tc.from, tc.to, got, tc.to)
				}
				return
			}
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("Transition(%s, %s) expected InvalidTransitionError, got %v", tc.from, tc.to, err)
			}
			if got != tc.from {
				t.Fatalf("rejected transition must not change state: got %s, want %s", got, tc.from)
			}
		})
	}
}

func TestTransitionSameStateIsIdempotent(t *testing.T) {
	for _, status := range AllStatuses() {
		got, err := Transition(status, status)
		if err != nil {
			t.Fatalf("Transition(%s, %s) unexpected error: %v", status, status, err)
		}
		if got != status {
			t.Fatalf("Transition(%s, %s) = %s", status, status, got)
		}
	}
}

func TestLifecycleReachesArchivedInFourSteps(t *testing.T) {
	path := []Status{StatusCompleted, StatusProcessingAI, StatusCompleted, StatusArchived}
	current := StatusInProgress
	for i, next := range path {
		got, err := Transition(current, next)
		if err != nil {
			t.Fatalf("step %d (%s -> %s): %v", i+1, current, next, err)
		}
		current = got
	}
	if current != StatusArchived {
		t.Fatalf("expected ARCHIVED after %d steps, got %s", len(path), current)
	}
	if !current.IsTerminal() {
		t.Fatal("archived status must be terminal")
	}
	if next := ValidNext(StatusArchived); next != nil {
		t.Fatalf("archived must have no successors, got %v", next)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus(" Processing_AI "); !ok || status != StatusProcessingAI {
		t.Fatalf("ParseStatus normalization failed: %q %v", status, ok)
	}
	if _, ok := ParseStatus("ringing"); ok {
		t.Fatal("unknown status must not parse")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("empty status must not parse")
	}
}

func TestMissingSequences(t *testing.T) {
	cases := []struct {
		name     string
		received []int64
		highest  int64
		want     []int64
	}{
		{"contiguous", []int64{0, 1, 2, 3}, 3, nil},
		{"single gap", []int64{0, 1, 3, 4}, 4, []int64{2}},
		{"leading gap", []int64{5}, 5, []int64{0, 1, 2, 3, 4}},
		{"duplicates ignored", []int64{0, 0, 2, 2}, 2, []int64{1}},
		{"only zero", []int64{0}, 0, nil},
		{"no packets", nil, -1, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MissingSequences(tc.received, tc.highest)
			if len(got) != len(tc.want) {
				t.Fatalf("MissingSequences = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("MissingSequences = %v, want %v", got, tc.want)
				}
			}
		})
	}
}
