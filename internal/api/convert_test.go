package api

import (
	"testing"
	"time"

	"callwave/internal/calls"
)

func TestFromCallFormatsOptionalTimes(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	completed := now.Add(time.Minute)
	call := &calls.Call{
		CallID:           "call-1",
		Status:           calls.StatusCompleted,
		TotalPackets:     5,
		ReceivedUnique:   4,
		HighestSequence:  4,
		Transcription:    "hello",
		Sentiment:        "positive",
		AnalysisAttempts: 2,
		CreatedAt:        now,
		UpdatedAt:        completed,
		CompletedAt:      &completed,
	}

	view := FromCall(call, []int64{3})
	if view.CallID != "call-1" || view.State != "completed" {
		t.Fatalf("unexpected identity fields: %+v", view)
	}
	if view.CompletedAt == "" {
		t.Fatal("expected completedAt to be set")
	}
	if view.ArchivedAt != "" || view.AnalyzedAt != "" {
		t.Fatal("unset optional times should render empty")
	}
	if view.MissingCount != 1 {
		t.Fatalf("missing count = %d, want 1", view.MissingCount)
	}
	if parsed := ParseTime(view.CreatedAt); !parsed.Equal(now) {
		t.Fatalf("round trip createdAt = %v, want %v", parsed, now)
	}
}

func TestFromCallNil(t *testing.T) {
	view := FromCall(nil, nil)
	if view.CallID != "" || view.State != "" {
		t.Fatalf("nil call should produce zero view, got %+v", view)
	}
}

func TestFromCallEmptyMissingRendersAsList(t *testing.T) {
	view := FromCall(&calls.Call{CallID: "call-2"}, nil)
	if view.MissingSequences == nil {
		t.Fatal("missing sequences should be an empty list, not null")
	}
	if len(view.MissingSequences) != 0 {
		t.Fatalf("unexpected missing set: %v", view.MissingSequences)
	}
}

func TestMergeStats(t *testing.T) {
	got := MergeStats(map[calls.Status]int{
		calls.StatusInProgress: 3,
		calls.StatusArchived:   1,
	})
	if got["in_progress"] != 3 || got["archived"] != 1 {
		t.Fatalf("unexpected merged stats: %v", got)
	}
}
