package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"callwave/internal/calls"
)

type mockCallReader struct {
	records   []*calls.Call
	sequences map[string][]int64
	stats     map[calls.Status]int
	callErr   error
	seqErr    error
	statsErr  error
}

func (m *mockCallReader) GetByCallID(_ context.Context, callID string) (*calls.Call, error) {
	if m.callErr != nil {
		return nil, m.callErr
	}
	for _, call := range m.records {
		if call.CallID == callID {
			return call, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockCallReader) ReceivedSequences(_ context.Context, callID string) ([]int64, error) {
	return m.sequences[callID], m.seqErr
}

func (m *mockCallReader) List(context.Context, int, ...calls.Status) ([]*calls.Call, error) {
	return m.records, m.callErr
}

func (m *mockCallReader) Stats(context.Context) (map[calls.Status]int, error) {
	return m.stats, m.statsErr
}

func TestCallService_DescribeComputesMissing(t *testing.T) {
	now := time.Now().UTC()
	reader := &mockCallReader{
		records: []*calls.Call{{
			CallID:          "call-1",
			Status:          calls.StatusInProgress,
			TotalPackets:    4,
			ReceivedUnique:  4,
			HighestSequence: 4,
			CreatedAt:       now,
			UpdatedAt:       now,
		}},
		sequences: map[string][]int64{"call-1": {0, 1, 3, 4}},
	}
	svc := NewCallService(reader)

	view, err := svc.Describe(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if view == nil {
		t.Fatal("Describe returned nil view")
	}
	if view.State != string(calls.StatusInProgress) {
		t.Fatalf("unexpected state: %q", view.State)
	}
	if len(view.MissingSequences) != 1 || view.MissingSequences[0] != 2 {
		t.Fatalf("unexpected missing set: %v", view.MissingSequences)
	}
	if view.MissingCount != 1 {
		t.Fatalf("unexpected missing count: %d", view.MissingCount)
	}
	if view.CreatedAt == "" || view.UpdatedAt == "" {
		t.Fatal("expected timestamps to be formatted")
	}
}

func TestCallService_DescribeError(t *testing.T) {
	errSentinel := errors.New("boom")
	svc := NewCallService(&mockCallReader{callErr: errSentinel})
	_, err := svc.Describe(context.Background(), "call-1")
	if !errors.Is(err, errSentinel) {
		t.Fatalf("expected error %v, got %v", errSentinel, err)
	}
}

func TestCallService_List(t *testing.T) {
	reader := &mockCallReader{
		records: []*calls.Call{
			{CallID: "call-1", Status: calls.StatusCompleted, HighestSequence: 1},
			{CallID: "call-2", Status: calls.StatusFailed, HighestSequence: 2},
		},
		sequences: map[string][]int64{
			"call-1": {0, 1},
			"call-2": {0, 2},
		},
	}
	svc := NewCallService(reader)

	got, err := svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected view count: %d", len(got))
	}
	if got[0].MissingCount != 0 {
		t.Fatalf("call-1 missing count = %d, want 0", got[0].MissingCount)
	}
	if len(got[1].MissingSequences) != 1 || got[1].MissingSequences[0] != 1 {
		t.Fatalf("call-2 missing set = %v", got[1].MissingSequences)
	}
}

func TestCallService_Stats(t *testing.T) {
	svc := NewCallService(&mockCallReader{stats: map[calls.Status]int{
		calls.StatusInProgress: 2,
		calls.StatusFailed:     1,
	}})
	got, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if got[string(calls.StatusInProgress)] != 2 {
		t.Fatalf("in_progress count = %d, want 2", got[string(calls.StatusInProgress)])
	}
	if got[string(calls.StatusFailed)] != 1 {
		t.Fatalf("failed count = %d, want 1", got[string(calls.StatusFailed)])
	}
}
