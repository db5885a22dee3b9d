package testsupport

import (
	"context"
	"testing"

	"callwave/internal/calls"
	"callwave/internal/config"
	"callwave/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedCall inserts a call with the given packet sequences and drives it to
// the requested status.
func SeedCall(t testing.TB, st *store.Store, callID string, status calls.Status, sequences ...int64) *calls.Call {
	t.Helper()

	ctx := context.Background()
	if len(sequences) == 0 {
		sequences = []int64{0}
	}
	for _, seq := range sequences {
		if _, _, err := st.AddPacket(ctx, callID, seq, []byte("payload"), 0); err != nil {
			t.Fatalf("AddPacket: %v", err)
		}
	}

	switch status {
	case calls.StatusInProgress:
	case calls.StatusCompleted:
		mustTransition(t, st.CompleteCall(ctx, callID))
	case calls.StatusProcessingAI:
		mustTransition(t, st.CompleteCall(ctx, callID))
		mustTransition(t, st.ClaimForAnalysis(ctx, callID))
	case calls.StatusFailed:
		mustTransition(t, st.CompleteCall(ctx, callID))
		mustTransition(t, st.ClaimForAnalysis(ctx, callID))
		mustTransition(t, st.FailAnalysis(ctx, callID, 1, "seeded failure"))
	case calls.StatusArchived:
		mustTransition(t, st.CompleteCall(ctx, callID))
		mustTransition(t, st.ArchiveCall(ctx, callID))
	default:
		t.Fatalf("unknown seed status %q", status)
	}

	call, err := st.GetByCallID(ctx, callID)
	if err != nil {
		t.Fatalf("GetByCallID: %v", err)
	}
	return call
}

func mustTransition(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed transition: %v", err)
	}
}
