package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callwave/internal/calls"
)

// Transition advances a call from one status to another with a
// compare-and-swap on the persisted status. The transition must be valid
// per the lifecycle table; a CAS that matches zero rows returns
// ErrClaimConflict when the call exists and ErrNotFound when it doesn't.
func (s *Store) Transition(ctx context.Context, callID string, from, to calls.Status) error {
	return s.transitionWith(ctx, callID, from, to, "", nil)
}

func (s *Store) transitionWith(ctx context.Context, callID string, from, to calls.Status, extraSet string, extraArgs []any) error {
	if _, err := calls.Transition(from, to); err != nil {
		return err
	}
	if from == to {
		// Idempotent no-op; the row is already there.
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE calls SET status = ?, updated_at = ?`
	args := []any{to, now}
	if extraSet != "" {
		query += ", " + extraSet
		args = append(args, extraArgs...)
	}
	query += ` WHERE call_id = ? AND status = ?`
	args = append(args, callID, from)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: the call is missing, another writer already moved it to
	// the target, the current state can't reach the target, or we lost a
	// race with a concurrent valid writer.
	call, err := s.GetByCallID(ctx, callID)
	if err != nil {
		return err
	}
	if call.Status != to && !calls.CanTransition(call.Status, to) {
		return &calls.InvalidTransitionError{From: call.Status, To: to}
	}
	return ErrClaimConflict
}

// CompleteCall marks an in-progress call as completed. Completing a call
// that is already completed is a no-op.
func (s *Store) CompleteCall(ctx context.Context, callID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := s.transitionWith(ctx, callID, calls.StatusInProgress, calls.StatusCompleted,
		"completed_at = ?", []any{now})
	if errors.Is(err, ErrClaimConflict) {
		call, getErr := s.GetByCallID(ctx, callID)
		if getErr == nil && call.Status == calls.StatusCompleted {
			return nil
		}
	}
	return err
}

// FailCall marks an in-progress call as failed with the given reason. Used
// when the completion signal reports the stream itself broke.
func (s *Store) FailCall(ctx context.Context, callID, reason string) error {
	return s.transitionWith(ctx, callID, calls.StatusInProgress, calls.StatusFailed,
		"error_message = ?", []any{nullableString(reason)})
}

// ArchiveCall moves a completed or failed call into the terminal archive.
func (s *Store) ArchiveCall(ctx context.Context, callID string) error {
	call, err := s.GetByCallID(ctx, callID)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.transitionWith(ctx, callID, call.Status, calls.StatusArchived,
		"archived_at = ?", []any{now})
}

// ClaimForAnalysis atomically claims a completed call for processing. The
// claim is the exclusivity point: exactly one caller wins, everyone else
// gets ErrClaimConflict and skips the call this tick.
func (s *Store) ClaimForAnalysis(ctx context.Context, callID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.transitionWith(ctx, callID, calls.StatusCompleted, calls.StatusProcessingAI,
		"last_heartbeat = ?, error_message = NULL", []any{now})
}

// AnalysisResult is the write-back payload after a successful analysis run.
type AnalysisResult struct {
	Transcription string
	Sentiment     string
	Attempts      int64
}

// FinishAnalysis records a successful analysis and returns the call to
// completed with its result attached.
func (s *Store) FinishAnalysis(ctx context.Context, callID string, result AnalysisResult) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.transitionWith(ctx, callID, calls.StatusProcessingAI, calls.StatusCompleted,
		"transcription = ?, sentiment = ?, analysis_attempts = ?, analyzed_at = ?, last_heartbeat = NULL, error_message = NULL",
		[]any{nullableString(result.Transcription), nullableString(result.Sentiment), result.Attempts, now})
}

// FailAnalysis records an exhausted or fatal analysis run.
func (s *Store) FailAnalysis(ctx context.Context, callID string, attempts int64, message string) error {
	return s.transitionWith(ctx, callID, calls.StatusProcessingAI, calls.StatusFailed,
		"analysis_attempts = ?, error_message = ?, last_heartbeat = NULL",
		[]any{attempts, nullableString(message)})
}

// UpdateHeartbeat refreshes the heartbeat for a call under analysis.
func (s *Store) UpdateHeartbeat(ctx context.Context, callID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE calls SET last_heartbeat = ?, updated_at = ? WHERE call_id = ? AND status = ?`,
		now,
		now,
		callID,
		calls.StatusProcessingAI,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns calls stuck in processing back to completed
// when their heartbeat predates the cutoff, so a crashed run is picked up
// again on the next scan.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE calls
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		calls.StatusCompleted,
		now,
		calls.StatusProcessingAI,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale calls: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseAllProcessing returns every in-flight analysis claim to completed.
// Used on shutdown: interrupted calls keep their attempt history and are
// picked up again by the next running scheduler.
func (s *Store) ReleaseAllProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE calls
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		calls.StatusCompleted,
		now,
		calls.StatusProcessingAI,
	)
	if err != nil {
		return 0, fmt.Errorf("release processing calls: %w", err)
	}
	return res.RowsAffected()
}
