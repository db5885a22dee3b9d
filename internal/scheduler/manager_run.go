package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"callwave/internal/analysis"
	"callwave/internal/calls"
	"callwave/internal/events"
	"callwave/internal/logging"
	"callwave/internal/store"
)

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	m.logger.Info("scheduler started",
		logging.Int("workers", m.workers),
		logging.Duration("poll_interval", m.pollInterval))

	sem := make(chan struct{}, m.workers)
	var workerWG sync.WaitGroup
	defer workerWG.Wait()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := m.scanOnce(ctx, sem, &workerWG); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			m.logger.Error("scan failed", logging.Error(err))
			if !m.sleep(ctx, m.errorRetry) {
				return
			}
			continue
		}
		m.setLastError(nil)

		if !m.waitForWork(ctx) {
			return
		}
	}
}

// scanOnce reclaims stale claims and dispatches every pending call to a
// worker slot.
func (m *Manager) scanOnce(ctx context.Context, sem chan struct{}, workerWG *sync.WaitGroup) error {
	cutoff := time.Now().Add(-m.heartbeatTimeout)
	if reclaimed, err := m.store.ReclaimStaleProcessing(ctx, cutoff); err != nil {
		return fmt.Errorf("reclaim stale calls: %w", err)
	} else if reclaimed > 0 {
		m.logger.Warn("reclaimed stale calls", logging.Int64("count", reclaimed))
	}

	pending, err := m.store.PendingAnalysis(ctx)
	if err != nil {
		return fmt.Errorf("scan pending calls: %w", err)
	}

	for _, call := range pending {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		workerWG.Add(1)
		go func(callID string) {
			defer workerWG.Done()
			defer func() { <-sem }()
			m.processCall(ctx, callID)
		}(call.CallID)
	}
	return nil
}

// waitForWork blocks until the next poll tick, a nudge, or shutdown. Returns
// false when the scheduler should exit.
func (m *Manager) waitForWork(ctx context.Context) bool {
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-m.nudge:
		return true
	case <-timer.C:
		return true
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// processCall claims one call and drives it through analysis. The claim is
// the exclusivity point: losing the claim race is an expected no-op.
func (m *Manager) processCall(ctx context.Context, callID string) {
	logger := m.logger.With(logging.String(logging.FieldCallID, callID))

	if err := m.store.ClaimForAnalysis(ctx, callID); err != nil {
		if errors.Is(err, store.ErrClaimConflict) {
			logger.Debug("call already claimed, skipping")
			return
		}
		if errors.Is(err, store.ErrNotFound) || ctx.Err() != nil {
			return
		}
		logger.Error("failed to claim call", logging.Error(err))
		m.setLastError(err)
		return
	}

	logger.Info("claimed call for analysis")
	m.publish(events.CallUpdate(callID, calls.StatusProcessingAI, nil))

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var heartbeatWG sync.WaitGroup
	heartbeatWG.Add(1)
	go func() {
		defer heartbeatWG.Done()
		m.heartbeatLoop(heartbeatCtx, callID, logger)
	}()

	result, attempts, err := m.analyze(ctx, callID, logger)

	stopHeartbeat()
	heartbeatWG.Wait()

	if err != nil {
		m.finishFailed(ctx, callID, attempts, err, logger)
		return
	}
	m.finishSucceeded(ctx, callID, attempts, result, logger)
}

// analyze assembles the transcript input and runs the gateway under the
// retry policy.
func (m *Manager) analyze(ctx context.Context, callID string, logger *slog.Logger) (analysis.Result, int, error) {
	packets, err := m.store.Packets(ctx, callID)
	if err != nil {
		return analysis.Result{}, 0, fmt.Errorf("load packets: %w", err)
	}

	req := analysis.Request{
		CallID:     callID,
		Transcript: assembleTranscript(packets),
		Packets:    len(packets),
	}

	var result analysis.Result
	attempts, err := m.policy.Execute(ctx, logger, func(ctx context.Context) error {
		attemptResult, attemptErr := m.gateway.Analyze(ctx, req)
		if attemptErr != nil {
			return attemptErr
		}
		result = attemptResult
		return nil
	})
	if err != nil {
		return analysis.Result{}, attempts, err
	}
	return result, attempts, nil
}

// assembleTranscript concatenates packet payloads in sequence order.
func assembleTranscript(packets []*calls.Packet) string {
	var builder strings.Builder
	for _, packet := range packets {
		builder.Write(packet.Payload)
	}
	return builder.String()
}

func (m *Manager) finishSucceeded(ctx context.Context, callID string, attempts int, result analysis.Result, logger *slog.Logger) {
	writeCtx, cancel := m.writeContext(ctx)
	defer cancel()
	err := m.store.FinishAnalysis(writeCtx, callID, store.AnalysisResult{
		Transcription: result.Transcription,
		Sentiment:     result.Sentiment,
		Attempts:      int64(attempts),
	})
	if err != nil {
		logger.Error("failed to record analysis result", logging.Error(err))
		m.setLastError(err)
		return
	}

	m.recordProcessed()
	logger.Info("analysis completed",
		logging.Int(logging.FieldAttempt, attempts),
		logging.String("sentiment", result.Sentiment))

	m.publish(events.CallUpdate(callID, calls.StatusCompleted, map[string]any{
		"analysis_attempts": attempts,
	}))
	m.publish(events.AIResult(callID, result.Transcription, result.Sentiment))

	if err := m.notifier.NotifyAnalysisCompleted(writeCtx, callID, result.Sentiment, attempts); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
}

func (m *Manager) finishFailed(ctx context.Context, callID string, attempts int, analysisErr error, logger *slog.Logger) {
	if ctx.Err() != nil && errors.Is(analysisErr, ctx.Err()) {
		// Shutdown path: leave the claim alone so ReleaseAllProcessing or a
		// later reclaim returns it to completed.
		return
	}

	writeCtx, cancel := m.writeContext(ctx)
	defer cancel()
	if err := m.store.FailAnalysis(writeCtx, callID, int64(attempts), analysisErr.Error()); err != nil {
		logger.Error("failed to record analysis failure", logging.Error(err))
		m.setLastError(err)
		return
	}

	m.recordFailed()
	logger.Error("analysis failed",
		logging.Int(logging.FieldAttempt, attempts),
		logging.Error(analysisErr))

	m.publish(events.CallUpdate(callID, calls.StatusFailed, map[string]any{
		"analysis_attempts": attempts,
		"error":             analysisErr.Error(),
	}))

	if err := m.notifier.NotifyAnalysisFailed(writeCtx, callID, analysisErr.Error(), attempts); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

// heartbeatLoop refreshes the claim heartbeat until analysis concludes.
func (m *Manager) heartbeatLoop(ctx context.Context, callID string, logger *slog.Logger) {
	interval := m.heartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.UpdateHeartbeat(ctx, callID); err != nil && ctx.Err() == nil {
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

func (m *Manager) publish(event events.Event) {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.Publish(event)
}

// writeContext detaches result writes from the worker context so a shutdown
// mid-write still lands, within a short budget.
func (m *Manager) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), 5*time.Second)
}
