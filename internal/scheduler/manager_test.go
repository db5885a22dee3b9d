package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"callwave/internal/analysis"
	"callwave/internal/calls"
	"callwave/internal/config"
	"callwave/internal/events"
	"callwave/internal/logging"
	"callwave/internal/store"
	"callwave/internal/testsupport"
)

func TestManagerAnalyzesCompletedCall(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedCall(t, st, "call-1", calls.StatusCompleted, 0, 1, 2)

	manager, notifier := newTestManager(t, cfg, st, 0)
	startManager(t, manager)

	call := waitForStatus(t, st, "call-1", calls.StatusCompleted, func(c *calls.Call) bool {
		return c.AnalyzedAt != nil
	})

	if call.Transcription == "" {
		t.Fatal("expected transcription to be set")
	}
	switch call.Sentiment {
	case analysis.SentimentPositive, analysis.SentimentNeutral, analysis.SentimentNegative:
	default:
		t.Fatalf("unexpected sentiment %q", call.Sentiment)
	}
	if call.AnalysisAttempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", call.AnalysisAttempts)
	}
	if got := manager.ProcessedCount(); got != 1 {
		t.Fatalf("ProcessedCount = %d, want 1", got)
	}

	waitFor(t, func() bool {
		return notifier.completedCount("call-1") == 1
	}, "completion notification")
}

func TestManagerFailsCallAfterExhaustion(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFailureRate(1.0))
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedCall(t, st, "call-2", calls.StatusCompleted, 0)

	manager, notifier := newTestManager(t, cfg, st, 1.0)
	startManager(t, manager)

	call := waitForStatus(t, st, "call-2", calls.StatusFailed, nil)

	if call.AnalysisAttempts != int64(cfg.Retry.MaxAttempts) {
		t.Fatalf("AnalysisAttempts = %d, want %d", call.AnalysisAttempts, cfg.Retry.MaxAttempts)
	}
	if call.ErrorMessage == "" {
		t.Fatal("expected an error message")
	}
	if call.Transcription != "" {
		t.Fatalf("failed call should have no transcription, got %q", call.Transcription)
	}
	if got := manager.FailedCount(); got != 1 {
		t.Fatalf("FailedCount = %d, want 1", got)
	}

	waitFor(t, func() bool {
		return notifier.failedCount("call-2") == 1
	}, "failure notification")
}

func TestManagerNudgeWakesScanLoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scheduler.PollInterval = 60 // only the nudge can wake it in time
	st := testsupport.MustOpenStore(t, cfg)

	manager, _ := newTestManager(t, cfg, st, 0)
	startManager(t, manager)

	// Let the initial scan finish before seeding so only the nudge remains.
	time.Sleep(50 * time.Millisecond)
	testsupport.SeedCall(t, st, "call-3", calls.StatusCompleted, 0, 1)
	manager.Nudge()

	waitForStatus(t, st, "call-3", calls.StatusCompleted, func(c *calls.Call) bool {
		return c.AnalyzedAt != nil
	})
}

func TestManagerPublishesLifecycleEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedCall(t, st, "call-4", calls.StatusCompleted, 0)

	broadcaster := events.NewBroadcaster(0)
	t.Cleanup(broadcaster.Close)
	sub := broadcaster.Subscribe()

	gateway := analysis.NewFlakyGateway(analysis.FlakyOptions{FailureRate: 0})
	manager := NewManagerWithNotifier(cfg, st, gateway, broadcaster, &recordingNotifier{}, logging.NewNop())
	startManager(t, manager)

	var seen []events.Event
	deadline := time.After(5 * time.Second)
	for !hasEventTypes(seen, events.TypeAIResult) {
		select {
		case event := <-sub.C:
			seen = append(seen, event)
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %d", len(seen))
		}
	}

	if !hasEventTypes(seen, events.TypeCallUpdate) {
		t.Fatal("expected a call_update event before the ai_result")
	}
	for _, event := range seen {
		if event.CallID != "call-4" {
			t.Fatalf("event for unexpected call %q", event.CallID)
		}
	}
}

func TestManagerReclaimsStaleClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scheduler.HeartbeatTimeout = 0.01
	st := testsupport.MustOpenStore(t, cfg)

	// A claim whose worker died: heartbeat ages past the timeout.
	testsupport.SeedCall(t, st, "call-5", calls.StatusProcessingAI, 0)
	time.Sleep(30 * time.Millisecond)

	manager, _ := newTestManager(t, cfg, st, 0)
	startManager(t, manager)

	waitForStatus(t, st, "call-5", calls.StatusCompleted, func(c *calls.Call) bool {
		return c.AnalyzedAt != nil
	})
}

func TestManagerStopReleasesInFlightClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFailureRate(1.0))
	cfg.Retry.BaseDelay = 5 // park the worker in backoff so Stop catches it mid-claim
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedCall(t, st, "call-interrupted", calls.StatusCompleted, 0, 1)

	manager, notifier := newTestManager(t, cfg, st, 1.0)
	startManager(t, manager)

	waitForStatus(t, st, "call-interrupted", calls.StatusProcessingAI, nil)
	manager.Stop()

	// The interrupted claim goes back to completed with its attempt budget
	// intact; nothing records a failure for it.
	call, err := st.GetByCallID(context.Background(), "call-interrupted")
	if err != nil {
		t.Fatalf("GetByCallID: %v", err)
	}
	if call.Status != calls.StatusCompleted {
		t.Fatalf("expected completed after Stop, got %s", call.Status)
	}
	if call.AnalysisAttempts != 0 {
		t.Fatalf("expected 0 recorded attempts, got %d", call.AnalysisAttempts)
	}
	if call.ErrorMessage != "" {
		t.Fatalf("expected no error message, got %q", call.ErrorMessage)
	}
	if call.AnalyzedAt != nil {
		t.Fatal("interrupted call must not be marked analyzed")
	}
	if notifier.failedCount("call-interrupted") != 0 {
		t.Fatal("no failure notification expected for an interrupted claim")
	}
	if got := manager.FailedCount(); got != 0 {
		t.Fatalf("FailedCount = %d, want 0", got)
	}
}

func TestManagerProcessesManyCallsConcurrently(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(4))
	st := testsupport.MustOpenStore(t, cfg)

	ids := []string{"call-a", "call-b", "call-c", "call-d", "call-e", "call-f"}
	for _, id := range ids {
		testsupport.SeedCall(t, st, id, calls.StatusCompleted, 0, 1)
	}

	manager, _ := newTestManager(t, cfg, st, 0)
	startManager(t, manager)

	for _, id := range ids {
		waitForStatus(t, st, id, calls.StatusCompleted, func(c *calls.Call) bool {
			return c.AnalyzedAt != nil
		})
	}
	if got := manager.ProcessedCount(); got != int64(len(ids)) {
		t.Fatalf("ProcessedCount = %d, want %d", got, len(ids))
	}
}

func TestManagerStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	manager, _ := newTestManager(t, cfg, st, 0)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}
	if !manager.Running() {
		t.Fatal("expected Running() true after Start")
	}

	manager.Stop()
	if manager.Running() {
		t.Fatal("expected Running() false after Stop")
	}
	manager.Stop() // idempotent
}

func TestManagerStatusReportsQueueStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedCall(t, st, "call-6", calls.StatusInProgress, 0)
	testsupport.SeedCall(t, st, "call-7", calls.StatusArchived, 0)

	manager, _ := newTestManager(t, cfg, st, 0)

	status := manager.Status(context.Background())
	if status.Running {
		t.Fatal("expected Running false before Start")
	}
	if status.QueueStats[calls.StatusInProgress] != 1 {
		t.Fatalf("in_progress count = %d, want 1", status.QueueStats[calls.StatusInProgress])
	}
	if status.QueueStats[calls.StatusArchived] != 1 {
		t.Fatalf("archived count = %d, want 1", status.QueueStats[calls.StatusArchived])
	}
}

func TestAssembleTranscriptOrdersBySequence(t *testing.T) {
	packets := []*calls.Packet{
		{Sequence: 0, Payload: []byte("hello ")},
		{Sequence: 1, Payload: []byte("world")},
	}
	if got := assembleTranscript(packets); got != "hello world" {
		t.Fatalf("assembleTranscript = %q", got)
	}
	if got := assembleTranscript(nil); got != "" {
		t.Fatalf("empty transcript = %q", got)
	}
}

func newTestManager(t *testing.T, cfg *config.Config, st *store.Store, failureRate float64) (*Manager, *recordingNotifier) {
	t.Helper()
	gateway := analysis.NewFlakyGateway(analysis.FlakyOptions{
		FailureRate: failureRate,
		MaxLatency:  time.Millisecond,
	})
	notifier := &recordingNotifier{}
	broadcaster := events.NewBroadcaster(0)
	t.Cleanup(broadcaster.Close)
	manager := NewManagerWithNotifier(cfg, st, gateway, broadcaster, notifier, logging.NewNop())
	return manager, notifier
}

func startManager(t *testing.T, manager *Manager) {
	t.Helper()
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(manager.Stop)
}

func waitForStatus(t *testing.T, st *store.Store, callID string, want calls.Status, extra func(*calls.Call) bool) *calls.Call {
	t.Helper()
	var last *calls.Call
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		call, err := st.GetByCallID(context.Background(), callID)
		if err == nil {
			last = call
			if call.Status == want && (extra == nil || extra(call)) {
				return call
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if last != nil {
		t.Fatalf("call %s never reached %s, last status %s (error %q)", callID, want, last.Status, last.ErrorMessage)
	}
	t.Fatalf("call %s never appeared", callID)
	return nil
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasEventTypes(seen []events.Event, eventType string) bool {
	for _, event := range seen {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	errors    []string
}

func (n *recordingNotifier) NotifyAnalysisCompleted(_ context.Context, callID, _ string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, callID)
	return nil
}

func (n *recordingNotifier) NotifyAnalysisFailed(_ context.Context, callID, _ string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, callID)
	return nil
}

func (n *recordingNotifier) NotifyDaemonStarted(context.Context) error { return nil }

func (n *recordingNotifier) NotifyDaemonStopped(context.Context, int64, int64) error { return nil }

func (n *recordingNotifier) NotifyError(_ context.Context, err error, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, err.Error())
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func (n *recordingNotifier) completedCount(callID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return countOf(n.completed, callID)
}

func (n *recordingNotifier) failedCount(callID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return countOf(n.failed, callID)
}

func countOf(items []string, want string) int {
	count := 0
	for _, item := range items {
		if strings.EqualFold(item, want) {
			count++
		}
	}
	return count
}
