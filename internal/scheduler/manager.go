package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"callwave/internal/analysis"
	"callwave/internal/calls"
	"callwave/internal/config"
	"callwave/internal/events"
	"callwave/internal/logging"
	"callwave/internal/notifications"
	"callwave/internal/retry"
	"callwave/internal/store"
)

// Manager coordinates background analysis of completed calls.
type Manager struct {
	cfg         *config.Config
	store       *store.Store
	gateway     analysis.Gateway
	policy      retry.Policy
	broadcaster *events.Broadcaster
	notifier    notifications.Service
	logger      *slog.Logger

	pollInterval      time.Duration
	errorRetry        time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	workers           int

	nudge chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	processed int64
	failed    int64
	lastErr   error
}

// NewManager constructs a scheduler using the default notifier.
func NewManager(cfg *config.Config, st *store.Store, gateway analysis.Gateway, broadcaster *events.Broadcaster, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, st, gateway, broadcaster, notifications.NewService(cfg), logger)
}

// NewManagerWithNotifier constructs a scheduler with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, st *store.Store, gateway analysis.Gateway, broadcaster *events.Broadcaster, notifier notifications.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	workers := cfg.Scheduler.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		cfg:               cfg,
		store:             st,
		gateway:           gateway,
		policy:            retry.FromConfig(cfg.Retry),
		broadcaster:       broadcaster,
		notifier:          notifier,
		logger:            logging.NewComponentLogger(logger, "scheduler"),
		pollInterval:      cfg.Scheduler.PollIntervalDuration(),
		errorRetry:        cfg.Scheduler.ErrorRetryIntervalDuration(),
		heartbeatInterval: cfg.Scheduler.HeartbeatIntervalDuration(),
		heartbeatTimeout:  cfg.Scheduler.HeartbeatTimeoutDuration(),
		workers:           workers,
		nudge:             make(chan struct{}, 1),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight workers.
// Calls still claimed afterward go back to completed so the next running
// scheduler picks them up with their attempt budget intact.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if count, err := m.store.ReleaseAllProcessing(ctx); err != nil {
		m.logger.Warn("failed to release claimed calls on shutdown", logging.Error(err))
	} else if count > 0 {
		m.logger.Info("released claimed calls on shutdown", logging.Int64("count", count))
	}
}

// Running reports whether the background loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Nudge wakes the scan loop without waiting for the next poll tick. Safe to
// call from any goroutine; extra nudges coalesce.
func (m *Manager) Nudge() {
	select {
	case m.nudge <- struct{}{}:
	default:
	}
}

// ProcessedCount returns how many calls finished analysis successfully.
func (m *Manager) ProcessedCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.processed
}

// FailedCount returns how many calls exhausted or fatally failed analysis.
func (m *Manager) FailedCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failed
}

// StatusSummary represents lightweight scheduler diagnostics.
type StatusSummary struct {
	Running        bool
	ProcessedCount int64
	FailedCount    int64
	LastError      string
	QueueStats     map[calls.Status]int
}

// Status returns the latest scheduler information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:        m.running,
		ProcessedCount: m.processed,
		FailedCount:    m.failed,
	}
	lastErr := m.lastErr
	m.mu.RUnlock()

	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read call stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) recordProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *Manager) recordFailed() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}
