package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"callwave/internal/config"
	"callwave/internal/events"
	"callwave/internal/logging"
	"callwave/internal/notifications"
	"callwave/internal/scheduler"
	"callwave/internal/server"
	"callwave/internal/store"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *store.Store
	scheduler   *scheduler.Manager
	server      *server.Server
	broadcaster *events.Broadcaster
	notifier    notifications.Service
	logPath     string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Scheduler    scheduler.StatusSummary
	DBPath       string
	LockFilePath string
	Subscribers  int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, sched *scheduler.Manager, srv *server.Server, broadcaster *events.Broadcaster, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || sched == nil || srv == nil {
		return nil, errors.New("daemon requires config, store, scheduler, and server")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		scheduler:   sched,
		server:      srv,
		broadcaster: broadcaster,
		notifier:    notifications.NewService(cfg),
		logPath:     filepath.Join(cfg.Paths.LogDir, "callwave.log"),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, then launches the scheduler and the API
// server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another callwave daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.scheduler.Start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.server.Start(d.ctx); err != nil {
		d.scheduler.Stop()
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("callwave daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()))
	if err := d.notifier.NotifyDaemonStarted(d.ctx); err != nil {
		d.logger.Warn("startup notification failed", logging.Error(err))
	}
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	d.server.Stop()
	if d.broadcaster != nil {
		d.broadcaster.Close()
	}
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)

	d.logger.Info("callwave daemon stopped")
	notifyCtx := context.Background()
	if err := d.notifier.NotifyDaemonStopped(notifyCtx, d.scheduler.ProcessedCount(), d.scheduler.FailedCount()); err != nil {
		d.logger.Warn("shutdown notification failed", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Scheduler:    d.scheduler.Status(ctx),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if d.broadcaster != nil {
		status.Subscribers = d.broadcaster.SubscriberCount()
	}
	return status
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
