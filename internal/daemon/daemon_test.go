package daemon

import (
	"context"
	"testing"
	"time"

	"callwave/internal/analysis"
	"callwave/internal/calls"
	"callwave/internal/config"
	"callwave/internal/events"
	"callwave/internal/logging"
	"callwave/internal/scheduler"
	"callwave/internal/server"
	"callwave/internal/store"
	"callwave/internal/testsupport"
)

func newTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, *store.Store) {
	t.Helper()

	st := testsupport.MustOpenStore(t, cfg)
	broadcaster := events.NewBroadcaster(0)
	gateway := analysis.NewFlakyGateway(analysis.FlakyOptions{})
	sched := scheduler.NewManagerWithNotifier(cfg, st, gateway, broadcaster, nil, logging.NewNop())

	srv, err := server.New(cfg, st, sched, broadcaster, logging.NewNop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	d, err := New(cfg, st, sched, srv, broadcaster, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d, st
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(context.Background())
	if !status.Running || !status.Scheduler.Running {
		t.Fatalf("expected running daemon and scheduler, got %+v", status)
	}
	if status.LockFilePath == "" || status.DBPath == "" {
		t.Fatalf("expected populated paths, got %+v", status)
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("expected stopped after Stop")
	}
	d.Stop() // idempotent
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newTestDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	// The second instance shares data and lock paths but binds its own port.
	secondCfg := *cfg
	second, _ := newTestDaemon(t, &secondCfg)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("second daemon should fail to acquire the lock")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("restart after release: %v", err)
	}
}

func TestDaemonStartAlreadyRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start on a running daemon should fail")
	}
}

func TestDaemonProcessesEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	testsupport.SeedCall(t, st, "call-1", calls.StatusCompleted, 0, 1, 2)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		call, err := st.GetByCallID(context.Background(), "call-1")
		if err == nil && call.AnalyzedAt != nil {
			if call.Transcription == "" {
				t.Fatal("expected a transcription after analysis")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("call was never analyzed by the running daemon")
}
