package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"callwave/internal/analysis"
	"callwave/internal/config"
	"callwave/internal/daemon"
	"callwave/internal/events"
	"callwave/internal/logging"
	"callwave/internal/scheduler"
	"callwave/internal/server"
	"callwave/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open call store", logging.Error(err))
		return
	}

	gateway, err := analysis.NewGateway(cfg)
	if err != nil {
		logger.Error("init analysis gateway", logging.Error(err))
		_ = st.Close()
		return
	}

	broadcaster := events.NewBroadcaster(cfg.Events.SubscriberBuffer)
	sched := scheduler.NewManager(cfg, st, gateway, broadcaster, logger)

	srv, err := server.New(cfg, st, sched, broadcaster, logger)
	if err != nil {
		logger.Error("init api server", logging.Error(err))
		_ = st.Close()
		return
	}

	d, err := daemon.New(cfg, st, sched, srv, broadcaster, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = st.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	d.Stop()
}
