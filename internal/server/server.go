// Package server exposes the ingestion and read API over HTTP plus the
// websocket live-update endpoint. Ingestion never blocks on analysis: packet
// handlers write to the store and return, the scheduler picks up completed
// calls on its own clock.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"callwave/internal/api"
	"callwave/internal/config"
	"callwave/internal/events"
	"callwave/internal/logging"
	"callwave/internal/scheduler"
	"callwave/internal/store"
)

// Server hosts the HTTP API and websocket endpoint for one daemon.
type Server struct {
	bind        string
	logger      *slog.Logger
	store       *store.Store
	scheduler   *scheduler.Manager
	broadcaster *events.Broadcaster
	callSvc     *api.CallService
	lockPath    string

	listener net.Listener
	server   *http.Server
}

// New wires the server's routes. The scheduler may be nil in read-only
// deployments; completion signals then skip the nudge.
func New(cfg *config.Config, st *store.Store, sched *scheduler.Manager, broadcaster *events.Broadcaster, logger *slog.Logger) (*Server, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("server requires config and store")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api_bind is not configured")
	}

	srv := &Server{
		bind:        bind,
		logger:      logging.NewComponentLogger(logger, "api-server"),
		store:       st,
		scheduler:   sched,
		broadcaster: broadcaster,
		callSvc:     api.NewCallService(st),
		lockPath:    cfg.LockFilePath(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/calls", srv.handleCallList)
	mux.HandleFunc("/api/calls/", srv.handleCallResource)
	mux.HandleFunc("/ws", srv.handleWebsocket)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Start begins serving and shuts the server down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down immediately.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Handler returns the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the bound address once Start has succeeded. Useful with a
// ":0" bind.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	payload := api.DaemonStatus{
		Running:      true,
		PID:          os.Getpid(),
		DBPath:       s.store.Path(),
		LockFilePath: s.lockPath,
	}
	if s.broadcaster != nil {
		payload.Subscribers = s.broadcaster.SubscriberCount()
	}
	if s.scheduler != nil {
		summary := s.scheduler.Status(r.Context())
		payload.Scheduler = api.SchedulerStatus{
			Running:        summary.Running,
			ProcessedCount: summary.ProcessedCount,
			FailedCount:    summary.FailedCount,
			LastError:      summary.LastError,
			QueueStats:     api.MergeStats(summary.QueueStats),
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, detail string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Detail: detail})
}
