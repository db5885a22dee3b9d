package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"callwave/internal/events"
	"callwave/internal/logging"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebsocket streams lifecycle events to one client. All writes happen
// on a single goroutine; the read side only consumes client frames, echoing
// text as a pong event. A slow client loses events to the subscription's
// drop-on-full buffer instead of stalling publishers.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	if s.broadcaster == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event stream unavailable", "")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := s.broadcaster.Subscribe()
	logger := s.logger.With(logging.String("subscriber", sub.ID))
	logger.Debug("websocket client connected")

	pongs := make(chan struct{}, 8)
	done := make(chan struct{})

	go s.writeLoop(conn, sub, pongs, done, logger)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		select {
		case pongs <- struct{}{}:
		default:
		}
	}

	close(done)
	s.broadcaster.Unsubscribe(sub)
	_ = conn.Close()
	logger.Debug("websocket client disconnected",
		logging.Int64("dropped_events", sub.Dropped()))
}

func (s *Server) writeLoop(conn *websocket.Conn, sub *events.Subscription, pongs <-chan struct{}, done <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	welcome := events.Event{
		Type:      events.TypeConnected,
		Message:   "connected to call updates",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeEvent(conn, welcome); err != nil {
		return
	}

	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case event, ok := <-sub.C:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := writeEvent(conn, event); err != nil {
				logger.Debug("websocket write failed", "error", err.Error())
				return
			}
		case <-pongs:
			pong := events.Event{
				Type:      events.TypePong,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
			if err := writeEvent(conn, pong); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event events.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}
