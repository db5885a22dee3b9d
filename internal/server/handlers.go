package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"callwave/internal/api"
	"callwave/internal/calls"
	"callwave/internal/events"
	"callwave/internal/logging"
	"callwave/internal/store"
)

const defaultListLimit = 100

func (s *Server) handleCallList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var statuses []calls.Status
	for _, value := range r.URL.Query()["state"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := calls.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown state", trimmed)
			return
		}
		statuses = append(statuses, status)
	}

	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		limit = parsed
	}

	views, err := s.callSvc.List(r.Context(), limit, statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if views == nil {
		views = []api.CallView{}
	}
	s.writeJSON(w, http.StatusOK, api.CallListResponse{Calls: views})
}

// handleCallResource routes /api/calls/{id} and its packet/complete/archive
// sub-resources.
func (s *Server) handleCallResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/calls/")
	callID, action, _ := strings.Cut(rest, "/")
	callID = strings.TrimSpace(callID)
	if callID == "" {
		s.writeError(w, http.StatusNotFound, "call not found", "")
		return
	}

	switch action {
	case "":
		s.handleCallGet(w, r, callID)
	case "packets":
		s.handlePacket(w, r, callID)
	case "complete":
		s.handleComplete(w, r, callID)
	case "archive":
		s.handleArchive(w, r, callID)
	default:
		s.writeError(w, http.StatusNotFound, "unknown resource", action)
	}
}

func (s *Server) handleCallGet(w http.ResponseWriter, r *http.Request, callID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	view, err := s.callSvc.Describe(r.Context(), callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "call not found", callID)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CallResponse{Call: *view})
}

// handlePacket ingests one packet. Accepting is unconditional on call state:
// late packets for a completed or claimed call are still recorded.
func (s *Server) handlePacket(w http.ResponseWriter, r *http.Request, callID string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req api.PacketRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid packet payload", err.Error())
		return
	}
	if req.Sequence < 0 {
		s.writeError(w, http.StatusBadRequest, "sequence must be non-negative", "")
		return
	}
	if req.Sequence > calls.MaxSequence {
		s.writeError(w, http.StatusBadRequest, "sequence out of range",
			fmt.Sprintf("sequence must not exceed %d", int64(calls.MaxSequence)))
		return
	}
	if req.Payload == "" {
		s.writeError(w, http.StatusBadRequest, "payload is required", "")
		return
	}

	packet, fresh, err := s.store.AddPacket(r.Context(), callID, req.Sequence, []byte(req.Payload), req.Timestamp)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	resp := api.PacketResponse{
		CallID:    callID,
		Sequence:  packet.Sequence,
		Status:    api.PacketAccepted,
		Duplicate: !fresh,
	}
	status := calls.StatusInProgress
	if call, getErr := s.store.GetByCallID(r.Context(), callID); getErr == nil {
		status = call.Status
		if received, seqErr := s.store.ReceivedSequences(r.Context(), callID); seqErr == nil {
			if missing := calls.MissingSequences(received, call.HighestSequence); len(missing) > 0 {
				resp.Status = api.PacketAcceptedWithWarning
				resp.Missing = missing
			}
		}
	}

	s.publish(events.CallUpdate(callID, status, map[string]any{
		"sequence": packet.Sequence,
	}))
	s.writeJSON(w, http.StatusAccepted, resp)
}

// handleComplete records the end-of-stream signal. The response returns
// before any analysis work happens; the scheduler is only nudged.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, callID string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req api.CompleteRequest
	if err := decodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid completion payload", err.Error())
		return
	}

	target := calls.StatusCompleted
	var err error
	if req.Failed {
		target = calls.StatusFailed
		err = s.store.FailCall(r.Context(), callID, req.Reason)
	} else {
		err = s.store.CompleteCall(r.Context(), callID)
	}
	if err != nil {
		s.writeTransitionError(w, callID, err)
		return
	}

	s.publish(events.CallUpdate(callID, target, nil))
	if s.scheduler != nil && !req.Failed {
		s.scheduler.Nudge()
	}

	view, describeErr := s.callSvc.Describe(r.Context(), callID)
	if describeErr != nil {
		s.writeError(w, http.StatusInternalServerError, describeErr.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CallResponse{Call: *view})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request, callID string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	if err := s.store.ArchiveCall(r.Context(), callID); err != nil {
		s.writeTransitionError(w, callID, err)
		return
	}

	s.publish(events.CallUpdate(callID, calls.StatusArchived, nil))

	view, err := s.callSvc.Describe(r.Context(), callID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CallResponse{Call: *view})
}

func (s *Server) writeTransitionError(w http.ResponseWriter, callID string, err error) {
	var invalid *calls.InvalidTransitionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "call not found", callID)
	case errors.As(err, &invalid):
		s.writeError(w, http.StatusConflict, "invalid state transition", invalid.Error())
	case errors.Is(err, store.ErrClaimConflict):
		s.writeError(w, http.StatusConflict, "call state changed concurrently", "")
	default:
		s.logger.Error("transition failed",
			logging.String(logging.FieldCallID, callID),
			logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func (s *Server) publish(event events.Event) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(event)
}

func decodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
