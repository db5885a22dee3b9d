package api

import (
	"context"

	"callwave/internal/calls"
)

// CallReader abstracts call persistence interactions needed for API queries.
type CallReader interface {
	GetByCallID(ctx context.Context, callID string) (*calls.Call, error)
	ReceivedSequences(ctx context.Context, callID string) ([]int64, error)
	List(ctx context.Context, limit int, statuses ...calls.Status) ([]*calls.Call, error)
	Stats(ctx context.Context) (map[calls.Status]int, error)
}

// CallService exposes read-only call operations returning API DTOs.
type CallService struct {
	store CallReader
}

// NewCallService constructs a CallService around the provided reader.
func NewCallService(store CallReader) *CallService {
	if store == nil {
		return nil
	}
	return &CallService{store: store}
}

// Describe fetches a single call with its derived missing sequence set.
func (s *CallService) Describe(ctx context.Context, callID string) (*CallView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	call, err := s.store.GetByCallID(ctx, callID)
	if err != nil || call == nil {
		return nil, err
	}
	received, err := s.store.ReceivedSequences(ctx, callID)
	if err != nil {
		return nil, err
	}
	view := FromCall(call, calls.MissingSequences(received, call.HighestSequence))
	return &view, nil
}

// List returns call views filtered by state, newest first. A limit of 0
// applies the store's default.
func (s *CallService) List(ctx context.Context, limit int, statuses ...calls.Status) ([]CallView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.List(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	views := make([]CallView, 0, len(records))
	for _, call := range records {
		received, err := s.store.ReceivedSequences(ctx, call.CallID)
		if err != nil {
			return nil, err
		}
		views = append(views, FromCall(call, calls.MissingSequences(received, call.HighestSequence)))
	}
	return views, nil
}

// Stats returns summary counts keyed by state string.
func (s *CallService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStats(stats), nil
}
