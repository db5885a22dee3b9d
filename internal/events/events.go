// Package events fans call lifecycle updates out to live subscribers.
// Delivery is best-effort: a slow subscriber drops messages, it never
// blocks the publisher.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"callwave/internal/calls"
)

// Event types on the wire.
const (
	TypeCallUpdate = "call_update"
	TypeAIResult   = "ai_result"
	TypeConnected  = "connected"
	TypePong       = "pong"
)

// Event is one broadcast message. The JSON field names are the public wire
// contract consumed by websocket clients.
type Event struct {
	Type          string         `json:"type"`
	CallID        string         `json:"call_id,omitempty"`
	Status        string         `json:"status,omitempty"`
	Transcription string         `json:"transcription,omitempty"`
	Sentiment     string         `json:"sentiment,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Message       string         `json:"message,omitempty"`
	Timestamp     string         `json:"timestamp"`
}

// CallUpdate builds a status-change event.
func CallUpdate(callID string, status calls.Status, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		Type:      TypeCallUpdate,
		CallID:    callID,
		Status:    string(status),
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// AIResult builds an analysis-completed event.
func AIResult(callID, transcription, sentiment string) Event {
	return Event{
		Type:          TypeAIResult,
		CallID:        callID,
		Transcription: transcription,
		Sentiment:     sentiment,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// Subscription is one subscriber's buffered event feed.
type Subscription struct {
	ID string
	C  <-chan Event

	ch      chan Event
	mu      sync.Mutex
	dropped int64
}

// Dropped returns how many events this subscriber missed because its
// buffer was full.
func (s *Subscription) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) recordDrop() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

// DefaultSubscriberBuffer is each subscription's channel capacity when none
// is configured.
const DefaultSubscriberBuffer = 64

// Broadcaster distributes events to any number of subscribers.
type Broadcaster struct {
	mu     sync.RWMutex
	buffer int
	subs   map[string]*Subscription
	closed bool
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		buffer: buffer,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe registers a new subscriber and returns its feed.
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; !ok {
		return
	}
	delete(b.subs, sub.ID)
	close(sub.ch)
}

// Publish delivers an event to every subscriber without blocking. Full
// buffers drop the event and bump the subscriber's drop counter.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.recordDrop()
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscribers and closes their channels. Publish becomes a
// no-op afterward.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
