package calls

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a call.
type Status string

const (
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusProcessingAI Status = "processing_ai"
	StatusFailed       Status = "failed"
	StatusArchived     Status = "archived"
)

var allStatuses = []Status{
	StatusInProgress,
	StatusCompleted,
	StatusProcessingAI,
	StatusFailed,
	StatusArchived,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Call represents a tracked telephone call persisted in SQLite.
type Call struct {
	ID               int64
	CallID           string
	Status           Status
	TotalPackets     int64
	ReceivedUnique   int64
	HighestSequence  int64 // -1 until the first packet arrives
	Transcription    string
	Sentiment        string
	AnalysisAttempts int64
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
	AnalyzedAt       *time.Time
	ArchivedAt       *time.Time
	LastHeartbeat    *time.Time
}

// Packet is one unit of streamed audio payload belonging to a call.
type Packet struct {
	ID         int64
	CallID     string
	Sequence   int64
	Payload    []byte
	Timestamp  float64
	ReceivedAt time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether the call is claimed by an analysis worker.
func (c Call) IsProcessing() bool {
	return c.Status == StatusProcessingAI
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusArchived
}

// HasAnalysis reports whether analysis results are attached.
func (c Call) HasAnalysis() bool {
	return c.Transcription != "" || c.Sentiment != ""
}

// SetFailed marks the call as failed with the given error message.
func (c *Call) SetFailed(message string) {
	c.Status = StatusFailed
	c.ErrorMessage = message
	c.LastHeartbeat = nil
}
