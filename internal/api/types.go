package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CallView describes a tracked call in a transport-friendly format. The
// missing sequence set is derived at assembly time, never stored.
type CallView struct {
	CallID           string  `json:"callId"`
	State            string  `json:"state"`
	TotalPackets     int64   `json:"totalPackets"`
	UniquePackets    int64   `json:"uniquePackets"`
	HighestSequence  int64   `json:"highestSequence"`
	MissingSequences []int64 `json:"missingSequences"`
	MissingCount     int     `json:"missingCount"`
	Transcription    string  `json:"transcription,omitempty"`
	Sentiment        string  `json:"sentiment,omitempty"`
	AnalysisAttempts int64   `json:"analysisAttempts"`
	ErrorMessage     string  `json:"errorMessage,omitempty"`
	CreatedAt        string  `json:"createdAt,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
	CompletedAt      string  `json:"completedAt,omitempty"`
	AnalyzedAt       string  `json:"analyzedAt,omitempty"`
	ArchivedAt       string  `json:"archivedAt,omitempty"`
}

// SchedulerStatus summarizes background analysis state.
type SchedulerStatus struct {
	Running        bool           `json:"running"`
	ProcessedCount int64          `json:"processedCount"`
	FailedCount    int64          `json:"failedCount"`
	LastError      string         `json:"lastError,omitempty"`
	QueueStats     map[string]int `json:"queueStats"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	DBPath       string          `json:"dbPath"`
	LockFilePath string          `json:"lockFilePath"`
	Subscribers  int             `json:"subscribers"`
	Scheduler    SchedulerStatus `json:"scheduler"`
}

// PacketRequest is the ingestion payload for one streamed packet.
type PacketRequest struct {
	Sequence  int64   `json:"sequence"`
	Payload   string  `json:"payload"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// PacketResponse acknowledges an accepted packet. Missing carries the
// current gap view when the sequence stream has holes.
type PacketResponse struct {
	CallID    string  `json:"callId"`
	Sequence  int64   `json:"sequence"`
	Status    string  `json:"status"`
	Duplicate bool    `json:"duplicate,omitempty"`
	Missing   []int64 `json:"missing,omitempty"`
}

// Packet acceptance statuses.
const (
	PacketAccepted            = "accepted"
	PacketAcceptedWithWarning = "accepted_with_warning"
)

// CompleteRequest optionally marks the call failed instead of completed.
type CompleteRequest struct {
	Failed bool   `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CallResponse wraps a single call view.
type CallResponse struct {
	Call CallView `json:"call"`
}

// CallListResponse wraps a collection of call views.
type CallListResponse struct {
	Calls []CallView `json:"calls"`
}

// StatsResponse provides normalized per-state call counts.
type StatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
