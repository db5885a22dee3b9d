package api

import (
	"time"

	"callwave/internal/calls"
)

// FromCall converts a stored call to its API representation. The missing
// sequence set must be computed by the caller against the call's received
// sequences.
func FromCall(call *calls.Call, missing []int64) CallView {
	if call == nil {
		return CallView{}
	}

	view := CallView{
		CallID:           call.CallID,
		State:            string(call.Status),
		TotalPackets:     call.TotalPackets,
		UniquePackets:    call.ReceivedUnique,
		HighestSequence:  call.HighestSequence,
		MissingSequences: missing,
		MissingCount:     len(missing),
		Transcription:    call.Transcription,
		Sentiment:        call.Sentiment,
		AnalysisAttempts: call.AnalysisAttempts,
		ErrorMessage:     call.ErrorMessage,
	}
	if view.MissingSequences == nil {
		view.MissingSequences = []int64{}
	}

	view.CreatedAt = FormatTime(call.CreatedAt)
	view.UpdatedAt = FormatTime(call.UpdatedAt)
	view.CompletedAt = formatTimePtr(call.CompletedAt)
	view.AnalyzedAt = formatTimePtr(call.AnalyzedAt)
	view.ArchivedAt = formatTimePtr(call.ArchivedAt)
	return view
}

// FormatTime converts a time to the API timestamp format, empty when zero.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// ParseTime parses an API timestamp for consumers that need display
// formatting. Zero time on failure.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// MergeStats produces a string-keyed representation of call stats.
func MergeStats(stats map[calls.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}
