package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"callwave/internal/calls"
)

const callColumns = "id, call_id, status, total_packets, received_unique, highest_sequence, transcription, sentiment, analysis_attempts, error_message, created_at, updated_at, completed_at, analyzed_at, archived_at, last_heartbeat"

func scanCall(scanner interface{ Scan(dest ...any) error }) (*calls.Call, error) {
	var (
		id               int64
		callID           string
		statusStr        string
		totalPackets     int64
		receivedUnique   int64
		highestSequence  int64
		transcription    sql.NullString
		sentiment        sql.NullString
		analysisAttempts int64
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		completedRaw     sql.NullString
		analyzedRaw      sql.NullString
		archivedRaw      sql.NullString
		heartbeatRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&callID,
		&statusStr,
		&totalPackets,
		&receivedUnique,
		&highestSequence,
		&transcription,
		&sentiment,
		&analysisAttempts,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
		&analyzedRaw,
		&archivedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	call := &calls.Call{
		ID:               id,
		CallID:           callID,
		Status:           calls.Status(statusStr),
		TotalPackets:     totalPackets,
		ReceivedUnique:   receivedUnique,
		HighestSequence:  highestSequence,
		Transcription:    transcription.String,
		Sentiment:        sentiment.String,
		AnalysisAttempts: analysisAttempts,
		ErrorMessage:     errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		call.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		call.UpdatedAt = updated
	}
	call.CompletedAt = optionalTime(completedRaw)
	call.AnalyzedAt = optionalTime(analyzedRaw)
	call.ArchivedAt = optionalTime(archivedRaw)
	call.LastHeartbeat = optionalTime(heartbeatRaw)

	return call, nil
}

func optionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	parsed, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// GetOrCreateCall returns the call for callID, inserting an in-progress row
// on first contact.
func (s *Store) GetOrCreateCall(ctx context.Context, callID string) (*calls.Call, error) {
	if callID == "" {
		return nil, errors.New("call id is empty")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO calls (call_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(call_id) DO NOTHING`,
		callID,
		calls.StatusInProgress,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert call: %w", err)
	}
	return s.GetByCallID(ctx, callID)
}

// GetByCallID fetches a call by its caller-supplied identifier.
func (s *Store) GetByCallID(ctx context.Context, callID string) (*calls.Call, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE call_id = ?`, callID)
	call, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return call, nil
}

// AddPacket records one packet in a single transaction: the packet row is
// inserted, the call's totals are bumped, and the highest observed sequence
// is tracked. Duplicate sequences are recorded but leave the unique count
// unchanged. The call row is created on first contact. Returns the stored
// packet and whether the sequence was fresh for this call.
func (s *Store) AddPacket(ctx context.Context, callID string, sequence int64, payload []byte, timestamp float64) (*calls.Packet, bool, error) {
	if callID == "" {
		return nil, false, errors.New("call id is empty")
	}
	if sequence < 0 {
		return nil, false, fmt.Errorf("sequence %d is negative", sequence)
	}
	if sequence > calls.MaxSequence {
		return nil, false, fmt.Errorf("sequence %d exceeds limit %d", sequence, int64(calls.MaxSequence))
	}

	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	var (
		packet *calls.Packet
		fresh  bool
	)
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin packet tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO calls (call_id, status, created_at, updated_at)
             VALUES (?, ?, ?, ?)
             ON CONFLICT(call_id) DO NOTHING`,
			callID,
			calls.StatusInProgress,
			nowStr,
			nowStr,
		); err != nil {
			return fmt.Errorf("ensure call: %w", err)
		}

		var seen int
		if err := tx.QueryRowContext(
			ctx,
			`SELECT EXISTS(SELECT 1 FROM packets WHERE call_id = ? AND sequence = ?)`,
			callID,
			sequence,
		).Scan(&seen); err != nil {
			return fmt.Errorf("check sequence: %w", err)
		}
		fresh = seen == 0

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO packets (call_id, sequence, payload, timestamp, received_at)
             VALUES (?, ?, ?, ?, ?)`,
			callID,
			sequence,
			payload,
			timestamp,
			nowStr,
		)
		if err != nil {
			return fmt.Errorf("insert packet: %w", err)
		}
		packetID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		uniqueBump := 0
		if fresh {
			uniqueBump = 1
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE calls
             SET total_packets = total_packets + 1,
                 received_unique = received_unique + ?,
                 highest_sequence = MAX(highest_sequence, ?),
                 updated_at = ?
             WHERE call_id = ?`,
			uniqueBump,
			sequence,
			nowStr,
			callID,
		); err != nil {
			return fmt.Errorf("update call totals: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit packet: %w", err)
		}

		packet = &calls.Packet{
			ID:         packetID,
			CallID:     callID,
			Sequence:   sequence,
			Payload:    payload,
			Timestamp:  timestamp,
			ReceivedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return packet, fresh, nil
}

// ReceivedSequences returns the distinct sequence numbers recorded for a
// call in ascending order.
func (s *Store) ReceivedSequences(ctx context.Context, callID string) ([]int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT DISTINCT sequence FROM packets WHERE call_id = ? ORDER BY sequence`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sequences: %w", err)
	}
	defer rows.Close()

	var sequences []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		sequences = append(sequences, seq)
	}
	return sequences, rows.Err()
}

// Packets returns all packets for a call ordered by sequence then arrival.
func (s *Store) Packets(ctx context.Context, callID string) ([]*calls.Packet, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, call_id, sequence, payload, timestamp, received_at
         FROM packets WHERE call_id = ? ORDER BY sequence, id`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("query packets: %w", err)
	}
	defer rows.Close()

	var packets []*calls.Packet
	for rows.Next() {
		var (
			packet      calls.Packet
			receivedRaw sql.NullString
		)
		if err := rows.Scan(&packet.ID, &packet.CallID, &packet.Sequence, &packet.Payload, &packet.Timestamp, &receivedRaw); err != nil {
			return nil, err
		}
		if received, err := parseTimeString(receivedRaw.String); err == nil {
			packet.ReceivedAt = received
		}
		packets = append(packets, &packet)
	}
	return packets, rows.Err()
}

// PendingAnalysis returns completed calls that have not been analyzed yet,
// oldest completion first. These are the scheduler's work queue.
func (s *Store) PendingAnalysis(ctx context.Context) ([]*calls.Call, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+callColumns+` FROM calls
         WHERE status = ? AND analyzed_at IS NULL
         ORDER BY completed_at`,
		calls.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending analysis: %w", err)
	}
	defer rows.Close()
	return collectCalls(rows)
}

// CallsByStatus returns calls matching a status ordered by last update.
func (s *Store) CallsByStatus(ctx context.Context, status calls.Status) ([]*calls.Call, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+callColumns+` FROM calls WHERE status = ? ORDER BY updated_at`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()
	return collectCalls(rows)
}

// List returns calls filtered by status set, newest first. A limit of zero
// means no limit.
func (s *Store) List(ctx context.Context, limit int, statuses ...calls.Status) ([]*calls.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()
	return collectCalls(rows)
}

func collectCalls(rows *sql.Rows) ([]*calls.Call, error) {
	var out []*calls.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, rows.Err()
}

// Stats returns a count of calls grouped by status.
func (s *Store) Stats(ctx context.Context) (map[calls.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM calls GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("call stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[calls.Status]int)
	for rows.Next() {
		var status calls.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// HealthSummary aggregates call counts for diagnostic output.
type HealthSummary struct {
	Total      int `json:"total"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Archived   int `json:"archived"`
}

// Health aggregates call state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case calls.StatusInProgress:
			health.InProgress += count
		case calls.StatusCompleted:
			health.Completed += count
		case calls.StatusProcessingAI:
			health.Processing += count
		case calls.StatusFailed:
			health.Failed += count
		case calls.StatusArchived:
			health.Archived += count
		}
	}
	return health, nil
}
