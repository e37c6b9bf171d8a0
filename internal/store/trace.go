package store

import (
	"context"
	"fmt"
	"time"
)

// TraceEntry is one recorded activity, inbound or outbound.
type TraceEntry struct {
	ID             int64
	Direction      string
	ActivityType   string
	ActivityID     string
	ConversationID string
	Body           string
	RecordedAt     time.Time
}

// TraceStore persists a log of activities flowing through the runtime.
// It satisfies dispatch.Tracer.
type TraceStore struct {
	db *DB
}

// NewTraceStore creates a trace store using the given database.
func NewTraceStore(db *DB) *TraceStore {
	return &TraceStore{db: db}
}

// Record appends one activity to the log. Failures are logged, not
// returned; tracing never interferes with dispatch.
func (s *TraceStore) Record(ctx context.Context, direction, activityType, activityID, conversationID string, body []byte) {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO activity_log (direction, activity_type, activity_id, conversation_id, body)
		 VALUES (?, ?, ?, ?, ?)`,
		direction, activityType, activityID, conversationID, string(body),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("type", activityType).Msg("failed to record activity")
	}
}

// Recent returns the most recent entries, newest first.
func (s *TraceStore) Recent(ctx context.Context, limit int) ([]TraceEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, direction, activity_type, activity_id, conversation_id, body, recorded_at
		 FROM activity_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	defer rows.Close()

	var entries []TraceEntry
	for rows.Next() {
		var e TraceEntry
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.Direction, &e.ActivityType, &e.ActivityID, &e.ConversationID, &e.Body, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning activity log row: %w", err)
		}
		e.RecordedAt, _ = time.Parse(time.DateTime, recordedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Conversation returns entries for one conversation, oldest first.
func (s *TraceStore) Conversation(ctx context.Context, conversationID string, limit int) ([]TraceEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, direction, activity_type, activity_id, conversation_id, body, recorded_at
		 FROM activity_log WHERE conversation_id = ? ORDER BY id ASC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	defer rows.Close()

	var entries []TraceEntry
	for rows.Next() {
		var e TraceEntry
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.Direction, &e.ActivityType, &e.ActivityID, &e.ConversationID, &e.Body, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning activity log row: %w", err)
		}
		e.RecordedAt, _ = time.Parse(time.DateTime, recordedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
