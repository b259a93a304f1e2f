package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service writes and reads chat events. It assumes the schema has been
// migrated before use.
type Service struct {
	db *sql.DB
}

// NewService creates an audit Service over an open database handle.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogChat appends one chat event. The event ID is assigned here.
func (s *Service) LogChat(ctx context.Context, e ChatEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_event (
			id, trace_id, topic, topic_status, rag_result, intent,
			service, collection, rule_index, connection, model,
			tool_calls, latency_ms, outcome, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TraceID, e.Topic, e.TopicStatus, e.RAGResult, e.Intent,
		e.Service, e.Collection, e.RuleIndex, e.Connection, e.Model,
		e.ToolCalls, e.LatencyMS, e.Outcome, e.Error,
	)
	if err != nil {
		return fmt.Errorf("audit: insert chat event: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events, newest first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]ChatEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trace_id, topic, topic_status, rag_result, intent,
		       service, collection, rule_index, connection, model,
		       tool_calls, latency_ms, outcome, error, created_at
		FROM chat_event
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query chat events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var events []ChatEvent
	for rows.Next() {
		var e ChatEvent
		var createdAt string
		if scanErr := rows.Scan(
			&e.ID, &e.TraceID, &e.Topic, &e.TopicStatus, &e.RAGResult, &e.Intent,
			&e.Service, &e.Collection, &e.RuleIndex, &e.Connection, &e.Model,
			&e.ToolCalls, &e.LatencyMS, &e.Outcome, &e.Error, &createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("audit: scan chat event: %w", scanErr)
		}
		if ts, parseErr := time.Parse("2006-01-02 15:04:05", createdAt); parseErr == nil {
			e.CreatedAt = ts
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
