// Package audit records an immutable trail of decisions taken by the core.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EventType represents the kind of audited action.
type EventType string

const (
	// EventAutoAccepted is logged when a candidate is committed without review.
	EventAutoAccepted EventType = "decision.auto_accepted"
	// EventQueued is logged when a candidate is sent to the decision queue.
	EventQueued EventType = "decision.queued"
	// EventResolved is logged when a human resolves a queue entry.
	EventResolved EventType = "decision.resolved"
	// EventSettingsUpdated is logged when auto-accept settings change.
	EventSettingsUpdated EventType = "settings.updated"
	// EventCommunicationCancelled is logged when reminders are cancelled.
	EventCommunicationCancelled EventType = "communication.cancelled"
)

// Event represents an immutable audit record.
type Event struct {
	ID           string          `json:"id"`
	EventType    EventType       `json:"event_type"`
	OrgID        string          `json:"org_id"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Actor        string          `json:"actor,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Service writes and reads audit events over database/sql.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogEvent records an audit event.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Tags == nil {
		event.Tags = []string{}
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, org_id, resource_type, resource_id,
			actor, tags, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.OrgID,
		nullString(event.ResourceType),
		nullString(event.ResourceID),
		nullString(event.Actor),
		pq.Array(event.Tags),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// Filter specifies criteria for querying audit events.
type Filter struct {
	OrgID      string
	EventType  EventType
	ResourceID string
	Tag        string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
}

// QueryEvents retrieves audit events newest first.
func (s *Service) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, event_type, org_id, resource_type, resource_id,
			   actor, tags, details, created_at
		FROM audit_events
		WHERE org_id = $1
	`
	args := []interface{}{filter.OrgID}
	argIdx := 2

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, string(filter.EventType))
		argIdx++
	}
	if filter.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argIdx)
		args = append(args, filter.ResourceID)
		argIdx++
	}
	if filter.Tag != "" {
		query += fmt.Sprintf(" AND $%d = ANY(tags)", argIdx)
		args = append(args, filter.Tag)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var eventType string
		var resourceType, resourceID, actor sql.NullString
		var details []byte
		err := rows.Scan(
			&e.ID, &eventType, &e.OrgID, &resourceType, &resourceID,
			&actor, pq.Array(&e.Tags), &details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.EventType = EventType(eventType)
		e.ResourceType = resourceType.String
		e.ResourceID = resourceID.String
		e.Actor = actor.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
