package autoaccept

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/conflicts"
)

// LogStore appends to and reads the auto_accept_log table. Rows are never
// updated or deleted here.
type LogStore struct {
	db conflicts.Querier
}

// NewLogStore creates a log store.
func NewLogStore(db conflicts.Querier) *LogStore {
	return &LogStore{db: db}
}

// Append writes e using q when non-nil so the row can join a commit transaction.
func (s *LogStore) Append(ctx context.Context, q conflicts.Querier, e *LogEntry) error {
	if q == nil {
		q = s.db
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO auto_accept_log (id, org_id, resource_type, resource_id, action, reason, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.OrgID, string(e.ResourceType), e.ResourceID, string(e.Action), e.Reason, e.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("autoaccept: append log: %w", err)
	}
	return nil
}

// List returns the newest entries for an organization.
func (s *LogStore) List(ctx context.Context, orgID uuid.UUID, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, org_id, resource_type, resource_id, action, reason, processed_at
		FROM auto_accept_log
		WHERE org_id = $1
		ORDER BY processed_at DESC LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("autoaccept: list log: %w", err)
	}
	defer rows.Close()

	var result []LogEntry
	for rows.Next() {
		var e LogEntry
		var resourceType, action string
		if err := rows.Scan(&e.ID, &e.OrgID, &resourceType, &e.ResourceID, &action, &e.Reason, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("autoaccept: scan log: %w", err)
		}
		e.ResourceType = ResourceType(resourceType)
		e.Action = LogAction(action)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("autoaccept: list log: %w", err)
	}
	return result, nil
}
