package decisionqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entryColumns = `id, org_id, resource_type, resource_id, reason, status,
	COALESCE(resolution, ''), resolution_note, created_at, resolved_at, COALESCE(resolved_by, '')`

// Store is the Postgres Repository. Idempotent enqueue relies on the partial
// unique index decision_queue_pending_uniq.
type Store struct {
	db DB
}

// NewStore creates a new decision queue store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Upsert(ctx context.Context, e *Entry) (*Entry, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO decision_queue (id, org_id, resource_type, resource_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)
		ON CONFLICT (org_id, resource_type, resource_id) WHERE status = 'PENDING'
		DO UPDATE SET reason = EXCLUDED.reason
		RETURNING `+entryColumns,
		e.ID, e.OrgID, e.ResourceType, e.ResourceID, e.Reason, e.CreatedAt,
	)
	out, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("decisionqueue: upsert: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, orgID, id uuid.UUID) (*Entry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM decision_queue
		WHERE org_id = $1 AND id = $2`, orgID, id)
	out, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("decision queue entry %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("decisionqueue: get: %w", err)
	}
	return out, nil
}

// MarkResolved runs on q when non-nil so the transition can share a
// transaction with the change it authorizes.
func (s *Store) MarkResolved(ctx context.Context, q DB, orgID, id uuid.UUID, res Resolution) (*Entry, bool, error) {
	if q == nil {
		q = s.db
	}
	row := q.QueryRow(ctx, `
		UPDATE decision_queue
		SET status = 'RESOLVED', resolution = $3, resolution_note = $4, resolved_by = $5, resolved_at = $6
		WHERE org_id = $1 AND id = $2 AND status = 'PENDING'
		RETURNING `+entryColumns,
		orgID, id, string(res.Decision), res.Note, res.ResolvedBy, res.ResolvedAt,
	)
	out, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("decisionqueue: mark resolved: %w", err)
	}
	return out, true, nil
}

func (s *Store) ListPending(ctx context.Context, orgID uuid.UUID, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows pgx.Rows
	var err error
	if filter.ResourceType != "" {
		rows, err = s.db.Query(ctx, `
			SELECT `+entryColumns+`
			FROM decision_queue
			WHERE org_id = $1 AND status = 'PENDING' AND resource_type = $2
			ORDER BY created_at ASC, id ASC LIMIT $3`, orgID, filter.ResourceType, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+entryColumns+`
			FROM decision_queue
			WHERE org_id = $1 AND status = 'PENDING'
			ORDER BY created_at ASC, id ASC LIMIT $2`, orgID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("decisionqueue: list pending: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("decisionqueue: scan entry: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("decisionqueue: list pending: %w", err)
	}
	return result, nil
}

func (s *Store) CountPending(ctx context.Context, orgID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM decision_queue WHERE org_id = $1 AND status = 'PENDING'`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("decisionqueue: count pending: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var status, resolution string
	var resolvedAt sql.NullTime
	err := row.Scan(
		&e.ID, &e.OrgID, &e.ResourceType, &e.ResourceID, &e.Reason, &status,
		&resolution, &e.ResolutionNote, &e.CreatedAt, &resolvedAt, &e.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.Resolution = Decision(resolution)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		e.ResolvedAt = &t
	}
	return &e, nil
}
