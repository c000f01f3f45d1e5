// Package conflicts detects double-booked practitioners and serializes the
// conflict check with the commit that follows it.
package conflicts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by pgxpool.Pool and pgx.Tx, so checks can join a
// transaction opened by Guard.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the interval has no duration.
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching intervals and zero-duration intervals never overlap.
func Overlaps(a, b Interval) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// committedStatuses are the appointment states that occupy a slot. Requested
// or cancelled appointments never block one.
var committedStatuses = []string{"confirmed", "checked_in", "in_progress", "completed"}

// Checker looks for overlapping committed appointments in the appointments
// table owned by the booking module.
type Checker struct {
	db Querier
}

// NewChecker creates a conflict checker.
func NewChecker(db Querier) *Checker {
	return &Checker{db: db}
}

// HasConflict reports whether the practitioner already has a committed
// appointment overlapping [start, end). excludeID lets an appointment be
// re-checked without colliding with itself.
func (c *Checker) HasConflict(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	return c.HasConflictTx(ctx, c.db, practitionerID, start, end, excludeID)
}

// HasConflictTx runs the check on q, typically a transaction holding the
// practitioner lock.
func (c *Checker) HasConflictTx(ctx context.Context, q Querier, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	if (Interval{Start: start, End: end}).Empty() {
		return false, nil
	}
	if q == nil {
		q = c.db
	}
	exclude := uuid.Nil
	if excludeID != nil {
		exclude = *excludeID
	}

	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE practitioner_id = $1
			  AND id <> $2
			  AND status = ANY($3)
			  AND end_at > start_at
			  AND start_at < $5
			  AND $4 < end_at
		)`, practitionerID, exclude, committedStatuses, start, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("conflicts: has conflict: %w", err)
	}
	return exists, nil
}
