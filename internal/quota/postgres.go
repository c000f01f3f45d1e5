package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCounter keeps daily counts in auto_accept_daily_counts. Each
// increment is a single upsert so concurrent callers serialize on the row.
type PostgresCounter struct {
	db DB
}

// NewPostgresCounter creates a counter backed by Postgres.
func NewPostgresCounter(db DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

// IncrementAndGet upserts the day's row and returns the new count.
func (c *PostgresCounter) IncrementAndGet(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error) {
	var count int
	err := c.db.QueryRow(ctx, `
		INSERT INTO auto_accept_daily_counts (org_id, resource_type, day, count, updated_at)
		VALUES ($1, $2, $3, 1, now())
		ON CONFLICT (org_id, resource_type, day)
		DO UPDATE SET count = auto_accept_daily_counts.count + 1, updated_at = now()
		RETURNING count`, orgID, resourceType, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres counter: increment: %w", err)
	}
	return count, nil
}

// Release decrements the day's count, never below zero.
func (c *PostgresCounter) Release(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) error {
	_, err := c.db.Exec(ctx, `
		UPDATE auto_accept_daily_counts SET count = count - 1, updated_at = now()
		WHERE org_id = $1 AND resource_type = $2 AND day = $3 AND count > 0`, orgID, resourceType, day)
	if err != nil {
		return fmt.Errorf("postgres counter: release: %w", err)
	}
	return nil
}

// Current returns the day's count, zero when no row exists yet.
func (c *PostgresCounter) Current(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error) {
	var count int
	err := c.db.QueryRow(ctx, `
		SELECT count FROM auto_accept_daily_counts
		WHERE org_id = $1 AND resource_type = $2 AND day = $3`, orgID, resourceType, day).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres counter: current: %w", err)
	}
	return count, nil
}
