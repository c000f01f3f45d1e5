package conflicts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxBeginner starts transactions. pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Guard runs work inside a transaction, optionally holding transaction-scoped
// advisory locks for a practitioner's calendar days.
type Guard struct {
	db TxBeginner
}

// NewGuard creates a guard over db.
func NewGuard(db TxBeginner) *Guard {
	return &Guard{db: db}
}

// InTx runs fn inside a transaction without taking any lock.
func (g *Guard) InTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return g.run(ctx, nil, fn)
}

// WithPractitionerLock locks every UTC day touched by [start, end) for the
// practitioner, then runs fn in the same transaction. Two overlapping
// intervals always share at least one locked day, so their check-then-commit
// sequences serialize. Locks are taken in ascending day order.
func (g *Guard) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, fn func(ctx context.Context, q Querier) error) error {
	return g.run(ctx, LockKeys(practitionerID, start, end), fn)
}

func (g *Guard) run(ctx context.Context, keys []string, fn func(ctx context.Context, q Querier) error) (err error) {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("conflicts: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, key := range keys {
		if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("conflicts: lock %s: %w", key, err)
		}
	}

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("conflicts: commit: %w", err)
	}
	return nil
}

// LockKeys returns the advisory lock keys for the practitioner's days covered
// by [start, end). A zero-duration interval still locks its start day.
func LockKeys(practitionerID uuid.UUID, start, end time.Time) []string {
	first := utcDay(start)
	last := first
	if end.After(start) {
		last = utcDay(end.Add(-time.Nanosecond))
	}
	var keys []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		keys = append(keys, fmt.Sprintf("practitioner:%s:%s", practitionerID, d.Format("2006-01-02")))
	}
	return keys
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
