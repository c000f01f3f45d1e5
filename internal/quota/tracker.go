// Package quota enforces per-organization daily auto-accept caps and the
// business-hours window consulted by the evaluator.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Counter atomically maintains accepted counts keyed by organization,
// resource type and calendar day. A new day starts from zero because the day
// is part of the key.
type Counter interface {
	IncrementAndGet(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error)
	Release(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) error
	Current(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error)
}

// HoursSource answers business-hours questions for an organization.
// clinic.Store satisfies it.
type HoursSource interface {
	IsOpenAt(ctx context.Context, orgID string, t time.Time) (bool, error)
	LocalDate(ctx context.Context, orgID string, t time.Time) (time.Time, error)
}

// Tracker combines the daily counter with the business-hours window.
type Tracker struct {
	counter Counter
	hours   HoursSource
}

// NewTracker wires a counter backend and an hours source.
func NewTracker(counter Counter, hours HoursSource) *Tracker {
	return &Tracker{counter: counter, hours: hours}
}

// IncrementAndGet reserves one slot and returns the count including it.
func (t *Tracker) IncrementAndGet(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error) {
	count, err := t.counter.IncrementAndGet(ctx, orgID, resourceType, dayKey(day))
	if err != nil {
		return 0, fmt.Errorf("quota: increment: %w", err)
	}
	return count, nil
}

// Release gives back a slot reserved by IncrementAndGet.
func (t *Tracker) Release(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) error {
	if err := t.counter.Release(ctx, orgID, resourceType, dayKey(day)); err != nil {
		return fmt.Errorf("quota: release: %w", err)
	}
	return nil
}

// Current reports the count without changing it.
func (t *Tracker) Current(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error) {
	count, err := t.counter.Current(ctx, orgID, resourceType, dayKey(day))
	if err != nil {
		return 0, fmt.Errorf("quota: current: %w", err)
	}
	return count, nil
}

// IsWithinBusinessHours reports whether ts falls inside the organization's
// configured window.
func (t *Tracker) IsWithinBusinessHours(ctx context.Context, orgID uuid.UUID, ts time.Time) (bool, error) {
	open, err := t.hours.IsOpenAt(ctx, orgID.String(), ts)
	if err != nil {
		return false, fmt.Errorf("quota: business hours: %w", err)
	}
	return open, nil
}

// Today returns the organization's local calendar date at now, which is the
// day a decision made at now is counted against.
func (t *Tracker) Today(ctx context.Context, orgID uuid.UUID, now time.Time) (time.Time, error) {
	day, err := t.hours.LocalDate(ctx, orgID.String(), now)
	if err != nil {
		return time.Time{}, fmt.Errorf("quota: local date: %w", err)
	}
	return day, nil
}

func dayKey(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}
