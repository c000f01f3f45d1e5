package comms

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

// Repository persists scheduled communications. Every status transition is
// conditional on the row still being PENDING; ok=false reports a lost race.
type Repository interface {
	CreateAll(ctx context.Context, items []*Communication) error
	Get(ctx context.Context, orgID, id uuid.UUID) (*Communication, error)
	ListDue(ctx context.Context, orgID uuid.UUID, asOf time.Time, limit int) ([]Communication, error)
	ListDueAll(ctx context.Context, asOf time.Time, limit int) ([]Communication, error)
	Cancel(ctx context.Context, orgID, id uuid.UUID, at time.Time) (bool, error)
	CancelForAppointment(ctx context.Context, orgID, appointmentID uuid.UUID, at time.Time) (int, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// RecordFailure bumps the attempt count and moves the row to FAILED once
	// maxAttempts is reached. It returns the resulting status.
	RecordFailure(ctx context.Context, id uuid.UUID, msg string, maxAttempts int, at time.Time) (Status, bool, error)
}

// InMemoryRepository is a Repository kept in process memory.
type InMemoryRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Communication
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[uuid.UUID]*Communication)}
}

func (r *InMemoryRepository) CreateAll(ctx context.Context, items []*Communication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range items {
		cp := *c
		r.items[c.ID] = &cp
	}
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*Communication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.OrgID != orgID {
		return nil, apperr.NotFound("communication %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (r *InMemoryRepository) ListDue(ctx context.Context, orgID uuid.UUID, asOf time.Time, limit int) ([]Communication, error) {
	return r.due(func(c *Communication) bool { return c.OrgID == orgID }, asOf, limit), nil
}

func (r *InMemoryRepository) ListDueAll(ctx context.Context, asOf time.Time, limit int) ([]Communication, error) {
	return r.due(func(*Communication) bool { return true }, asOf, limit), nil
}

func (r *InMemoryRepository) due(match func(*Communication) bool, asOf time.Time, limit int) []Communication {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Communication
	for _, c := range r.items {
		if c.Status == StatusPending && !c.ScheduledAt.After(asOf) && match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *InMemoryRepository) Cancel(ctx context.Context, orgID, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.OrgID != orgID || c.Status != StatusPending {
		return false, nil
	}
	c.Status = StatusCancelled
	c.UpdatedAt = at
	return true, nil
}

func (r *InMemoryRepository) CancelForAppointment(ctx context.Context, orgID, appointmentID uuid.UUID, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.items {
		if c.OrgID != orgID || c.Status != StatusPending || c.AppointmentID == nil || *c.AppointmentID != appointmentID {
			continue
		}
		c.Status = StatusCancelled
		c.UpdatedAt = at
		n++
	}
	return n, nil
}

func (r *InMemoryRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.Status != StatusPending {
		return false, nil
	}
	c.Status = StatusSent
	c.Attempts++
	c.SentAt = &at
	c.UpdatedAt = at
	return true, nil
}

func (r *InMemoryRepository) RecordFailure(ctx context.Context, id uuid.UUID, msg string, maxAttempts int, at time.Time) (Status, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.Status != StatusPending {
		return "", false, nil
	}
	c.Attempts++
	c.LastError = msg
	c.UpdatedAt = at
	if c.Attempts >= maxAttempts {
		c.Status = StatusFailed
	}
	return c.Status, true, nil
}
