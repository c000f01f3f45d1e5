package decisionqueue

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

// Repository persists queue entries.
type Repository interface {
	// Upsert inserts a PENDING entry, or updates the reason of the existing
	// PENDING entry for the same resource, and returns the stored row.
	Upsert(ctx context.Context, e *Entry) (*Entry, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*Entry, error)
	// MarkResolved transitions a PENDING entry to RESOLVED, on q when it is
	// non-nil. It returns ok=false without error when the entry is missing or
	// not pending.
	MarkResolved(ctx context.Context, q DB, orgID, id uuid.UUID, res Resolution) (*Entry, bool, error)
	ListPending(ctx context.Context, orgID uuid.UUID, filter Filter) ([]Entry, error)
	CountPending(ctx context.Context, orgID uuid.UUID) (int, error)
}

type pendingKey struct {
	orgID        uuid.UUID
	resourceType string
	resourceID   uuid.UUID
}

// InMemoryRepository is a Repository kept in process memory, used when no
// database is configured and in tests.
type InMemoryRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
	order   []uuid.UUID
	pending map[pendingKey]uuid.UUID
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[uuid.UUID]*Entry),
		pending: make(map[pendingKey]uuid.UUID),
	}
}

func (r *InMemoryRepository) Upsert(ctx context.Context, e *Entry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pendingKey{e.OrgID, e.ResourceType, e.ResourceID}
	if id, ok := r.pending[key]; ok {
		existing := r.entries[id]
		existing.Reason = e.Reason
		cp := *existing
		return &cp, nil
	}

	stored := *e
	r.entries[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	r.pending[key] = stored.ID
	cp := stored
	return &cp, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.OrgID != orgID {
		return nil, apperr.NotFound("decision queue entry %s not found", id)
	}
	cp := *e
	return &cp, nil
}

func (r *InMemoryRepository) MarkResolved(ctx context.Context, _ DB, orgID, id uuid.UUID, res Resolution) (*Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.OrgID != orgID || e.Status != StatusPending {
		return nil, false, nil
	}
	at := res.ResolvedAt
	e.Status = StatusResolved
	e.Resolution = res.Decision
	e.ResolutionNote = res.Note
	e.ResolvedBy = res.ResolvedBy
	e.ResolvedAt = &at
	delete(r.pending, pendingKey{e.OrgID, e.ResourceType, e.ResourceID})
	cp := *e
	return &cp, true, nil
}

func (r *InMemoryRepository) ListPending(ctx context.Context, orgID uuid.UUID, filter Filter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []Entry
	for _, id := range r.order {
		e := r.entries[id]
		if e.OrgID != orgID || e.Status != StatusPending {
			continue
		}
		if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
			continue
		}
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *InMemoryRepository) CountPending(ctx context.Context, orgID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.OrgID == orgID && e.Status == StatusPending {
			n++
		}
	}
	return n, nil
}
