package decisionqueue

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
	"github.com/wolfman30/clinic-decision-core/internal/observability/metrics"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

var queueTracer = otel.Tracer("clinic.internal.decisionqueue")

// Service implements enqueue and human resolution on top of a Repository.
type Service struct {
	repo    Repository
	logger  *logging.Logger
	metrics *metrics.DecisionMetrics
	now     func() time.Time
}

// NewService creates a decision queue service.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger.With("component", "decisionqueue"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics attaches resolution counters.
func (s *Service) WithMetrics(m *metrics.DecisionMetrics) *Service {
	s.metrics = m
	return s
}

// Enqueue records a candidate for human review. Re-enqueueing a resource that
// already has a PENDING entry refreshes the reason and returns that entry.
func (s *Service) Enqueue(ctx context.Context, orgID uuid.UUID, resourceType string, resourceID uuid.UUID, reason string) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "decisionqueue.enqueue")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.org_id", orgID.String()),
		attribute.String("decision.resource_type", resourceType),
	)

	if orgID == uuid.Nil || resourceID == uuid.Nil {
		return nil, apperr.Validation("org_id and resource_id are required")
	}
	if strings.TrimSpace(resourceType) == "" {
		return nil, apperr.Validation("resource_type is required")
	}

	entry, err := s.repo.Upsert(ctx, &Entry{
		ID:           uuid.New(),
		OrgID:        orgID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Reason:       reason,
		Status:       StatusPending,
		CreatedAt:    s.now(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("decision queued",
		"org_id", orgID,
		"entry_id", entry.ID,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"reason", reason,
	)
	return entry, nil
}

// Resolve closes a PENDING entry with a human decision. Concurrent calls on
// the same entry produce exactly one success; the others see InvalidState.
func (s *Service) Resolve(ctx context.Context, orgID, entryID uuid.UUID, decision, note, resolvedBy string) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "decisionqueue.resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.org_id", orgID.String()),
		attribute.String("decision.entry_id", entryID.String()),
		attribute.String("decision.value", decision),
	)

	d, err := ParseDecision(decision)
	if err != nil {
		return nil, err
	}
	entry, err := s.resolve(ctx, nil, orgID, entryID, d, note, resolvedBy)
	s.metrics.ObserveResolution(string(d), err == nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("decision resolved",
		"org_id", orgID,
		"entry_id", entryID,
		"decision", d,
		"resolved_by", resolvedBy,
	)
	return entry, nil
}

// ResolveTx is Resolve on the caller's transaction. The transition only
// becomes visible when q commits, so the caller records metrics and logs.
func (s *Service) ResolveTx(ctx context.Context, q DB, orgID, entryID uuid.UUID, d Decision, note, resolvedBy string) (*Entry, error) {
	return s.resolve(ctx, q, orgID, entryID, d, note, resolvedBy)
}

func (s *Service) resolve(ctx context.Context, q DB, orgID, entryID uuid.UUID, d Decision, note, resolvedBy string) (*Entry, error) {
	if entryID == uuid.Nil {
		return nil, apperr.Validation("entry id is required")
	}
	entry, ok, err := s.repo.MarkResolved(ctx, q, orgID, entryID, Resolution{
		Decision:   d,
		Note:       strings.TrimSpace(note),
		ResolvedBy: resolvedBy,
		ResolvedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if ok {
		return entry, nil
	}

	// Nothing was updated: either the entry does not exist or it is already resolved.
	existing, err := s.repo.Get(ctx, orgID, entryID)
	if err != nil {
		return nil, err
	}
	return nil, apperr.InvalidState("decision queue entry %s is already %s", existing.ID, existing.Status)
}

// ResolveBulk resolves each entry independently and reports counts. A bad ID
// or a failed item does not stop the rest of the batch.
func (s *Service) ResolveBulk(ctx context.Context, orgID uuid.UUID, entryIDs []uuid.UUID, decision, note, resolvedBy string) (*BulkResult, error) {
	ctx, span := queueTracer.Start(ctx, "decisionqueue.resolve_bulk")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.org_id", orgID.String()),
		attribute.Int("decision.batch_size", len(entryIDs)),
	)

	d, err := ParseDecision(decision)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{}
	for _, id := range entryIDs {
		entry, err := s.resolve(ctx, nil, orgID, id, d, note, resolvedBy)
		s.metrics.ObserveResolution(string(d), err == nil)
		if err != nil {
			result.Failed++
			s.logger.Warn("bulk resolve item failed", "org_id", orgID, "entry_id", id, "error", err)
			continue
		}
		result.Resolved++
		result.Entries = append(result.Entries, *entry)
	}
	span.SetAttributes(
		attribute.Int("decision.resolved", result.Resolved),
		attribute.Int("decision.failed", result.Failed),
	)
	return result, nil
}

// ListPending returns PENDING entries oldest first.
func (s *Service) ListPending(ctx context.Context, orgID uuid.UUID, filter Filter) ([]Entry, error) {
	return s.repo.ListPending(ctx, orgID, filter)
}

// Get fetches one entry.
func (s *Service) Get(ctx context.Context, orgID, entryID uuid.UUID) (*Entry, error) {
	return s.repo.Get(ctx, orgID, entryID)
}

// CountPending returns the number of PENDING entries for an organization.
func (s *Service) CountPending(ctx context.Context, orgID uuid.UUID) (int, error) {
	return s.repo.CountPending(ctx, orgID)
}
