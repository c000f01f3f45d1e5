package comms

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
	"github.com/wolfman30/clinic-decision-core/internal/audit"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

var plannerTracer = otel.Tracer("clinic.internal.comms")

// Planner computes send times for reminders and follow-ups and owns their
// PENDING -> CANCELLED transition. SENT and FAILED are reached only through
// MarkSent and MarkFailed, which the dispatcher calls.
type Planner struct {
	repo    Repository
	auditor Auditor
	logger  *logging.Logger
	now     func() time.Time
}

// Auditor records cancellations. Failures are logged only.
type Auditor interface {
	LogEvent(ctx context.Context, event audit.Event) error
}

// NewPlanner creates a communication planner.
func NewPlanner(repo Repository, logger *logging.Logger) *Planner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Planner{
		repo:   repo,
		logger: logger.With("component", "comms"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithAuditor records cancellations in the audit trail.
func (p *Planner) WithAuditor(a Auditor) *Planner {
	p.auditor = a
	return p
}

// WithClock overrides the time source.
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

// Schedule creates one PENDING row per offset at appointmentTime - offset,
// returned in ascending send order. Rows already in the past are still
// created and become due on the next poll.
func (p *Planner) Schedule(ctx context.Context, req ScheduleRequest) ([]Communication, error) {
	ctx, span := plannerTracer.Start(ctx, "comms.schedule")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	channel, _ := ParseChannel(string(req.Channel))
	span.SetAttributes(
		attribute.String("clinic.org_id", req.OrgID.String()),
		attribute.Int("comms.offsets", len(req.Offsets)),
	)

	now := p.now()
	seen := make(map[time.Duration]bool, len(req.Offsets))
	items := make([]*Communication, 0, len(req.Offsets))
	late := 0
	for _, offset := range req.Offsets {
		if seen[offset] {
			continue
		}
		seen[offset] = true

		msg := strings.TrimSpace(req.Message)
		if msg == "" {
			msg = DefaultMessage(req.AppointmentTime, offset)
		}
		c := &Communication{
			ID:            uuid.New(),
			OrgID:         req.OrgID,
			PatientID:     req.PatientID,
			AppointmentID: req.AppointmentID,
			Channel:       channel,
			Recipient:     strings.TrimSpace(req.Recipient),
			Message:       msg,
			ScheduledAt:   req.AppointmentTime.Add(-offset).UTC(),
			OffsetMinutes: int(offset / time.Minute),
			Status:        StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if !c.ScheduledAt.After(now) {
			late++
		}
		items = append(items, c)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ScheduledAt.Before(items[j].ScheduledAt) })

	if err := p.repo.CreateAll(ctx, items); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("comms: schedule: %w", err)
	}

	p.logger.Info("communications scheduled",
		"org_id", req.OrgID,
		"patient_id", req.PatientID,
		"count", len(items),
		"already_due", late,
	)
	out := make([]Communication, len(items))
	for i, c := range items {
		out[i] = *c
	}
	return out, nil
}

// DueNow returns the organization's PENDING rows with scheduled_at <= asOf,
// oldest first.
func (p *Planner) DueNow(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]Communication, error) {
	if orgID == uuid.Nil {
		return nil, apperr.Validation("org_id is required")
	}
	return p.repo.ListDue(ctx, orgID, asOf, 0)
}

// Cancel moves a PENDING row to CANCELLED. Rows already SENT, CANCELLED or
// FAILED are left alone and no error is returned.
func (p *Planner) Cancel(ctx context.Context, orgID, id uuid.UUID) error {
	ok, err := p.repo.Cancel(ctx, orgID, id, p.now())
	if err != nil {
		return err
	}
	if ok {
		p.logger.Info("communication cancelled", "org_id", orgID, "communication_id", id)
		p.audit(ctx, orgID, "communication", id.String())
		return nil
	}
	existing, err := p.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	p.logger.Debug("cancel ignored", "communication_id", id, "status", existing.Status)
	return nil
}

// CancelForAppointment cancels every PENDING row for an appointment and
// returns how many were cancelled.
func (p *Planner) CancelForAppointment(ctx context.Context, orgID, appointmentID uuid.UUID) (int, error) {
	n, err := p.repo.CancelForAppointment(ctx, orgID, appointmentID, p.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("appointment communications cancelled", "org_id", orgID, "appointment_id", appointmentID, "count", n)
		p.audit(ctx, orgID, "appointment", appointmentID.String())
	}
	return n, nil
}

func (p *Planner) audit(ctx context.Context, orgID uuid.UUID, resourceType, resourceID string) {
	if p.auditor == nil {
		return
	}
	err := p.auditor.LogEvent(ctx, audit.Event{
		EventType:    audit.EventCommunicationCancelled,
		OrgID:        orgID.String(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Tags:         []string{"comms"},
	})
	if err != nil {
		p.logger.Warn("audit log failed", "event_type", audit.EventCommunicationCancelled, "org_id", orgID, "error", err)
	}
}

// Get fetches one row.
func (p *Planner) Get(ctx context.Context, orgID, id uuid.UUID) (*Communication, error) {
	return p.repo.Get(ctx, orgID, id)
}

// MarkSent records a successful send.
func (p *Planner) MarkSent(ctx context.Context, id uuid.UUID) error {
	ok, err := p.repo.MarkSent(ctx, id, p.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidState("communication %s is not pending", id)
	}
	return nil
}

// MarkFailed records a permanent send failure.
func (p *Planner) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	_, err := p.recordFailure(ctx, id, cause, 1)
	return err
}

func (p *Planner) recordFailure(ctx context.Context, id uuid.UUID, cause error, maxAttempts int) (Status, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	status, ok, err := p.repo.RecordFailure(ctx, id, msg, maxAttempts, p.now())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.InvalidState("communication %s is not pending", id)
	}
	return status, nil
}
