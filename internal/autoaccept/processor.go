package autoaccept

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
	"github.com/wolfman30/clinic-decision-core/internal/audit"
	"github.com/wolfman30/clinic-decision-core/internal/conflicts"
	"github.com/wolfman30/clinic-decision-core/internal/decisionqueue"
	"github.com/wolfman30/clinic-decision-core/internal/observability/metrics"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

var processorTracer = otel.Tracer("clinic.internal.autoaccept")

// QuotaTracker reserves daily acceptance slots.
type QuotaTracker interface {
	Window
	Today(ctx context.Context, orgID uuid.UUID, now time.Time) (time.Time, error)
	IncrementAndGet(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) (int, error)
	Release(ctx context.Context, orgID uuid.UUID, resourceType string, day time.Time) error
}

// TxRunner runs work in a transaction. conflicts.Guard satisfies it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, q conflicts.Querier) error) error
	WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, fn func(ctx context.Context, q conflicts.Querier) error) error
}

// LogWriter appends auto-accept log rows.
type LogWriter interface {
	Append(ctx context.Context, q conflicts.Querier, e *LogEntry) error
}

// DecisionQueue receives inconclusive candidates and closes entries on a
// human decision. decisionqueue.Service satisfies it.
type DecisionQueue interface {
	Enqueue(ctx context.Context, orgID uuid.UUID, resourceType string, resourceID uuid.UUID, reason string) (*decisionqueue.Entry, error)
	ResolveTx(ctx context.Context, q decisionqueue.DB, orgID, entryID uuid.UUID, d decisionqueue.Decision, note, resolvedBy string) (*decisionqueue.Entry, error)
}

// Auditor receives audit events. Failures are logged and otherwise ignored.
type Auditor interface {
	LogEvent(ctx context.Context, event audit.Event) error
}

// Result is the outcome of processing one candidate.
type Result struct {
	Verdict    Verdict              `json:"verdict"`
	Log        *LogEntry            `json:"log"`
	QueueEntry *decisionqueue.Entry `json:"queue_entry,omitempty"`
}

// Resolution is the outcome of a human decision on a queue entry. Log is nil
// when the decision leaves the underlying record alone.
type Resolution struct {
	Entry *decisionqueue.Entry `json:"entry"`
	Log   *LogEntry            `json:"log,omitempty"`
}

// errConflictDetected aborts the commit transaction when rule 6 fires.
var errConflictDetected = errors.New("autoaccept: conflict detected under lock")

// Processor turns a verdict into state: it commits accepted candidates,
// queues the rest, and writes the log and audit trail.
type Processor struct {
	settings  SettingsProvider
	evaluator *Evaluator
	quota     QuotaTracker
	runner    TxRunner
	committer Committer
	logs      LogWriter
	queue     DecisionQueue
	auditor   Auditor
	metrics   *metrics.DecisionMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewProcessor wires the collaborators.
func NewProcessor(settings SettingsProvider, evaluator *Evaluator, quota QuotaTracker, runner TxRunner, committer Committer, logs LogWriter, queue DecisionQueue, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		settings:  settings,
		evaluator: evaluator,
		quota:     quota,
		runner:    runner,
		committer: committer,
		logs:      logs,
		queue:     queue,
		logger:    logger.With("component", "autoaccept"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithAuditor attaches the audit trail.
func (p *Processor) WithAuditor(a Auditor) *Processor {
	p.auditor = a
	return p
}

// WithMetrics attaches decision counters.
func (p *Processor) WithMetrics(m *metrics.DecisionMetrics) *Processor {
	p.metrics = m
	return p
}

// WithClock overrides the time source for the processor and its evaluator.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	p.evaluator.WithClock(now)
	return p
}

// Process evaluates c and applies the verdict. Every call that returns
// without error has produced either a commit or a queue entry, plus a log row.
//
// The daily slot is reserved with an atomic increment before the conflict
// check, so concurrent candidates never both take the last slot. A slot
// reserved by a candidate that is later queued is released.
func (p *Processor) Process(ctx context.Context, c Candidate) (*Result, error) {
	ctx, span := processorTracer.Start(ctx, "autoaccept.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("clinic.org_id", c.OrgID.String()),
			attribute.String("autoaccept.resource_type", string(c.ResourceType)),
			attribute.String("autoaccept.resource_id", c.ID.String()),
		),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		p.metrics.ObserveLatency(string(c.ResourceType), time.Since(start).Seconds())
	}()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	settings, err := p.settings.Get(ctx, c.OrgID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("autoaccept: load settings: %w", err)
	}

	now := p.now()
	f := Facts{Now: now, WithinBusinessHours: true}
	verdict, err := p.evaluator.screen(ctx, c, settings, &f)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !verdict.Accepted() {
		return p.finishQueued(ctx, c, verdict, now)
	}

	var (
		reserved bool
		day      time.Time
	)
	release := func() {
		if !reserved {
			return
		}
		reserved = false
		if err := p.quota.Release(context.WithoutCancel(ctx), c.OrgID, string(c.ResourceType), day); err != nil {
			p.logger.Warn("failed to release daily slot", "org_id", c.OrgID, "resource_id", c.ID, "error", err)
		}
	}

	if settings.MaxDailyLimit > 0 {
		day, err = p.quota.Today(ctx, c.OrgID, now)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("autoaccept: %w", err)
		}
		count, err := p.quota.IncrementAndGet(ctx, c.OrgID, string(c.ResourceType), day)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("autoaccept: %w", err)
		}
		reserved = true
		f.DailyAcceptedCount = count - 1
		if verdict = Decide(c, settings, f); !verdict.Accepted() {
			release()
			return p.finishQueued(ctx, c, verdict, now)
		}
	}

	entry := &LogEntry{
		OrgID:        c.OrgID,
		ResourceType: c.ResourceType,
		ResourceID:   c.ID,
		Action:       LogAccepted,
		ProcessedAt:  now,
	}
	commit := func(ctx context.Context, q conflicts.Querier) error {
		v, err := p.evaluator.checkConflict(ctx, q, c, settings, &f)
		if err != nil {
			return err
		}
		verdict = v
		if !v.Accepted() {
			return errConflictDetected
		}
		if err := p.committer.Commit(ctx, q, c.Ref(), v.CommitAt); err != nil {
			return err
		}
		entry.Reason = v.Reason
		return p.logs.Append(ctx, q, entry)
	}

	if c.needsConflictCheck() {
		err = p.runner.WithPractitionerLock(ctx, c.PractitionerID, c.ScheduledAt, c.EndAt, commit)
	} else {
		err = p.runner.InTx(ctx, commit)
	}
	if errors.Is(err, errConflictDetected) {
		release()
		return p.finishQueued(ctx, c, verdict, now)
	}
	if err != nil {
		release()
		span.RecordError(err)
		return nil, err
	}

	p.metrics.ObserveDecision(string(c.ResourceType), string(LogAccepted), verdict.Reason)
	p.logger.Info("candidate auto-accepted",
		"org_id", c.OrgID,
		"resource_type", c.ResourceType,
		"resource_id", c.ID,
		"commit_at", verdict.CommitAt,
	)
	p.audit(ctx, audit.Event{
		EventType:    audit.EventAutoAccepted,
		OrgID:        c.OrgID.String(),
		ResourceType: string(c.ResourceType),
		ResourceID:   c.ID.String(),
		Actor:        "auto-accept",
		Tags:         []string{string(LogAccepted)},
		Details:      detailsJSON(map[string]any{"reason": verdict.Reason, "commit_at": verdict.CommitAt}),
	})
	return &Result{Verdict: verdict, Log: entry}, nil
}

func (p *Processor) finishQueued(ctx context.Context, c Candidate, v Verdict, now time.Time) (*Result, error) {
	qe, err := p.queue.Enqueue(ctx, c.OrgID, string(c.ResourceType), c.ID, v.Reason)
	if err != nil {
		return nil, fmt.Errorf("autoaccept: enqueue: %w", err)
	}
	entry := &LogEntry{
		OrgID:        c.OrgID,
		ResourceType: c.ResourceType,
		ResourceID:   c.ID,
		Action:       LogQueued,
		Reason:       v.Reason,
		ProcessedAt:  now,
	}
	if err := p.logs.Append(ctx, nil, entry); err != nil {
		return nil, err
	}

	p.metrics.ObserveDecision(string(c.ResourceType), string(LogQueued), v.Reason)
	p.logger.Info("candidate queued for review",
		"org_id", c.OrgID,
		"resource_type", c.ResourceType,
		"resource_id", c.ID,
		"entry_id", qe.ID,
		"reason", v.Reason,
	)
	p.audit(ctx, audit.Event{
		EventType:    audit.EventQueued,
		OrgID:        c.OrgID.String(),
		ResourceType: string(c.ResourceType),
		ResourceID:   c.ID.String(),
		Actor:        "auto-accept",
		Tags:         []string{string(LogQueued)},
		Details:      detailsJSON(map[string]any{"reason": v.Reason, "entry_id": qe.ID}),
	})
	return &Result{Verdict: v, Log: entry, QueueEntry: qe}, nil
}

// Resolve closes a queue entry with a human decision and carries it out on
// the underlying record in one transaction. approve and send_anyway
// force-commit without re-evaluation; cancel and reject reject the record;
// extend only closes the entry. When the record change fails the entry stays
// PENDING and can be resolved again.
func (p *Processor) Resolve(ctx context.Context, orgID, entryID uuid.UUID, decision, note, resolvedBy string) (*Resolution, error) {
	ctx, span := processorTracer.Start(ctx, "autoaccept.resolve",
		trace.WithAttributes(
			attribute.String("clinic.org_id", orgID.String()),
			attribute.String("decision.entry_id", entryID.String()),
			attribute.String("decision.value", decision),
		),
	)
	defer span.End()

	d, err := decisionqueue.ParseDecision(decision)
	if err != nil {
		return nil, err
	}
	res, err := p.resolve(ctx, orgID, entryID, d, note, resolvedBy)
	p.metrics.ObserveResolution(string(d), err == nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

// ResolveBulk applies one decision to many entries, each in its own
// transaction. A failed item is counted and does not stop the batch.
func (p *Processor) ResolveBulk(ctx context.Context, orgID uuid.UUID, entryIDs []uuid.UUID, decision, note, resolvedBy string) (*decisionqueue.BulkResult, error) {
	ctx, span := processorTracer.Start(ctx, "autoaccept.resolve_bulk",
		trace.WithAttributes(
			attribute.String("clinic.org_id", orgID.String()),
			attribute.Int("decision.batch_size", len(entryIDs)),
		),
	)
	defer span.End()

	d, err := decisionqueue.ParseDecision(decision)
	if err != nil {
		return nil, err
	}
	result := &decisionqueue.BulkResult{}
	for _, id := range entryIDs {
		res, err := p.resolve(ctx, orgID, id, d, note, resolvedBy)
		p.metrics.ObserveResolution(string(d), err == nil)
		if err != nil {
			result.Failed++
			p.logger.Warn("bulk resolve item failed", "org_id", orgID, "entry_id", id, "error", err)
			continue
		}
		result.Resolved++
		result.Entries = append(result.Entries, *res.Entry)
	}
	span.SetAttributes(
		attribute.Int("decision.resolved", result.Resolved),
		attribute.Int("decision.failed", result.Failed),
	)
	return result, nil
}

func (p *Processor) resolve(ctx context.Context, orgID, entryID uuid.UUID, d decisionqueue.Decision, note, resolvedBy string) (*Resolution, error) {
	var out *Resolution
	err := p.runner.InTx(ctx, func(ctx context.Context, q conflicts.Querier) error {
		entry, err := p.queue.ResolveTx(ctx, q, orgID, entryID, d, note, resolvedBy)
		if err != nil {
			return err
		}
		logEntry, err := p.applyResolution(ctx, q, entry)
		if err != nil {
			return err
		}
		out = &Resolution{Entry: entry, Log: logEntry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e := out.Entry
	p.logger.Info("decision resolved",
		"org_id", e.OrgID,
		"entry_id", e.ID,
		"decision", e.Resolution,
		"resolved_by", e.ResolvedBy,
	)
	p.audit(ctx, audit.Event{
		EventType:    audit.EventResolved,
		OrgID:        e.OrgID.String(),
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID.String(),
		Actor:        e.ResolvedBy,
		Tags:         []string{string(e.Resolution)},
		Details:      detailsJSON(map[string]any{"entry_id": e.ID, "note": e.ResolutionNote, "original_reason": e.Reason}),
	})
	return out, nil
}

// applyResolution changes the underlying record for a resolved entry on q.
func (p *Processor) applyResolution(ctx context.Context, q conflicts.Querier, e *decisionqueue.Entry) (*LogEntry, error) {
	if e == nil || e.Status != decisionqueue.StatusResolved {
		return nil, apperr.InvalidState("decision queue entry is not resolved")
	}
	rt, err := ParseResourceType(e.ResourceType)
	if err != nil {
		return nil, err
	}
	ref := Ref{OrgID: e.OrgID, ResourceType: rt, ResourceID: e.ResourceID}
	now := p.now()

	switch {
	case e.Resolution.Commits():
		entry := &LogEntry{OrgID: e.OrgID, ResourceType: rt, ResourceID: e.ResourceID, Action: LogAccepted,
			Reason: resolutionReason(e), ProcessedAt: now}
		if err := p.committer.Commit(ctx, q, ref, now); err != nil {
			return nil, err
		}
		if err := p.logs.Append(ctx, q, entry); err != nil {
			return nil, err
		}
		return entry, nil
	case e.Resolution.Rejects():
		entry := &LogEntry{OrgID: e.OrgID, ResourceType: rt, ResourceID: e.ResourceID, Action: LogRejected,
			Reason: resolutionReason(e), ProcessedAt: now}
		if err := p.committer.Reject(ctx, q, ref, rejectionReason(e)); err != nil {
			return nil, err
		}
		if err := p.logs.Append(ctx, q, entry); err != nil {
			return nil, err
		}
		return entry, nil
	}
	return nil, nil
}

// rejectionReason prefers the operator's note over the evaluator's reason.
func rejectionReason(e *decisionqueue.Entry) string {
	if e.ResolutionNote != "" {
		return e.ResolutionNote
	}
	return e.Reason
}

func resolutionReason(e *decisionqueue.Entry) string {
	by := e.ResolvedBy
	if by == "" {
		by = "operator"
	}
	return fmt.Sprintf("%s by %s (was: %s)", e.Resolution, by, e.Reason)
}

func (p *Processor) audit(ctx context.Context, event audit.Event) {
	if p.auditor == nil {
		return
	}
	if err := p.auditor.LogEvent(ctx, event); err != nil {
		p.logger.Warn("audit log failed", "event_type", event.EventType, "org_id", event.OrgID, "error", err)
	}
}

func detailsJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
