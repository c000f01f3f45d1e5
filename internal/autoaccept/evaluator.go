package autoaccept

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/conflicts"
)

// Facts are the externally observed inputs to the decision rules.
type Facts struct {
	Now                 time.Time
	WithinBusinessHours bool
	DailyAcceptedCount  int
	Conflict            bool
}

// Decide applies the decision rules in order; the first match wins.
//
//  1. auto-accept disabled for the resource type
//  2. type excluded (exclusion beats inclusion)
//  3. allow-list present and type not on it
//  4. business-hours-only and outside the window
//  5. daily limit reached
//  6. scheduling conflict
//  7. accept, committing after the configured delay
func Decide(c Candidate, s Settings, f Facts) Verdict {
	switch {
	case !s.Enabled(c.ResourceType):
		return queueVerdict(ReasonDisabled)
	case s.Excludes(c.Type):
		return queueVerdict(ReasonTypeExcluded)
	case !s.Allows(c.Type):
		return queueVerdict(ReasonNotInAllowList)
	case s.BusinessHoursOnly && !f.WithinBusinessHours:
		return queueVerdict(ReasonOutsideHours)
	case s.MaxDailyLimit > 0 && f.DailyAcceptedCount >= s.MaxDailyLimit:
		return queueVerdict(ReasonDailyLimit)
	case f.Conflict:
		return queueVerdict(ReasonConflict)
	}
	return acceptVerdict(f.Now.Add(s.Delay(c.ResourceType)))
}

// Window answers the business-hours question for rule 4.
type Window interface {
	IsWithinBusinessHours(ctx context.Context, orgID uuid.UUID, ts time.Time) (bool, error)
}

// ConflictChecker answers rule 6. A nil Querier means "use your own connection".
type ConflictChecker interface {
	HasConflictTx(ctx context.Context, q conflicts.Querier, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
}

// Evaluator gathers facts lazily, only querying a collaborator when every
// earlier rule has passed.
type Evaluator struct {
	window    Window
	conflicts ConflictChecker
	now       func() time.Time
}

// NewEvaluator creates an evaluator. conflicts may be nil when only referrals
// are evaluated.
func NewEvaluator(window Window, checker ConflictChecker) *Evaluator {
	return &Evaluator{
		window:    window,
		conflicts: checker,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate returns the verdict for c given s and the number of candidates
// already accepted today. It never mutates anything.
func (e *Evaluator) Evaluate(ctx context.Context, c Candidate, s Settings, dailyAcceptedCount int) (Verdict, error) {
	if err := c.Validate(); err != nil {
		return Verdict{}, err
	}
	f := Facts{Now: e.now(), WithinBusinessHours: true}
	v, err := e.screen(ctx, c, s, &f)
	if err != nil || !v.Accepted() {
		return v, err
	}
	f.DailyAcceptedCount = dailyAcceptedCount
	if v = Decide(c, s, f); !v.Accepted() {
		return v, nil
	}
	return e.checkConflict(ctx, nil, c, s, &f)
}

// screen runs rules 1-4.
func (e *Evaluator) screen(ctx context.Context, c Candidate, s Settings, f *Facts) (Verdict, error) {
	if v := Decide(c, s, *f); !v.Accepted() {
		return v, nil
	}
	if s.BusinessHoursOnly {
		open, err := e.window.IsWithinBusinessHours(ctx, c.OrgID, c.When())
		if err != nil {
			return Verdict{}, fmt.Errorf("autoaccept: business hours: %w", err)
		}
		f.WithinBusinessHours = open
	}
	return Decide(c, s, *f), nil
}

// checkConflict runs rule 6 on q and returns the final verdict.
func (e *Evaluator) checkConflict(ctx context.Context, q conflicts.Querier, c Candidate, s Settings, f *Facts) (Verdict, error) {
	if c.needsConflictCheck() && e.conflicts != nil {
		exclude := c.ID
		conflict, err := e.conflicts.HasConflictTx(ctx, q, c.PractitionerID, c.ScheduledAt, c.EndAt, &exclude)
		if err != nil {
			return Verdict{}, fmt.Errorf("autoaccept: conflict check: %w", err)
		}
		f.Conflict = conflict
	}
	return Decide(c, s, *f), nil
}
