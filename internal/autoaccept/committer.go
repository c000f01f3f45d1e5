package autoaccept

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
	"github.com/wolfman30/clinic-decision-core/internal/conflicts"
)

// Committer performs the state change on the upstream record. Both methods
// run on the caller's transaction.
type Committer interface {
	Commit(ctx context.Context, q conflicts.Querier, ref Ref, commitAt time.Time) error
	Reject(ctx context.Context, q conflicts.Querier, ref Ref, reason string) error
}

// SQLCommitter confirms or rejects rows in the booking module's appointments
// and referrals tables. A future commitAt is stored as the effective
// confirmation time, which the booking module honours before notifying the
// patient.
type SQLCommitter struct{}

// NewSQLCommitter creates a SQL committer.
func NewSQLCommitter() *SQLCommitter {
	return &SQLCommitter{}
}

func (SQLCommitter) Commit(ctx context.Context, q conflicts.Querier, ref Ref, commitAt time.Time) error {
	var query string
	switch ref.ResourceType {
	case ResourceAppointment:
		query = `UPDATE appointments SET status = 'confirmed', confirmed_at = $3, updated_at = now()
			WHERE org_id = $1 AND id = $2 AND status IN ('requested', 'pending')`
	case ResourceReferral:
		query = `UPDATE referrals SET status = 'accepted', accepted_at = $3, updated_at = now()
			WHERE org_id = $1 AND id = $2 AND status IN ('received', 'pending')`
	default:
		return apperr.Validation("invalid resource_type %q", ref.ResourceType)
	}
	tag, err := q.Exec(ctx, query, ref.OrgID, ref.ResourceID, commitAt)
	if err != nil {
		return fmt.Errorf("autoaccept: commit %s: %w", ref.ResourceType, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidState("%s %s is not awaiting a decision", ref.ResourceType, ref.ResourceID)
	}
	return nil
}

func (SQLCommitter) Reject(ctx context.Context, q conflicts.Querier, ref Ref, reason string) error {
	var query string
	switch ref.ResourceType {
	case ResourceAppointment:
		query = `UPDATE appointments SET status = 'rejected', rejection_reason = $3, updated_at = now()
			WHERE org_id = $1 AND id = $2 AND status IN ('requested', 'pending')`
	case ResourceReferral:
		query = `UPDATE referrals SET status = 'rejected', rejection_reason = $3, updated_at = now()
			WHERE org_id = $1 AND id = $2 AND status IN ('received', 'pending')`
	default:
		return apperr.Validation("invalid resource_type %q", ref.ResourceType)
	}
	tag, err := q.Exec(ctx, query, ref.OrgID, ref.ResourceID, reason)
	if err != nil {
		return fmt.Errorf("autoaccept: reject %s: %w", ref.ResourceType, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidState("%s %s is not awaiting a decision", ref.ResourceType, ref.ResourceID)
	}
	return nil
}
