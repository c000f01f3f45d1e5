// Package decisionqueue stores candidates that could not be auto-resolved and
// records the human decision that closes each one.
package decisionqueue

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusResolved Status = "RESOLVED"
)

// Decision is the human verdict recorded when an entry is resolved.
type Decision string

const (
	// DecisionExtend pushes the deferred commit out; the caller re-schedules evaluation.
	DecisionExtend Decision = "extend"
	// DecisionCancel rejects the candidate outright.
	DecisionCancel Decision = "cancel"
	// DecisionSendAnyway force-commits despite the original reason.
	DecisionSendAnyway Decision = "send_anyway"
	// DecisionApprove force-commits despite the original reason.
	DecisionApprove Decision = "approve"
	// DecisionReject rejects the candidate outright.
	DecisionReject Decision = "reject"
)

// ParseDecision validates a decision string.
func ParseDecision(raw string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(raw)))
	switch d {
	case DecisionExtend, DecisionCancel, DecisionSendAnyway, DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", apperr.Validation("invalid decision %q", raw)
}

// Commits reports whether the decision force-commits the candidate.
func (d Decision) Commits() bool {
	return d == DecisionApprove || d == DecisionSendAnyway
}

// Rejects reports whether the decision rejects the candidate.
func (d Decision) Rejects() bool {
	return d == DecisionCancel || d == DecisionReject
}

// Entry is one queued candidate awaiting a human decision.
type Entry struct {
	ID             uuid.UUID  `json:"id"`
	OrgID          uuid.UUID  `json:"org_id"`
	ResourceType   string     `json:"resource_type"`
	ResourceID     uuid.UUID  `json:"resource_id"`
	Reason         string     `json:"reason"`
	Status         Status     `json:"status"`
	Resolution     Decision   `json:"resolution,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
}

// Filter narrows ListPending.
type Filter struct {
	ResourceType string
	Limit        int
}

// Resolution carries the fields written when an entry is resolved.
type Resolution struct {
	Decision   Decision
	Note       string
	ResolvedBy string
	ResolvedAt time.Time
}

// BulkResult reports per-item outcomes of ResolveBulk.
type BulkResult struct {
	Resolved int     `json:"resolved"`
	Failed   int     `json:"failed"`
	Entries  []Entry `json:"-"`
}

const defaultListLimit = 100
