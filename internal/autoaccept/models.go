// Package autoaccept decides whether incoming appointments and referrals can
// be committed without a human, and carries out that decision.
package autoaccept

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

// ResourceType identifies what kind of candidate is being evaluated.
type ResourceType string

const (
	ResourceAppointment ResourceType = "appointment"
	ResourceReferral    ResourceType = "referral"
)

// ParseResourceType validates a resource type string.
func ParseResourceType(raw string) (ResourceType, error) {
	rt := ResourceType(strings.ToLower(strings.TrimSpace(raw)))
	switch rt {
	case ResourceAppointment, ResourceReferral:
		return rt, nil
	}
	return "", apperr.Validation("invalid resource_type %q", raw)
}

// Settings is the per-organization auto-accept configuration.
type Settings struct {
	OrgID                      uuid.UUID `json:"org_id"`
	AutoAcceptAppointments     bool      `json:"auto_accept_appointments"`
	AutoAcceptReferrals        bool      `json:"auto_accept_referrals"`
	AcceptDelayMinutes         int       `json:"accept_delay_minutes"`
	ReferralAcceptDelayMinutes int       `json:"referral_accept_delay_minutes"`
	TypesIncluded              []string  `json:"types_included"`
	TypesExcluded              []string  `json:"types_excluded"`
	MaxDailyLimit              int       `json:"max_daily_limit"`
	BusinessHoursOnly          bool      `json:"business_hours_only"`
	UpdatedAt                  time.Time `json:"updated_at,omitempty"`
}

// DefaultSettings returns the configuration used for organizations that never
// saved settings: everything off, nothing auto-accepted.
func DefaultSettings(orgID uuid.UUID) Settings {
	return Settings{
		OrgID:         orgID,
		TypesIncluded: []string{},
		TypesExcluded: []string{},
	}
}

// Normalize returns a copy with categories trimmed, upper-cased and deduplicated.
func (s Settings) Normalize() Settings {
	s.TypesIncluded = normalizeCategories(s.TypesIncluded)
	s.TypesExcluded = normalizeCategories(s.TypesExcluded)
	return s
}

// Validate checks numeric bounds.
func (s Settings) Validate() error {
	if s.OrgID == uuid.Nil {
		return apperr.Validation("org_id is required")
	}
	if s.AcceptDelayMinutes < 0 || s.ReferralAcceptDelayMinutes < 0 {
		return apperr.Validation("accept delays must be >= 0")
	}
	if s.MaxDailyLimit < 0 {
		return apperr.Validation("max_daily_limit must be >= 0")
	}
	return nil
}

// Enabled reports whether auto-accept is switched on for the resource type.
func (s Settings) Enabled(rt ResourceType) bool {
	switch rt {
	case ResourceAppointment:
		return s.AutoAcceptAppointments
	case ResourceReferral:
		return s.AutoAcceptReferrals
	}
	return false
}

// Delay returns how long a commit is deferred after an ACCEPT.
func (s Settings) Delay(rt ResourceType) time.Duration {
	minutes := s.AcceptDelayMinutes
	if rt == ResourceReferral {
		minutes = s.ReferralAcceptDelayMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Excludes reports whether category is on the exclusion list. A blank
// category is never excluded.
func (s Settings) Excludes(category string) bool {
	return containsCategory(s.TypesExcluded, category)
}

// Allows reports whether category passes the allow-list. An empty allow-list
// allows everything; a blank category never matches a non-empty one.
func (s Settings) Allows(category string) bool {
	if len(normalizeCategories(s.TypesIncluded)) == 0 {
		return true
	}
	return containsCategory(s.TypesIncluded, category)
}

// SettingsUpdate is a partial update; nil fields keep their current value.
type SettingsUpdate struct {
	AutoAcceptAppointments     *bool     `json:"auto_accept_appointments,omitempty"`
	AutoAcceptReferrals        *bool     `json:"auto_accept_referrals,omitempty"`
	AcceptDelayMinutes         *int      `json:"accept_delay_minutes,omitempty"`
	ReferralAcceptDelayMinutes *int      `json:"referral_accept_delay_minutes,omitempty"`
	TypesIncluded              *[]string `json:"types_included,omitempty"`
	TypesExcluded              *[]string `json:"types_excluded,omitempty"`
	MaxDailyLimit              *int      `json:"max_daily_limit,omitempty"`
	BusinessHoursOnly          *bool     `json:"business_hours_only,omitempty"`
}

// Apply merges the update onto s.
func (u SettingsUpdate) Apply(s Settings) Settings {
	if u.AutoAcceptAppointments != nil {
		s.AutoAcceptAppointments = *u.AutoAcceptAppointments
	}
	if u.AutoAcceptReferrals != nil {
		s.AutoAcceptReferrals = *u.AutoAcceptReferrals
	}
	if u.AcceptDelayMinutes != nil {
		s.AcceptDelayMinutes = *u.AcceptDelayMinutes
	}
	if u.ReferralAcceptDelayMinutes != nil {
		s.ReferralAcceptDelayMinutes = *u.ReferralAcceptDelayMinutes
	}
	if u.TypesIncluded != nil {
		s.TypesIncluded = append([]string(nil), (*u.TypesIncluded)...)
	}
	if u.TypesExcluded != nil {
		s.TypesExcluded = append([]string(nil), (*u.TypesExcluded)...)
	}
	if u.MaxDailyLimit != nil {
		s.MaxDailyLimit = *u.MaxDailyLimit
	}
	if u.BusinessHoursOnly != nil {
		s.BusinessHoursOnly = *u.BusinessHoursOnly
	}
	return s
}

// Candidate is an appointment or referral awaiting a decision. It is never
// modified by this package.
type Candidate struct {
	ID             uuid.UUID    `json:"id"`
	OrgID          uuid.UUID    `json:"org_id"`
	ResourceType   ResourceType `json:"resource_type"`
	Type           string       `json:"type"`
	RequestedAt    time.Time    `json:"requested_at"`
	ScheduledAt    time.Time    `json:"scheduled_at"`
	EndAt          time.Time    `json:"end_at,omitempty"`
	PractitionerID uuid.UUID    `json:"practitioner_id,omitempty"`
}

// Validate checks the fields every rule relies on.
func (c Candidate) Validate() error {
	if c.ID == uuid.Nil {
		return apperr.Validation("candidate id is required")
	}
	if c.OrgID == uuid.Nil {
		return apperr.Validation("org_id is required")
	}
	if _, err := ParseResourceType(string(c.ResourceType)); err != nil {
		return err
	}
	if !c.EndAt.IsZero() && c.EndAt.Before(c.ScheduledAt) {
		return apperr.Validation("end_at must not be before scheduled_at")
	}
	return nil
}

// When is the instant checked against business hours. Referrals without a
// scheduled time fall back to when they were requested.
func (c Candidate) When() time.Time {
	if c.ScheduledAt.IsZero() {
		return c.RequestedAt
	}
	return c.ScheduledAt
}

// needsConflictCheck is true for appointments that occupy a practitioner's time.
func (c Candidate) needsConflictCheck() bool {
	return c.ResourceType == ResourceAppointment &&
		c.PractitionerID != uuid.Nil &&
		c.EndAt.After(c.ScheduledAt)
}

// Ref identifies the candidate for the commit collaborator.
func (c Candidate) Ref() Ref {
	return Ref{OrgID: c.OrgID, ResourceType: c.ResourceType, ResourceID: c.ID}
}

// Ref points at the upstream record a decision applies to.
type Ref struct {
	OrgID        uuid.UUID
	ResourceType ResourceType
	ResourceID   uuid.UUID
}

// Action is the evaluator's outcome.
type Action string

const (
	ActionAccept Action = "ACCEPT"
	ActionQueue  Action = "REJECT_TO_QUEUE"
)

// Reasons attached to verdicts.
const (
	ReasonDisabled        = "auto-accept disabled"
	ReasonTypeExcluded    = "type excluded"
	ReasonNotInAllowList  = "type not in allow-list"
	ReasonOutsideHours    = "outside business hours"
	ReasonDailyLimit      = "daily limit reached"
	ReasonConflict        = "scheduling conflict"
	ReasonAllChecksPassed = "all checks passed"
)

// Verdict is the evaluator's decision. CommitAt is set only for ACCEPT and is
// when the deferred commit should take effect.
type Verdict struct {
	Action   Action    `json:"action"`
	Reason   string    `json:"reason"`
	CommitAt time.Time `json:"commit_at,omitempty"`
}

// Accepted reports whether the verdict is ACCEPT.
func (v Verdict) Accepted() bool {
	return v.Action == ActionAccept
}

func acceptVerdict(commitAt time.Time) Verdict {
	return Verdict{Action: ActionAccept, Reason: ReasonAllChecksPassed, CommitAt: commitAt}
}

func queueVerdict(reason string) Verdict {
	return Verdict{Action: ActionQueue, Reason: reason}
}

// LogAction is the outcome recorded in the auto-accept log.
type LogAction string

const (
	LogAccepted LogAction = "accepted"
	LogRejected LogAction = "rejected"
	LogQueued   LogAction = "queued"
)

// LogEntry is an append-only record of one processed candidate.
type LogEntry struct {
	ID           uuid.UUID    `json:"id"`
	OrgID        uuid.UUID    `json:"org_id"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   uuid.UUID    `json:"resource_id"`
	Action       LogAction    `json:"action"`
	Reason       string       `json:"reason"`
	ProcessedAt  time.Time    `json:"processed_at"`
}

func normalizeCategory(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		c := normalizeCategory(raw)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func containsCategory(list []string, category string) bool {
	c := normalizeCategory(category)
	if c == "" {
		return false
	}
	for _, item := range list {
		if normalizeCategory(item) == c {
			return true
		}
	}
	return false
}
